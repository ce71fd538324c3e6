package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ShayCichocki/agentgate/internal/graph"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/plan"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// PlanRequest is what the planner is asked for on each iteration.
type PlanRequest struct {
	// Input is the user's request.
	Input string
	// Context holds the formatted previous plans, empty on the first iteration.
	Context string
	// IsReplan is false only on the first iteration.
	IsReplan bool
}

// Planner produces plan text.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (string, error)
}

// StreamingPlanner delivers plan text incrementally. Returning an error from
// onChunk stops the stream and is returned by PlanStream.
type StreamingPlanner interface {
	Planner
	PlanStream(ctx context.Context, req PlanRequest, onChunk func(string) error) error
}

// FuseRequest is what the fuser is asked for after each execution.
type FuseRequest struct {
	// Input is the user's request.
	Input string
	// Scratchpad is the accumulated thought/action/observation text.
	Scratchpad string
	// IsFinal is true on the last allowed iteration.
	IsFinal bool
}

// Fuser produces the raw fusion reply.
type Fuser interface {
	Fuse(ctx context.Context, req FuseRequest) (string, error)
}

// Orchestrator runs the plan, execute, fuse and replan loop.
type Orchestrator struct {
	planner       Planner
	fuser         Fuser
	parser        *plan.Parser
	maxIterations int
	stream        bool
	logger        *logging.Logger
	emitter       *EventEmitter
}

// New creates an Orchestrator with the required configuration and optional settings.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if req.Planner == nil || req.Fuser == nil || req.Tools == nil {
		return nil, fmt.Errorf("%w: planner, fuser and tools are required", ErrInvalidConfig)
	}
	if o.maxIterations < 1 {
		return nil, fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidConfig, o.maxIterations)
	}

	logger := o.logger.With("orchestrator")
	return &Orchestrator{
		planner:       req.Planner,
		fuser:         req.Fuser,
		parser:        plan.NewParser(req.Tools, o.logger),
		maxIterations: o.maxIterations,
		stream:        o.stream,
		logger:        logger,
		emitter:       o.emitter,
	}, nil
}

// MaxIterations returns the iteration budget.
func (o *Orchestrator) MaxIterations() int {
	return o.maxIterations
}

// Run answers a request. Each iteration plans, executes the plan, and fuses
// the observations; the fuser may ask for a replan on every iteration except
// the last. Individual task failures never end the run: they reach the fuser
// as observations.
func (o *Orchestrator) Run(ctx context.Context, input string) (models.Answer, error) {
	return o.RunIterations(ctx, input, o.maxIterations)
}

// RunIterations is Run with an iteration budget for this call only.
func (o *Orchestrator) RunIterations(ctx context.Context, input string, maxIterations int) (models.Answer, error) {
	if maxIterations < 1 {
		return models.Answer{}, fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidConfig, maxIterations)
	}
	runID := uuid.New().String()[:8]
	o.logger.Infof("run %s: %q (max iterations %d, stream %v)", runID, input, maxIterations, o.stream)

	var (
		contexts   []string
		scratchpad string
		sources    []models.Source
	)
	for i := 0; i < maxIterations; i++ {
		isFinal := i == maxIterations-1
		o.emit(OrchestratorEvent{Type: EventIterationStarted, RunID: runID, Iteration: i})

		req := PlanRequest{Input: input, IsReplan: i > 0}
		if i > 0 {
			req.Context = FormatContexts(contexts)
		}

		g, err := o.execute(ctx, runID, i, req)
		if err != nil {
			o.done(runID, i, err)
			return models.Answer{}, err
		}
		sources = append(sources, collectSources(g)...)
		scratchpad = AppendScratchpad(scratchpad, g)

		o.emit(OrchestratorEvent{Type: EventFuseStarted, RunID: runID, Iteration: i})
		raw, err := o.fuser.Fuse(ctx, FuseRequest{Input: input, Scratchpad: scratchpad, IsFinal: isFinal})
		if err != nil {
			err = &StageError{Stage: StageFuse, Iteration: i, Err: err}
			o.done(runID, i, err)
			return models.Answer{}, err
		}
		o.logger.Block("Question:", input)
		o.logger.Block("Raw Answer:", raw)

		out, err := ParseFusionOutput(raw)
		if err != nil {
			err = &StageError{Stage: StageFuse, Iteration: i, Err: err}
			o.done(runID, i, err)
			return models.Answer{}, err
		}
		if isFinal {
			out.Replan = false
		}
		if !out.Replan {
			o.logger.Infof("run %s: answered after %d iteration(s)", runID, i+1)
			o.done(runID, i, nil)
			return models.Answer{Output: out.Answer, Sources: sources}, nil
		}

		o.logger.Infof("run %s: replanning after iteration %d: %s", runID, i+1, out.Thought)
		o.emit(OrchestratorEvent{Type: EventReplan, RunID: runID, Iteration: i, Message: out.Thought})
		contexts = append(contexts, ReplanContext(g, out.Thought))
	}

	// The final iteration never replans, so the loop always returns above.
	return models.Answer{}, ErrNoResponse
}

// execute plans and runs one iteration's graph.
func (o *Orchestrator) execute(ctx context.Context, runID string, iteration int, req PlanRequest) (*graph.TaskGraph, error) {
	sched := NewScheduler(o.logger)
	sched.OnEvent(func(e OrchestratorEvent) {
		e.RunID = runID
		e.Iteration = iteration
		o.emit(e)
	})

	var (
		g   *graph.TaskGraph
		err error
	)
	if sp, ok := o.planner.(StreamingPlanner); ok && o.stream {
		g, err = o.executeStream(ctx, sp, sched, runID, iteration, req)
	} else {
		if o.stream {
			o.logger.Infof("planner does not support streaming, using batch mode")
		}
		g, err = o.executeBatch(ctx, sched, runID, iteration, req)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (o *Orchestrator) executeBatch(ctx context.Context, sched *Scheduler, runID string, iteration int, req PlanRequest) (*graph.TaskGraph, error) {
	text, err := o.planner.Plan(ctx, req)
	if err != nil {
		return nil, &StageError{Stage: StagePlan, Iteration: iteration, Err: err}
	}
	o.logger.Block("Plan:", text)

	g, err := o.parser.Parse(text)
	if err != nil {
		return nil, &StageError{Stage: StagePlan, Iteration: iteration, Err: err}
	}
	if g.Len() == 0 {
		return nil, &StageError{Stage: StagePlan, Iteration: iteration, Err: ErrEmptyPlan}
	}
	o.emit(OrchestratorEvent{Type: EventPlanReady, RunID: runID, Iteration: iteration, Message: fmt.Sprintf("%d tasks", g.Len())})

	if err := sched.Run(ctx, g); err != nil {
		return nil, &StageError{Stage: StageExecute, Iteration: iteration, Err: err}
	}
	return g, nil
}

// errPlanComplete stops the planner stream once the fuse task has been parsed.
var errPlanComplete = errors.New("plan complete")

// executeStream feeds planner chunks through a stream parser and schedules
// tasks as they are parsed.
func (o *Orchestrator) executeStream(ctx context.Context, sp StreamingPlanner, sched *Scheduler, runID string, iteration int, req PlanRequest) (*graph.TaskGraph, error) {
	planCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan *models.Task)
	planErr := make(chan error, 1)
	stream := o.parser.NewStream()

	go func() {
		defer close(tasks)
		send := func(ts []*models.Task) error {
			for _, t := range ts {
				select {
				case tasks <- t:
				case <-planCtx.Done():
					return planCtx.Err()
				}
			}
			return nil
		}
		err := sp.PlanStream(planCtx, req, func(chunk string) error {
			if err := send(stream.Write(chunk)); err != nil {
				return err
			}
			if stream.Done() {
				return errPlanComplete
			}
			return nil
		})
		if err == nil {
			err = send(stream.Close())
		}
		planErr <- err
	}()

	g, runErr := sched.RunStream(ctx, tasks)
	// The scheduler stops reading at the fuse task; release the planner.
	cancel()
	perr := <-planErr

	if errors.Is(perr, errPlanComplete) || (errors.Is(perr, context.Canceled) && ctx.Err() == nil) {
		perr = nil
	}
	if perr != nil {
		return nil, &StageError{Stage: StagePlan, Iteration: iteration, Err: perr}
	}
	if runErr != nil {
		return nil, &StageError{Stage: StageExecute, Iteration: iteration, Err: runErr}
	}
	if g.Len() == 0 {
		return nil, &StageError{Stage: StagePlan, Iteration: iteration, Err: ErrEmptyPlan}
	}
	o.emit(OrchestratorEvent{Type: EventPlanReady, RunID: runID, Iteration: iteration, Message: fmt.Sprintf("%d tasks", g.Len())})
	return g, nil
}

func (o *Orchestrator) emit(e OrchestratorEvent) {
	o.emitter.Emit(e)
}

func (o *Orchestrator) done(runID string, iteration int, err error) {
	if err != nil {
		o.logger.Infof("run %s failed: %v", runID, err)
	}
	o.emit(OrchestratorEvent{Type: EventSessionDone, RunID: runID, Iteration: iteration, Error: err})
}
