package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/agentgate/internal/graph"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// Scheduler executes a task graph. Every task whose dependencies have settled
// runs in its own goroutine; there is no concurrency cap beyond what the tools
// impose. A single coordinator goroutine owns all task state, so tools never
// see or mutate another task.
type Scheduler struct {
	logger *logging.Logger
	notify func(OrchestratorEvent)
}

// NewScheduler creates a scheduler.
func NewScheduler(logger *logging.Logger) *Scheduler {
	return &Scheduler{logger: logger.With("scheduler")}
}

// OnEvent registers a callback for task lifecycle events. The callback runs
// on the coordinator goroutine and must not block.
func (s *Scheduler) OnEvent(fn func(OrchestratorEvent)) {
	s.notify = fn
}

// Run executes a fully known graph. It returns once every task is completed,
// failed or skipped. Task failures are recorded on the tasks; Run itself only
// fails for a malformed graph or a cancelled context.
func (s *Scheduler) Run(ctx context.Context, g *graph.TaskGraph) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("validate graph: %w", err)
	}

	ex := s.newExecution(ctx, g)
	for _, t := range g.Tasks() {
		ex.admit(t)
	}
	ex.wait()

	if pending := g.Pending(); len(pending) > 0 {
		s.logger.Infof("graph finished with unsettled tasks %v", pending)
	}
	s.logger.Debugf("graph of %d tasks finished", g.Len())
	return ctx.Err()
}

// RunStream executes tasks as they arrive on the channel. It starts each task
// as soon as its dependencies settle, stops reading after the fuse task or
// when the channel closes, and returns the assembled graph once every
// received task is terminal.
func (s *Scheduler) RunStream(ctx context.Context, tasks <-chan *models.Task) (*graph.TaskGraph, error) {
	g := graph.New()
	g.SetDebugLog(s.logger.Debugf)
	ex := s.newExecution(ctx, g)

	var streamErr error
	in := tasks
	cancelled := ctx.Done()
	for in != nil || ex.inflight > 0 {
		select {
		case t, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			if err := g.AddChecked(t); err != nil {
				streamErr = fmt.Errorf("add streamed task %d: %w", t.ID, err)
				in = nil
				continue
			}
			ex.admit(t)
			if t.IsFuse {
				in = nil
			}
		case o := <-ex.done:
			ex.finish(o)
		case <-cancelled:
			cancelled = nil
			in = nil
		}
	}

	s.logger.Debugf("streamed graph of %d tasks finished", g.Len())
	if streamErr != nil {
		return g, streamErr
	}
	return g, ctx.Err()
}

// outcome is what a worker goroutine reports back to the coordinator.
type outcome struct {
	id     int
	result any
	err    error
}

// execution holds the coordinator state for one scheduler run.
type execution struct {
	s         *Scheduler
	ctx       context.Context
	g         *graph.TaskGraph
	admitted  map[int]bool
	remaining map[int]int
	// rootCause maps a failed or skipped task to the failed task that caused it.
	rootCause map[int]int
	inflight  int
	done      chan outcome
}

func (s *Scheduler) newExecution(ctx context.Context, g *graph.TaskGraph) *execution {
	return &execution{
		s:         s,
		ctx:       ctx,
		g:         g,
		admitted:  make(map[int]bool),
		remaining: make(map[int]int),
		rootCause: make(map[int]int),
		done:      make(chan outcome),
	}
}

// wait processes completions until nothing is in flight.
func (ex *execution) wait() {
	for ex.inflight > 0 {
		ex.finish(<-ex.done)
	}
}

// admit registers a task and counts its unsettled dependencies. Dependencies
// that already settled are accounted for immediately, which is what lets
// streamed tasks join a graph that is already running.
func (ex *execution) admit(t *models.Task) {
	if t.State == "" {
		t.State = models.TaskStatePending
	}
	ex.admitted[t.ID] = true

	count := 0
	for _, depID := range t.Dependencies {
		dep, ok := ex.g.Get(depID)
		if !ok {
			continue
		}
		switch {
		case !dep.State.IsTerminal():
			count++
		case dep.State == models.TaskStateCompleted || t.IsFuse:
		default:
			ex.skip(t, ex.rootCause[depID])
			return
		}
	}
	ex.remaining[t.ID] = count
	if count == 0 {
		ex.ready(t)
	}
}

// ready starts a task whose dependencies have all settled.
func (ex *execution) ready(t *models.Task) {
	t.State = models.TaskStateReady
	ex.emit(EventTaskQueued, t, "", nil)

	switch {
	case t.IsFuse:
		t.State = models.TaskStateCompleted
		ex.emit(EventTaskCompleted, t, "fuse", nil)
		ex.settle(t)
		return
	case t.ResolveErr != nil:
		ex.fail(t, t.ResolveErr)
		return
	case ex.ctx.Err() != nil:
		ex.fail(t, ex.ctx.Err())
		return
	}

	args := models.SubstituteArgs(t.Args, t.Dependencies, func(id int) (string, bool) {
		dep, ok := ex.g.Get(id)
		if !ok || dep.State != models.TaskStateCompleted {
			return "", false
		}
		return dep.Observation, true
	})

	t.State = models.TaskStateRunning
	ex.inflight++
	ex.emit(EventTaskStarted, t, t.ActionString(), nil)
	ex.s.logger.Debugf("task %d: %s%s", t.ID, t.Name, models.FormatArgs(args))

	go func(id int, tool models.Tool, args []any) {
		o := outcome{id: id}
		defer func() {
			if r := recover(); r != nil {
				o.result = nil
				o.err = fmt.Errorf("panic: %v", r)
			}
			ex.done <- o
		}()
		o.result, o.err = tool.Invoke(ex.ctx, args)
	}(t.ID, t.Tool, args)
}

// finish records a worker outcome.
func (ex *execution) finish(o outcome) {
	ex.inflight--
	t, ok := ex.g.Get(o.id)
	if !ok {
		return
	}
	if o.err != nil {
		ex.fail(t, o.err)
		return
	}
	t.Result = o.result
	t.Observation = models.StringifyResult(t.Tool, o.result)
	t.State = models.TaskStateCompleted
	ex.emit(EventTaskCompleted, t, "", nil)
	ex.settle(t)
}

func (ex *execution) fail(t *models.Task, err error) {
	t.Err = &TaskError{TaskID: t.ID, Tool: t.Name, Err: err}
	t.Observation = "Error: " + err.Error()
	t.State = models.TaskStateFailed
	ex.rootCause[t.ID] = t.ID
	ex.s.logger.Infof("task %d (%s) failed: %v", t.ID, t.Name, err)
	ex.emit(EventTaskFailed, t, "", t.Err)
	ex.settle(t)
}

func (ex *execution) skip(t *models.Task, cause int) {
	t.Observation = fmt.Sprintf("Skipped: not executed because task %d failed", cause)
	t.State = models.TaskStateSkipped
	ex.rootCause[t.ID] = cause
	ex.s.logger.Debugf("task %d skipped (upstream task %d failed)", t.ID, cause)
	ex.emit(EventTaskSkipped, t, t.Observation, nil)
	ex.settle(t)
}

// settle propagates a terminal task to its admitted dependents. The fuse task
// counts any terminal state as settled; other dependents of a failed or
// skipped task are skipped without running.
func (ex *execution) settle(t *models.Task) {
	for _, id := range ex.g.Dependents(t.ID) {
		if !ex.admitted[id] {
			continue
		}
		d, ok := ex.g.Get(id)
		if !ok || d.State != models.TaskStatePending {
			continue
		}
		if t.State == models.TaskStateCompleted || d.IsFuse {
			ex.remaining[id]--
			if ex.remaining[id] == 0 {
				ex.ready(d)
			}
			continue
		}
		ex.skip(d, ex.rootCause[t.ID])
	}
}

func (ex *execution) emit(typ EventType, t *models.Task, msg string, err error) {
	if ex.s.notify == nil {
		return
	}
	ex.s.notify(OrchestratorEvent{Type: typ, TaskID: t.ID, Tool: t.Name, Message: msg, Error: err})
}
