package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentgate/internal/config"
	"github.com/ShayCichocki/agentgate/internal/orchestrator"
	"github.com/ShayCichocki/agentgate/internal/state"
	"github.com/ShayCichocki/agentgate/internal/tui"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

var (
	runMaxIterations int
	runStream        bool
	runTools         string
	runTUI           bool
	runJSON          bool
	runQuiet         bool
)

var runCmd = &cobra.Command{
	Use:   "run <question>",
	Short: "Answer a question through the gateway",
	Long: `Answer a question by planning tool calls, executing them in parallel,
and fusing the observations.

Progress is printed as tasks start and settle. Use --tui for a live view,
--json for machine-readable output, or --quiet to print only the answer.

Examples:
  agentgate run "What was EMEA revenue in 2024?"
  agentgate run --stream --max-iterations 3 "Compare 2023 and 2024 sales"
  agentgate run --tools ./tools.yaml --json "How many regions are there?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuestion,
}

func init() {
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "Plan/fuse iterations allowed (default from config)")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "Start tasks while the plan is still streaming")
	runCmd.Flags().StringVar(&runTools, "tools", "", "Tool registry file (default from config)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show a live progress view")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the answer and sources as JSON")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Print only the answer")
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("max-iterations") {
		cfg.Gateway.MaxIterations = runMaxIterations
	}
	if cmd.Flags().Changed("stream") {
		cfg.Planner.Stream = runStream
	}
	if runTools != "" {
		cfg.Tools.Registry = runTools
	}
	return cfg.Validate()
}

func runQuestion(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	// Captured for the history record written on return.
	var (
		answerText string
		runErr     error
	)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	emitter := orchestrator.NewEventEmitter(256, logger)
	a, err := newApp(cfg, logger, emitter)
	if err != nil {
		return err
	}
	defer a.Close()

	runID := uuid.New().String()
	var rec *state.Recorder
	if db := openHistory(cfg, logger); db != nil {
		defer db.Close()
		if err := db.BeginRun(&state.Run{ID: runID, Input: question, Origin: "cli"}); err != nil {
			logger.Infof("history: %v", err)
		} else {
			rec = state.NewRecorder(db, runID, logger)
			defer func() {
				if err := db.FinishRun(runID, answerText, runErr); err != nil {
					logger.Infof("history: %v", err)
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var answer models.Answer
	if runTUI {
		answer, err = runWithTUI(ctx, a, emitter, rec, question)
	} else {
		answer, err = runHeadless(ctx, a, emitter, rec, question, cmd.ErrOrStderr())
	}
	answerText, runErr = answer.Output, err
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case runJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	case runQuiet:
		fmt.Fprintln(out, answer.Output)
	default:
		printAnswer(out, answer)
		if u := a.usage(); u != "" {
			fmt.Fprintf(out, "\n%s %s\n", color.New(color.Faint).Sprint("usage:"), u)
		}
	}
	return nil
}

// runHeadless prints events to w while the gateway runs.
func runHeadless(ctx context.Context, a *app, emitter *orchestrator.EventEmitter, rec *state.Recorder, question string, w io.Writer) (models.Answer, error) {
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for e := range emitter.Events() {
			rec.Record(e)
			if !runQuiet && !runJSON {
				printEvent(w, e)
			}
		}
	}()

	answer, err := a.gateway.Call(ctx, question)
	emitter.Close()
	<-printed
	return answer, err
}

// runWithTUI drives the progress view while the gateway runs.
func runWithTUI(ctx context.Context, a *app, emitter *orchestrator.EventEmitter, rec *state.Recorder, question string) (models.Answer, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program, view := tui.NewProgressProgram(question, a.orch.MaxIterations())
	events := make(chan orchestrator.OrchestratorEvent, 64)
	go func() {
		defer close(events)
		for e := range emitter.Events() {
			rec.Record(e)
			events <- e
		}
	}()
	go tui.Forward(program, events)

	type result struct {
		answer models.Answer
		err    error
	}
	done := make(chan result, 1)
	go func() {
		answer, err := a.gateway.Call(ctx, question)
		done <- result{answer, err}
		program.Send(tui.DoneMsg{Answer: answer, Err: err})
	}()

	if _, err := program.Run(); err != nil {
		return models.Answer{}, fmt.Errorf("run progress view: %w", err)
	}
	if view.Cancelled() {
		cancel()
	}
	res := <-done
	emitter.Close()
	if view.Cancelled() && res.err != nil {
		return models.Answer{}, fmt.Errorf("run cancelled: %w", res.err)
	}
	return res.answer, res.err
}

// printEvent renders one progress line.
func printEvent(w io.Writer, e orchestrator.OrchestratorEvent) {
	faint := color.New(color.Faint).SprintFunc()
	switch e.Type {
	case orchestrator.EventIterationStarted:
		fmt.Fprintf(w, "%s iteration %d\n", color.CyanString("▸"), e.Iteration+1)
	case orchestrator.EventPlanReady:
		fmt.Fprintf(w, "  %s plan: %s\n", faint("·"), e.Message)
	case orchestrator.EventTaskStarted:
		fmt.Fprintf(w, "  %s %d. %s\n", color.BlueString("●"), e.TaskID, e.Message)
	case orchestrator.EventTaskCompleted:
		fmt.Fprintf(w, "  %s %d. %s\n", color.GreenString("✓"), e.TaskID, e.Tool)
	case orchestrator.EventTaskFailed:
		fmt.Fprintf(w, "  %s %d. %s: %v\n", color.RedString("✗"), e.TaskID, e.Tool, e.Error)
	case orchestrator.EventTaskSkipped:
		fmt.Fprintf(w, "  %s %d. %s\n", color.YellowString("⊘"), e.TaskID, e.Message)
	case orchestrator.EventFuseStarted:
		fmt.Fprintf(w, "  %s fusing\n", faint("·"))
	case orchestrator.EventReplan:
		fmt.Fprintf(w, "  %s replan: %s\n", color.YellowString("↻"), e.Message)
	}
}

// printAnswer renders the answer and its sources.
func printAnswer(w io.Writer, answer models.Answer) {
	fmt.Fprintf(w, "\n%s\n%s\n", color.New(color.Bold).Sprint("Answer:"), answer.Output)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", color.New(color.Bold).Sprint("Sources:"))
	for _, s := range answer.Sources {
		fmt.Fprintf(w, "  - %s (%s)", s.ToolName, s.ToolType)
		if len(s.Metadata) > 0 {
			fmt.Fprintf(w, ": %s", models.FormatLiteral(s.Metadata))
		}
		fmt.Fprintln(w)
	}
}
