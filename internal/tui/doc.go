// Package tui provides the live terminal view for `agentgate run --tui`.
//
// The view is read-only: it folds orchestrator events into a RunState and
// renders the current iteration, phase, and per-task state with an activity
// log. Users can only quit with 'q' or Ctrl+C.
//
// Usage:
//
//	program, app := tui.NewProgressProgram(question, maxIterations)
//	go tui.Forward(program, emitter.Events())
//	go func() {
//	    answer, err := gateway.Call(ctx, question)
//	    program.Send(tui.DoneMsg{Answer: answer, Err: err})
//	}()
//	_, err := program.Run()
package tui
