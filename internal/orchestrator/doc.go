// Package orchestrator drives the plan, execute, fuse and replan loop.
//
// The orchestrator package provides:
//   - Scheduler: runs a task graph concurrently, starting each task as soon as
//     its dependencies settle, in batch or streaming mode
//   - Orchestrator: asks the planner for a plan, executes it, asks the fuser
//     for an answer, and replans until the fuser finishes or the iteration
//     budget runs out
//   - Gateway: a blocking entry point for callers that want one answer
//
// Example usage:
//
//	orch, err := orchestrator.New(
//		orchestrator.RequiredConfig{Planner: p, Fuser: f, Tools: registry},
//		orchestrator.WithMaxIterations(2),
//	)
//	answer, err := orch.Run(ctx, "What was revenue growth in 2024?")
package orchestrator
