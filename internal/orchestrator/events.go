package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventIterationStarted indicates a new plan/execute/fuse iteration began.
	EventIterationStarted EventType = "iteration_started"
	// EventPlanReady indicates the planner reply compiled into a graph.
	EventPlanReady EventType = "plan_ready"
	// EventTaskQueued indicates a task's dependencies settled and it is ready.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates a task's tool is being invoked.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was skipped after an upstream failure.
	EventTaskSkipped EventType = "task_skipped"
	// EventFuseStarted indicates the fuser was called.
	EventFuseStarted EventType = "fuse_started"
	// EventReplan indicates the fuser asked for another iteration.
	EventReplan EventType = "replan"
	// EventSessionDone indicates the run produced an answer or failed.
	EventSessionDone EventType = "session_done"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
// These events drive the TUI and the headless progress printer.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the Run call that produced the event.
	RunID string
	// Iteration is the zero-based loop iteration.
	Iteration int
	// TaskID is the id of the related task, if applicable.
	TaskID int
	// Tool is the name of the related task's tool, if applicable.
	Tool string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
