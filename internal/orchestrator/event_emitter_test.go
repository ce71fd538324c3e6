package orchestrator

import (
	"testing"
)

func TestEventEmitter(t *testing.T) {
	e := NewEventEmitter(2, nil)

	e.Emit(OrchestratorEvent{Type: EventTaskStarted, TaskID: 1})
	e.Emit(OrchestratorEvent{Type: EventTaskCompleted, TaskID: 1})
	// Buffer full and nobody reading: dropped after the timeout.
	e.Emit(OrchestratorEvent{Type: EventSessionDone})

	if got := e.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}

	first := <-e.Events()
	if first.Type != EventTaskStarted || first.Timestamp.IsZero() {
		t.Errorf("first event = %+v, want stamped task_started", first)
	}
	e.Close()

	var n int
	for range e.Events() {
		n++
	}
	if n != 1 {
		t.Errorf("remaining events = %d, want 1", n)
	}
}

func TestEventEmitter_NilIsNoop(t *testing.T) {
	var e *EventEmitter
	e.Emit(OrchestratorEvent{Type: EventSessionDone})
}
