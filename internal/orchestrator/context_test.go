package orchestrator

import (
	"testing"

	"github.com/ShayCichocki/agentgate/pkg/models"
)

func completedGraph(t *testing.T) []*models.Task {
	t.Helper()
	lookup := newStub("lookup", nil)
	t1 := task(1, lookup, []any{"a"})
	t1.Thought = "first"
	t1.State = models.TaskStateCompleted
	t1.Observation = "A"
	t2 := task(2, lookup, []any{"x", 2})
	t2.State = models.TaskStateFailed
	t2.Observation = "Error: down"
	f := fuseTask(3)
	f.State = models.TaskStateCompleted
	return []*models.Task{t1, t2, f}
}

func TestAppendScratchpad(t *testing.T) {
	g := buildGraph(t, completedGraph(t)...)

	got := AppendScratchpad("", g)
	want := "Thought: first\nlookup(a)\nObservation: A\nlookup('x', 2)\nObservation: Error: down"
	if got != want {
		t.Errorf("AppendScratchpad() =\n%q\nwant\n%q", got, want)
	}

	again := AppendScratchpad(got, g)
	if again != want+"\n\n"+want {
		t.Errorf("AppendScratchpad() does not accumulate:\n%q", again)
	}
}

func TestReplanContext(t *testing.T) {
	g := buildGraph(t, completedGraph(t)...)

	got := ReplanContext(g, "need B")
	want := "Thought: first\n1. lookup(a)\nObservation: A\n\n2. lookup('x', 2)\nObservation: Error: down\n\n\nThought: need B"
	if got != want {
		t.Errorf("ReplanContext() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatContexts(t *testing.T) {
	tests := []struct {
		name     string
		contexts []string
		want     string
	}{
		{"none", nil, "Current Plan:\n\n"},
		{"one", []string{"c1"}, "Previous Plan:\n\nc1\n\nCurrent Plan:\n\n"},
		{"two", []string{"c1", "c2"}, "Previous Plan:\n\nc1\n\nPrevious Plan:\n\nc2\n\nCurrent Plan:\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatContexts(tt.contexts); got != tt.want {
				t.Errorf("FormatContexts() = %q, want %q", got, tt.want)
			}
		})
	}
}
