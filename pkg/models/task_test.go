package models

import (
	"context"
	"errors"
	"testing"
)

func TestTaskState_Valid(t *testing.T) {
	tests := []struct {
		name  string
		state TaskState
		want  bool
	}{
		{"pending is valid", TaskStatePending, true},
		{"ready is valid", TaskStateReady, true},
		{"running is valid", TaskStateRunning, true},
		{"completed is valid", TaskStateCompleted, true},
		{"failed is valid", TaskStateFailed, true},
		{"skipped is valid", TaskStateSkipped, true},
		{"empty string is invalid", TaskState(""), false},
		{"unknown state is invalid", TaskState("done"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Valid(); got != tt.want {
				t.Errorf("TaskState(%q).Valid() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestTaskState_IsTerminal(t *testing.T) {
	tests := []struct {
		state TaskState
		want  bool
	}{
		{TaskStatePending, false},
		{TaskStateReady, false},
		{TaskStateRunning, false},
		{TaskStateCompleted, true},
		{TaskStateFailed, true},
		{TaskStateSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

type stubTool struct{ name string }

func (s stubTool) Name() string     { return s.name }
func (s stubTool) Describe() string { return s.name + "()" }
func (s stubTool) Invoke(context.Context, []any) (any, error) {
	return nil, errors.New("not implemented")
}

type quotingTool struct{ stubTool }

func (quotingTool) StringifyAction(args []any) string { return "custom action" }
func (quotingTool) StringifyResult(result any) string { return "<" + Stringify(result) + ">" }

func TestTask_ThoughtActionObservation(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		action  bool
		thought bool
		idx     bool
		want    string
	}{
		{
			name:    "full completed task",
			task:    Task{ID: 1, Name: "search", Args: []any{"weather"}, Thought: "look it up", State: TaskStateCompleted, Observation: "sunny"},
			action:  true,
			thought: true,
			want:    "Thought: look it up\nsearch(weather)\nObservation: sunny\n",
		},
		{
			name:   "with index and no thought",
			task:   Task{ID: 3, Name: "add", Args: []any{1, 2}, Thought: "sum", State: TaskStateCompleted, Observation: "3"},
			action: true,
			idx:    true,
			want:   "3. add(1, 2)\nObservation: 3\n",
		},
		{
			name:    "pending task has no observation",
			task:    Task{ID: 2, Name: "search", Args: []any{"x"}, State: TaskStatePending},
			action:  true,
			thought: true,
			want:    "search(x)\n",
		},
		{
			name:    "custom action stringer",
			task:    Task{ID: 1, Name: "q", Tool: quotingTool{stubTool{"q"}}, State: TaskStateSkipped, Observation: "skipped"},
			action:  true,
			thought: true,
			want:    "custom action\nObservation: skipped\n",
		},
		{
			name:   "empty args",
			task:   Task{ID: 1, Name: "now", State: TaskStateCompleted, Observation: "noon"},
			action: true,
			want:   "now()\nObservation: noon\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.task.ThoughtActionObservation(tt.action, tt.thought, tt.idx)
			if got != tt.want {
				t.Errorf("ThoughtActionObservation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringifyResult(t *testing.T) {
	if got := StringifyResult(quotingTool{stubTool{"q"}}, "v"); got != "<v>" {
		t.Errorf("StringifyResult(custom) = %q, want %q", got, "<v>")
	}
	if got := StringifyResult(stubTool{"s"}, []any{"a", 1}); got != `["a",1]` {
		t.Errorf("StringifyResult(default) = %q, want %q", got, `["a",1]`)
	}
	if got := StringifyResult(nil, ToolResult{Output: "payload"}); got != "payload" {
		t.Errorf("StringifyResult(ToolResult) = %q, want %q", got, "payload")
	}
}

func TestFormatLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"it's", `'it\'s'`},
		{true, "True"},
		{nil, "None"},
		{3, "3"},
		{2.5, "2.5"},
		{[]any{"a", 1}, "['a', 1]"},
	}
	for _, tt := range tests {
		if got := FormatLiteral(tt.in); got != tt.want {
			t.Errorf("FormatLiteral(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
