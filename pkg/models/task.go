// Package models contains the core data types shared across agentgate packages.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FuseToolName is the reserved operation name that closes a plan graph.
const FuseToolName = "fuse"

// TaskState represents the current state of a task.
type TaskState string

const (
	// TaskStatePending indicates the task is waiting on its dependencies.
	TaskStatePending TaskState = "pending"
	// TaskStateReady indicates every dependency completed and the task can run.
	TaskStateReady TaskState = "ready"
	// TaskStateRunning indicates the task's tool is being invoked.
	TaskStateRunning TaskState = "running"
	// TaskStateCompleted indicates the tool returned a result.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed indicates the tool returned an error or could not be resolved.
	TaskStateFailed TaskState = "failed"
	// TaskStateSkipped indicates an upstream task failed so this one never ran.
	TaskStateSkipped TaskState = "skipped"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStatePending, TaskStateReady, TaskStateRunning,
		TaskStateCompleted, TaskStateFailed, TaskStateSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state can no longer change.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateSkipped:
		return true
	default:
		return false
	}
}

// Task is one compiled step of a plan.
type Task struct {
	// ID is the position of the task in the plan, starting at 1.
	ID int `json:"id"`
	// Name is the operation the task invokes, or FuseToolName.
	Name string `json:"name"`
	// Tool is the resolved operation. Nil for the fuse task and for unknown tools.
	Tool Tool `json:"-"`
	// Args holds the parsed arguments, possibly containing $N placeholders.
	Args []any `json:"args"`
	// Dependencies lists the ids this task waits on, all lower than ID.
	Dependencies []int `json:"dependencies"`
	// Thought is the planner's rationale for the step, if any.
	Thought string `json:"thought,omitempty"`
	// IsFuse is true for the terminal marker task.
	IsFuse bool `json:"is_fuse"`
	// Synthetic marks steps inserted by the parser rather than the planner.
	Synthetic bool `json:"synthetic,omitempty"`
	// State is the current lifecycle state.
	State TaskState `json:"state"`
	// Result is the value returned by the tool once completed.
	Result any `json:"result,omitempty"`
	// Err is the captured failure once failed.
	Err error `json:"-"`
	// Observation is the text fed back to the planner and fuser.
	Observation string `json:"observation,omitempty"`
	// ResolveErr is set at parse time when Name could not be resolved.
	ResolveErr error `json:"-"`
}

// HasObservation reports whether the task produced any observation text.
func (t *Task) HasObservation() bool {
	return t.State.IsTerminal() && !t.IsFuse
}

// ActionString renders the invocation, e.g. `search(weather)`.
func (t *Task) ActionString() string {
	if s, ok := t.Tool.(ActionStringer); ok {
		return s.StringifyAction(t.Args)
	}
	return t.Name + FormatArgs(t.Args)
}

// ThoughtActionObservation renders the task the way the planner and fuser read it:
//
//	Thought: <thought>
//	<idx. >action
//	Observation: <observation>
func (t *Task) ThoughtActionObservation(includeAction, includeThought, includeIdx bool) string {
	var b strings.Builder
	if t.Thought != "" && includeThought {
		fmt.Fprintf(&b, "Thought: %s\n", t.Thought)
	}
	if includeAction {
		if includeIdx {
			fmt.Fprintf(&b, "%d. ", t.ID)
		}
		b.WriteString(t.ActionString())
		b.WriteString("\n")
	}
	if t.HasObservation() {
		fmt.Fprintf(&b, "Observation: %s\n", t.Observation)
	}
	return b.String()
}

// StringifyResult converts a tool result into observation text using the
// tool's ResultStringer when it has one.
func StringifyResult(tool Tool, result any) string {
	if s, ok := tool.(ResultStringer); ok {
		return s.StringifyResult(result)
	}
	return Stringify(result)
}

// Stringify is the default conversion of a value into observation text.
// Strings pass through, Stringers are honored, everything else is JSON.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool, int, int64, float64:
		return fmt.Sprint(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// FormatArgs renders an argument list for display. A single argument is shown
// bare, several are shown as a tuple of literals.
func FormatArgs(args []any) string {
	if len(args) == 1 {
		return "(" + Stringify(args[0]) + ")"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatLiteral(a)
	}
	if len(args) == 0 {
		return "()"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// FormatLiteral renders a value in the literal syntax accepted by the plan parser.
func FormatLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(x) + "'"
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return Stringify(v)
	}
}
