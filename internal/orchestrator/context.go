package orchestrator

import (
	"strings"

	"github.com/ShayCichocki/agentgate/internal/graph"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// AppendScratchpad adds one iteration's thought/action/observation text to
// the scratchpad, in task id order and without the fuse task.
func AppendScratchpad(scratchpad string, g *graph.TaskGraph) string {
	var b strings.Builder
	b.WriteString(scratchpad)
	b.WriteString("\n\n")
	for _, t := range g.Tasks() {
		if t.IsFuse {
			continue
		}
		b.WriteString(t.ThoughtActionObservation(true, true, false))
	}
	return strings.TrimSpace(b.String())
}

// ReplanContext renders an iteration for the next planner call:
//
//	Thought: ...
//	1. action 1
//	Observation: xxx
//	2. action 2
//	Observation: yyy
//
//	Thought: <fusion thought>
func ReplanContext(g *graph.TaskGraph, fusionThought string) string {
	var steps []string
	for _, t := range g.Tasks() {
		if t.IsFuse {
			continue
		}
		steps = append(steps, t.ThoughtActionObservation(true, true, true))
	}
	return strings.Join(steps, "\n") + "\n\nThought: " + fusionThought
}

// FormatContexts labels every accumulated context and ends with the marker
// the planner continues from.
func FormatContexts(contexts []string) string {
	var b strings.Builder
	for _, c := range contexts {
		b.WriteString("Previous Plan:\n\n")
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	b.WriteString("Current Plan:\n\n")
	return b.String()
}

// collectSources returns the attribution of completed tasks in id order.
func collectSources(g *graph.TaskGraph) []models.Source {
	var out []models.Source
	for _, t := range g.Tasks() {
		if t.State != models.TaskStateCompleted {
			continue
		}
		if src, ok := models.SourcesOf(t.Result); ok {
			out = append(out, src)
		}
	}
	return out
}
