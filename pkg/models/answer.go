package models

// Source attributes part of an answer to the tool that produced it.
type Source struct {
	// ToolType is the tool's category, e.g. "search" or "analyst".
	ToolType string `json:"tool_type"`
	// ToolName is the registry name of the tool.
	ToolName string `json:"tool_name"`
	// Metadata holds tool-specific attribution such as citations or table names.
	Metadata []any `json:"metadata"`
}

// ToolResult is the structured value returned by the built-in tools.
type ToolResult struct {
	// Output is the tool's payload.
	Output any `json:"output"`
	// Sources attributes the payload.
	Sources *Source `json:"sources,omitempty"`
}

// String renders only the payload so observations stay free of attribution noise.
func (r ToolResult) String() string {
	return Stringify(r.Output)
}

// Answer is the final result of a gateway run.
type Answer struct {
	// Output is the fused answer text.
	Output string `json:"output"`
	// Sources lists attribution gathered from every completed task.
	Sources []Source `json:"sources"`
}

// SourcesOf extracts attribution from a task result if it carries any.
func SourcesOf(result any) (Source, bool) {
	switch r := result.(type) {
	case ToolResult:
		if r.Sources != nil {
			return *r.Sources, true
		}
	case *ToolResult:
		if r != nil && r.Sources != nil {
			return *r.Sources, true
		}
	}
	return Source{}, false
}
