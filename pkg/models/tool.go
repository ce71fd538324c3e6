package models

import "context"

// ToolCategory groups tools by the kind of work they do. The plan parser uses
// it to decide which steps get a summarization step inserted after them.
type ToolCategory string

const (
	// CategorySearch is a remote search service returning raw passages.
	CategorySearch ToolCategory = "search"
	// CategoryAnalyst turns a natural-language question into a structured query.
	CategoryAnalyst ToolCategory = "analyst"
	// CategorySQL runs a fixed SQL statement.
	CategorySQL ToolCategory = "sql"
	// CategoryFunction wraps an arbitrary Go function.
	CategoryFunction ToolCategory = "function"
	// CategorySummarize condenses the output of another step.
	CategorySummarize ToolCategory = "summarize"
)

// Tool is an operation the planner can reference by name.
type Tool interface {
	// Name is the identifier used in plan text.
	Name() string
	// Describe returns the signature and usage notes shown to the planner.
	Describe() string
	// Invoke runs the tool with already-substituted arguments.
	Invoke(ctx context.Context, args []any) (any, error)
}

// Categorized is implemented by tools that declare a category.
type Categorized interface {
	Category() ToolCategory
}

// ResultStringer is implemented by tools that render their results specially
// when they are substituted into a dependent's arguments.
type ResultStringer interface {
	StringifyResult(result any) string
}

// ActionStringer is implemented by tools that render their invocation specially
// in scratchpads and replan contexts.
type ActionStringer interface {
	StringifyAction(args []any) string
}

// CategoryOf returns the tool's category, or CategoryFunction when it declares none.
func CategoryOf(t Tool) ToolCategory {
	if c, ok := t.(Categorized); ok {
		return c.Category()
	}
	return CategoryFunction
}

// IsSearchLike reports whether the tool's output should be summarized before use.
func IsSearchLike(t Tool) bool {
	return t != nil && CategoryOf(t) == CategorySearch
}
