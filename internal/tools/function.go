package tools

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/agentgate/pkg/models"
)

// Func is the signature of a Go function exposed as a tool.
type Func func(ctx context.Context, args []any) (any, error)

// FunctionTool exposes an arbitrary Go function to the planner.
type FunctionTool struct {
	name              string
	signature         string
	description       string
	outputDescription string
	fn                Func
}

// NewFunctionTool wraps fn. The signature is shown to the planner, e.g.
// "word_count(text: str) -> int"; it defaults to name(...).
func NewFunctionTool(name, signature, description, outputDescription string, fn Func) *FunctionTool {
	if signature == "" {
		signature = name + "(...)"
	}
	return &FunctionTool{
		name:              name,
		signature:         signature,
		description:       description,
		outputDescription: outputDescription,
		fn:                fn,
	}
}

// Name implements models.Tool.
func (f *FunctionTool) Name() string { return f.name }

// Describe implements models.Tool.
func (f *FunctionTool) Describe() string {
	return fmt.Sprintf("%s\n - %s\n - %s", f.signature, f.description, f.outputDescription)
}

// Category implements models.Categorized.
func (f *FunctionTool) Category() models.ToolCategory { return models.CategoryFunction }

// Invoke implements models.Tool.
func (f *FunctionTool) Invoke(ctx context.Context, args []any) (any, error) {
	out, err := f.fn(ctx, args)
	if err != nil {
		return nil, err
	}
	return models.ToolResult{
		Output: out,
		Sources: &models.Source{
			ToolType: string(models.CategoryFunction),
			ToolName: f.name,
		},
	}, nil
}
