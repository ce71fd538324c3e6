package tools

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/plan"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// SummarizeTool condenses search output with a single completion.
// The plan parser inserts calls to it after search steps.
type SummarizeTool struct {
	completer llm.Completer
	model     string
	logger    *logging.Logger
}

// NewSummarizeTool creates the summarization tool. An empty model uses the
// completer's default.
func NewSummarizeTool(completer llm.Completer, model string, logger *logging.Logger) *SummarizeTool {
	return &SummarizeTool{completer: completer, model: model, logger: logger.With("summarize")}
}

// Name implements models.Tool.
func (s *SummarizeTool) Name() string { return plan.SummarizeToolName }

// Describe implements models.Tool.
func (s *SummarizeTool) Describe() string {
	return plan.SummarizeToolName + "(prompt: str) -> str:\n - Concisely summarizes search output\n"
}

// Category implements models.Categorized.
func (s *SummarizeTool) Category() models.ToolCategory { return models.CategorySummarize }

// Invoke implements models.Tool.
func (s *SummarizeTool) Invoke(ctx context.Context, args []any) (any, error) {
	prompt, err := firstArg(s.Name(), args)
	if err != nil {
		return nil, err
	}
	out, err := s.completer.Complete(ctx, llm.Request{Model: s.model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	s.logger.Debugf("summary: %d chars", len(out))
	return out, nil
}
