// Package planner asks a language model for a plan in the numbered
// "N. tool(args)" format the plan parser compiles.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/orchestrator"
)

// Describer renders the numbered tool list shown to the model.
type Describer interface {
	Describe() string
}

// Config configures a Planner.
type Config struct {
	// Client produces completions. When it also implements llm.Streamer,
	// PlanStream delivers text as it is generated.
	Client llm.Completer
	// Tools is read on every call so registry reloads are picked up.
	Tools Describer
	// Model overrides the client's default model.
	Model string
	// MaxTokens caps the plan length.
	MaxTokens int64
	// ExamplePrompt defaults to DefaultExamplePrompt.
	ExamplePrompt string
	// ExamplePromptReplan defaults to ExamplePrompt.
	ExamplePromptReplan string
	Logger              *logging.Logger
}

// Planner implements orchestrator.StreamingPlanner on top of an llm client.
type Planner struct {
	client         llm.Completer
	streamer       llm.Streamer
	tools          Describer
	model          string
	maxTokens      int64
	examples       string
	replanExamples string
	logger         *logging.Logger
}

var _ orchestrator.StreamingPlanner = (*Planner)(nil)

// New creates a Planner.
func New(cfg Config) (*Planner, error) {
	if cfg.Client == nil || cfg.Tools == nil {
		return nil, errors.New("planner: client and tools are required")
	}
	examples := cfg.ExamplePrompt
	if examples == "" {
		examples = DefaultExamplePrompt
	}
	replan := cfg.ExamplePromptReplan
	if replan == "" {
		replan = examples
	}
	p := &Planner{
		client:         cfg.Client,
		tools:          cfg.Tools,
		model:          cfg.Model,
		maxTokens:      cfg.MaxTokens,
		examples:       examples,
		replanExamples: replan,
		logger:         cfg.Logger.With("planner"),
	}
	if s, ok := cfg.Client.(llm.Streamer); ok {
		p.streamer = s
	}
	return p, nil
}

// request builds the completion request for a plan call.
func (p *Planner) request(req orchestrator.PlanRequest) llm.Request {
	examples := p.examples
	if req.IsReplan {
		examples = p.replanExamples
	}
	return llm.Request{
		Model:     p.model,
		System:    SystemPrompt(p.tools.Describe(), examples, req.IsReplan),
		Prompt:    HumanPrompt(req.Input, req.Context, req.IsReplan),
		MaxTokens: p.maxTokens,
		Stop:      []string{EndOfPlan},
	}
}

// Plan returns the complete plan text.
func (p *Planner) Plan(ctx context.Context, req orchestrator.PlanRequest) (string, error) {
	r := p.request(req)
	p.logger.Debugf("planning (replan=%v)", req.IsReplan)
	text, err := p.client.Complete(ctx, r)
	if err != nil {
		return "", fmt.Errorf("plan completion: %w", err)
	}
	p.logger.Block("Plan", text)
	return text, nil
}

// PlanStream delivers plan text as the model produces it. A client that
// cannot stream is asked for the whole plan, which is delivered as one chunk.
func (p *Planner) PlanStream(ctx context.Context, req orchestrator.PlanRequest, onChunk func(string) error) error {
	if p.streamer == nil {
		text, err := p.Plan(ctx, req)
		if err != nil {
			return err
		}
		return onChunk(text)
	}

	r := p.request(req)
	p.logger.Debugf("streaming plan (replan=%v)", req.IsReplan)
	text, err := p.streamer.Stream(ctx, r, onChunk)
	p.logger.Block("Plan", text)
	if err != nil {
		return fmt.Errorf("plan stream: %w", err)
	}
	return nil
}
