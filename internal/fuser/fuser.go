// Package fuser asks a language model to turn the executed plan's
// observations into an answer or a replan request.
package fuser

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/orchestrator"
)

// Config configures a Fuser.
type Config struct {
	Client llm.Completer
	// Model overrides the client's default model.
	Model     string
	MaxTokens int64
	// Prompt defaults to DefaultPrompt.
	Prompt string
	// FinalPrompt is used on the last iteration. It defaults to Prompt when
	// Prompt is set, and to DefaultFinalPrompt otherwise.
	FinalPrompt string
	Logger      *logging.Logger
}

// Fuser implements orchestrator.Fuser.
type Fuser struct {
	client      llm.Completer
	model       string
	maxTokens   int64
	prompt      string
	finalPrompt string
	logger      *logging.Logger
}

var _ orchestrator.Fuser = (*Fuser)(nil)

// New creates a Fuser.
func New(cfg Config) (*Fuser, error) {
	if cfg.Client == nil {
		return nil, errors.New("fuser: client is required")
	}
	prompt, final := cfg.Prompt, cfg.FinalPrompt
	switch {
	case prompt == "":
		prompt = DefaultPrompt
		if final == "" {
			final = DefaultFinalPrompt
		}
	case final == "":
		final = prompt
	}
	return &Fuser{
		client:      cfg.Client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		prompt:      prompt,
		finalPrompt: final,
		logger:      cfg.Logger.With("fuser"),
	}, nil
}

// Prompt renders the full fusion prompt for a request.
func (f *Fuser) Prompt(req orchestrator.FuseRequest) string {
	instructions := f.prompt
	if req.IsFinal {
		instructions = f.finalPrompt
	}
	return fmt.Sprintf("%s\nQuestion: %s\n\n%s\n", instructions, req.Input, req.Scratchpad)
}

// Fuse returns the model's raw reply.
func (f *Fuser) Fuse(ctx context.Context, req orchestrator.FuseRequest) (string, error) {
	f.logger.Debugf("fusing %d chars of scratchpad (final=%v)", len(req.Scratchpad), req.IsFinal)
	out, err := f.client.Complete(ctx, llm.Request{
		Model:     f.model,
		Prompt:    f.Prompt(req),
		MaxTokens: f.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("fusion completion: %w", err)
	}
	return out, nil
}
