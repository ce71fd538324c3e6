// Package llm provides the Anthropic transport used by the planner, fuser and LLM-backed tools.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"golang.org/x/time/rate"

	"github.com/ShayCichocki/agentgate/internal/logging"
)

// ErrNoAPIKey is returned when no API key is configured and Bedrock is not used.
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY environment variable is not set")

// DefaultMaxTokens is used when a request does not set MaxTokens.
const DefaultMaxTokens int64 = 4096

// Request is a single-turn completion request.
type Request struct {
	// Model overrides the client's model when set.
	Model string
	// System is the optional system prompt.
	System string
	// Prompt is the user message.
	Prompt string
	// MaxTokens caps the reply length.
	MaxTokens int64
	// Stop lists stop sequences.
	Stop []string
}

// Completer returns the full reply to a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Streamer delivers a reply incrementally and returns the full text when done.
type Streamer interface {
	Stream(ctx context.Context, req Request, onText func(string) error) (string, error)
}

// Client wraps the Anthropic SDK client with token tracking and rate limiting.
type Client struct {
	inner   anthropic.Client
	model   anthropic.Model
	bedrock bool
	tracker *TokenTracker
	limiter *rate.Limiter
	logger  *logging.Logger
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the default Claude model (e.g., anthropic.ModelClaudeSonnet4_20250514).
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint, mainly for tests and proxies.
	BaseURL string
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// RequestsPerSecond limits request starts. Zero or less disables limiting.
	RequestsPerSecond float64
	// Burst is the limiter burst size.
	Burst int
	// Logger receives request summaries and, at debug level, raw exchanges.
	Logger *logging.Logger
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, ErrNoAPIKey
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	return &Client{
		inner:   anthropic.NewClient(opts...),
		model:   model,
		bedrock: cfg.UseAWSBedrock,
		tracker: NewTokenTracker(),
		limiter: newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:  cfg.Logger.With("llm"),
	}, nil
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock inference profile format.
// Bedrock uses cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Model returns the configured model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// resolveModel picks the request's model, translated for Bedrock when needed.
func (c *Client) resolveModel(name string) anthropic.Model {
	if name == "" {
		return c.model
	}
	if c.bedrock && !strings.HasPrefix(name, "us.anthropic") {
		return translateModelForBedrock(anthropic.Model(name))
	}
	return anthropic.Model(name)
}

func (c *Client) params(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     c.resolveModel(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	return params
}

// Complete sends the prompt and returns the concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	params := c.params(req)
	c.logger.Block("Request ("+string(params.Model)+")", req.Prompt)

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("messages request: %w", err)
	}
	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var b strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	out := b.String()
	c.logger.Block("Response", out)
	c.logger.Infof("completion model=%s in=%d out=%d", params.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return out, nil
}

// Stream sends the prompt and calls onText with each text delta as it arrives.
// An error from onText stops reading and is returned.
func (c *Client) Stream(ctx context.Context, req Request, onText func(string) error) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	params := c.params(req)
	c.logger.Block("Streaming request ("+string(params.Model)+")", req.Prompt)

	stream := c.inner.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	var b strings.Builder
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return b.String(), fmt.Errorf("accumulate stream event: %w", err)
		}
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
		if !ok || text.Text == "" {
			continue
		}
		b.WriteString(text.Text)
		if onText != nil {
			if err := onText(text.Text); err != nil {
				return b.String(), err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return b.String(), fmt.Errorf("messages stream: %w", err)
	}

	c.tracker.Add(message.Usage.InputTokens, message.Usage.OutputTokens)
	out := b.String()
	c.logger.Block("Streamed response", out)
	c.logger.Infof("stream model=%s in=%d out=%d", params.Model, message.Usage.InputTokens, message.Usage.OutputTokens)
	return out, nil
}
