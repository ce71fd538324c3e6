package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/agentgate/internal/config"
	"github.com/ShayCichocki/agentgate/internal/fuser"
	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/orchestrator"
	"github.com/ShayCichocki/agentgate/internal/planner"
	"github.com/ShayCichocki/agentgate/internal/tools"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// app is the wired gateway: tools, planner, fuser and orchestrator.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	tracker    *llm.TokenTracker
	registry   *tools.Registry
	deps       tools.BuildDeps
	extra      []models.Tool
	closeTools func() error
	orch       *orchestrator.Orchestrator
	gateway    *orchestrator.Gateway
}

// newLogger opens the configured log file.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(cfg.Logging.Path, logging.ParseLevel(cfg.Logging.Level))
}

// newClient creates the model client from config.
func newClient(cfg *config.Config, logger *logging.Logger) (*llm.Client, error) {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(llm.ClientConfig{
		Model:             anthropic.Model(cfg.Planner.Model),
		APIKey:            key,
		UseAWSBedrock:     cfg.Anthropic.UseBedrock,
		AWSRegion:         cfg.Anthropic.AWSRegion,
		AWSProfile:        cfg.Anthropic.AWSProfile,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}
	return client, nil
}

// newApp builds the gateway on top of a real model client.
func newApp(cfg *config.Config, logger *logging.Logger, emitter *orchestrator.EventEmitter) (*app, error) {
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := assemble(cfg, client, logger, emitter)
	if err != nil {
		return nil, err
	}
	a.tracker = client.Tracker()
	return a, nil
}

// assemble wires everything that sits on top of the completer. A missing
// registry file leaves only the summarize tool registered.
func assemble(cfg *config.Config, client llm.Completer, logger *logging.Logger, emitter *orchestrator.EventEmitter) (*app, error) {
	a := &app{
		cfg:        cfg,
		logger:     logger,
		closeTools: func() error { return nil },
		deps: tools.BuildDeps{
			Completer:  client,
			HTTPClient: &http.Client{Timeout: 60 * time.Second},
			Logger:     logger,
		},
	}
	a.extra = []models.Tool{tools.NewSummarizeTool(client, cfg.Fuser.Model, logger)}

	built, err := a.loadTools()
	if err != nil {
		return nil, err
	}
	registry, err := tools.NewRegistry(append(built, a.extra...)...)
	if err != nil {
		a.closeTools()
		return nil, fmt.Errorf("register tools: %w", err)
	}
	a.registry = registry

	pl, err := planner.New(planner.Config{
		Client:    client,
		Tools:     registry,
		Model:     cfg.Planner.Model,
		MaxTokens: cfg.Planner.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		a.closeTools()
		return nil, err
	}
	fu, err := fuser.New(fuser.Config{
		Client:    client,
		Model:     cfg.Fuser.Model,
		MaxTokens: cfg.Planner.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		a.closeTools()
		return nil, err
	}

	orch, err := orchestrator.New(
		orchestrator.RequiredConfig{Planner: pl, Fuser: fu, Tools: registry},
		orchestrator.WithMaxIterations(cfg.Gateway.MaxIterations),
		orchestrator.WithStreaming(cfg.Planner.Stream),
		orchestrator.WithLogger(logger),
		orchestrator.WithEventEmitter(emitter),
	)
	if err != nil {
		a.closeTools()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	a.orch = orch
	a.gateway = orchestrator.NewGateway(orch)
	return a, nil
}

// loadTools builds the tools declared in the registry file.
func (a *app) loadTools() ([]models.Tool, error) {
	path := a.cfg.Tools.Registry
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		a.logger.Infof("no tool registry at %s; only built-in tools are available", path)
		return nil, nil
	}
	file, err := tools.LoadFile(path)
	if err != nil {
		return nil, err
	}
	built, closer, err := file.Build(a.deps)
	if err != nil {
		return nil, fmt.Errorf("build tools from %s: %w", path, err)
	}
	a.closeTools = closer
	return built, nil
}

// watcher returns a registry watcher that owns the current tool closer.
func (a *app) watcher() *tools.Watcher {
	w := tools.NewWatcher(a.cfg.Tools.Registry, a.registry, a.deps, a.extra, a.closeTools)
	a.closeTools = func() error { return nil }
	return w
}

// Close releases tool resources.
func (a *app) Close() error {
	return a.closeTools()
}

// usage summarizes token spend when a real client is in use.
func (a *app) usage() string {
	if a.tracker == nil {
		return ""
	}
	in, out := a.tracker.Total()
	return fmt.Sprintf("%d calls, %d input / %d output tokens, ~$%.4f", a.tracker.Calls(), in, out, a.tracker.Cost())
}
