package orchestrator

import (
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/plan"
)

// DefaultMaxIterations bounds the plan/fuse loop when no option overrides it.
const DefaultMaxIterations = 2

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Planner produces plan text.
	Planner Planner
	// Fuser turns the scratchpad into an answer or a replan request.
	Fuser Fuser
	// Tools resolves the operation names used in plans.
	Tools plan.Resolver
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	maxIterations int
	stream        bool
	logger        *logging.Logger
	emitter       *EventEmitter
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{maxIterations: DefaultMaxIterations}
}

// WithMaxIterations sets how many plan/execute/fuse iterations may run.
func WithMaxIterations(n int) Option {
	return func(o *orchestratorOptions) { o.maxIterations = n }
}

// WithStreaming runs tasks while the planner is still producing the plan.
// The planner must implement StreamingPlanner; otherwise batch mode is used.
func WithStreaming(b bool) Option {
	return func(o *orchestratorOptions) { o.stream = b }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithEventEmitter sets the emitter that receives progress events.
func WithEventEmitter(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.emitter = e }
}
