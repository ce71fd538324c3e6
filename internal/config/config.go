// Package config loads agentgate settings from XDG paths, project overrides,
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ProjectFile is the project-level config file searched for in the current
// directory and its parents.
const ProjectFile = ".agentgate.yaml"

// EnvPrefix prefixes environment overrides, e.g. AGENTGATE_GATEWAY_MAX_ITERATIONS.
const EnvPrefix = "AGENTGATE"

// Config holds all configuration for agentgate.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Fuser     FuserConfig     `mapstructure:"fuser"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Server    ServerConfig    `mapstructure:"server"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// PlannerConfig holds planner model settings.
type PlannerConfig struct {
	Model     string `mapstructure:"model"`
	Stream    bool   `mapstructure:"stream"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// FuserConfig holds the model used for fusion and summarization.
type FuserConfig struct {
	Model string `mapstructure:"model"`
}

// GatewayConfig holds orchestration settings.
type GatewayConfig struct {
	// MaxIterations bounds the plan/execute/fuse loop.
	MaxIterations int `mapstructure:"max_iterations"`
}

// RateLimitConfig bounds request starts against the model API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ToolsConfig locates the tool registry file.
type ToolsConfig struct {
	Registry string `mapstructure:"registry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds log file settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// Default values.
const (
	DefaultModel        = "claude-sonnet-4-20250514"
	DefaultMaxTokens    = 4096
	DefaultRegistryPath = ".agentgate/tools.yaml"
	DefaultLogPath      = ".agentgate/logs/agentgate.log"
	DefaultHistoryPath  = ".agentgate/state.db"
)

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("gateway.max_iterations must be at least 1, got %d", c.Gateway.MaxIterations))
	}
	if c.Planner.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("planner.max_tokens must be positive, got %d", c.Planner.MaxTokens))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("ratelimit.requests_per_second must not be negative, got %v", c.RateLimit.RequestsPerSecond))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug or info, got %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (AGENTGATE_*, ANTHROPIC_API_KEY)
// 2. Project config (.agentgate.yaml in current directory or parent)
// 3. User config (~/.config/agentgate/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific file on top of the
// defaults. Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// newViper returns a viper instance with defaults and env bindings.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveToPath(cfg, GetUserConfigPath())
}

// SaveToPath writes the configuration to path, creating its directory.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("planner.model", cfg.Planner.Model)
	v.Set("planner.stream", cfg.Planner.Stream)
	v.Set("planner.max_tokens", cfg.Planner.MaxTokens)
	v.Set("fuser.model", cfg.Fuser.Model)
	v.Set("gateway.max_iterations", cfg.Gateway.MaxIterations)
	v.Set("ratelimit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.Set("ratelimit.burst", cfg.RateLimit.Burst)
	v.Set("tools.registry", cfg.Tools.Registry)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.path", cfg.Logging.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.use_bedrock", d.Anthropic.UseBedrock)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", d.Anthropic.AWSProfile)

	v.SetDefault("planner.model", d.Planner.Model)
	v.SetDefault("planner.stream", d.Planner.Stream)
	v.SetDefault("planner.max_tokens", d.Planner.MaxTokens)
	v.SetDefault("fuser.model", d.Fuser.Model)

	v.SetDefault("gateway.max_iterations", d.Gateway.MaxIterations)
	v.SetDefault("ratelimit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)

	v.SetDefault("tools.registry", d.Tools.Registry)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.path", d.Logging.Path)
}

// getUserConfigDir returns the XDG config directory for agentgate.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "agentgate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "agentgate")
	}
	return filepath.Join(home, ".config", "agentgate")
}

// findProjectConfig searches for .agentgate.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Planner: PlannerConfig{
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
		Fuser: FuserConfig{
			Model: DefaultModel,
		},
		Gateway: GatewayConfig{
			MaxIterations: 2,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Tools: ToolsConfig{
			Registry: DefaultRegistryPath,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			Path:  DefaultLogPath,
		},
	}
}
