package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentgate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify agentgate configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/agentgate/config.yaml
Project-specific overrides can be placed in .agentgate.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			displayAllConfig(out, cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			return setConfigKey(out, cfg, args[0], args[1])
		}
	},
}

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"planner.model",
	"planner.stream",
	"planner.max_tokens",
	"fuser.model",
	"gateway.max_iterations",
	"ratelimit.requests_per_second",
	"ratelimit.burst",
	"tools.registry",
	"server.addr",
	"history.enabled",
	"history.path",
	"logging.level",
	"logging.path",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	fmt.Fprintf(w, "\nkey source: %s\n", config.GetAPIKeySource(cfg))
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(w io.Writer, cfg *config.Config, key, value string) error {
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var err error
	if configPath != "" {
		err = config.SaveToPath(cfg, configPath)
	} else {
		err = config.Save(cfg)
	}
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if strings.ToLower(key) == "anthropic.api_key" {
		value = config.MaskAPIKey(value)
	}
	fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "planner.model":
		return cfg.Planner.Model, nil
	case "planner.stream":
		return strconv.FormatBool(cfg.Planner.Stream), nil
	case "planner.max_tokens":
		return strconv.FormatInt(cfg.Planner.MaxTokens, 10), nil
	case "fuser.model":
		return cfg.Fuser.Model, nil
	case "gateway.max_iterations":
		return strconv.Itoa(cfg.Gateway.MaxIterations), nil
	case "ratelimit.requests_per_second":
		return strconv.FormatFloat(cfg.RateLimit.RequestsPerSecond, 'g', -1, 64), nil
	case "ratelimit.burst":
		return strconv.Itoa(cfg.RateLimit.Burst), nil
	case "tools.registry":
		return cfg.Tools.Registry, nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "history.path":
		return cfg.History.Path, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.path":
		return cfg.Logging.Path, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for anthropic.use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "planner.model":
		cfg.Planner.Model = value
	case "planner.stream":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for planner.stream: %w", err)
		}
		cfg.Planner.Stream = b
	case "planner.max_tokens":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for planner.max_tokens: %w", err)
		}
		cfg.Planner.MaxTokens = n
	case "fuser.model":
		cfg.Fuser.Model = value
	case "gateway.max_iterations":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for gateway.max_iterations: %w", err)
		}
		cfg.Gateway.MaxIterations = n
	case "ratelimit.requests_per_second":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for ratelimit.requests_per_second: %w", err)
		}
		cfg.RateLimit.RequestsPerSecond = f
	case "ratelimit.burst":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for ratelimit.burst: %w", err)
		}
		cfg.RateLimit.Burst = n
	case "tools.registry":
		cfg.Tools.Registry = value
	case "server.addr":
		cfg.Server.Addr = value
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for history.enabled: %w", err)
		}
		cfg.History.Enabled = b
	case "history.path":
		cfg.History.Path = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.path":
		cfg.Logging.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
