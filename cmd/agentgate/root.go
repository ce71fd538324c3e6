package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentgate/internal/config"
)

var (
	configPath string
	debugLog   bool
)

var rootCmd = &cobra.Command{
	Use:   "agentgate",
	Short: "LLM compiler gateway: plan, execute in parallel, fuse",
	Long: `agentgate answers questions by asking a planner model for a numbered plan
of tool calls, running every call whose inputs are ready in parallel, and
asking a fuser model to turn the observations into an answer. When the
fuser decides the observations are not enough it replans, up to
gateway.max_iterations times.

Tools are declared in a registry file (default .agentgate/tools.yaml):
remote search services, sqlite analysts, fixed SQL queries and built-in
functions.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config merged with .agentgate.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Log raw planner and fuser exchanges")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig honors --config and --debug.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if debugLog {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
