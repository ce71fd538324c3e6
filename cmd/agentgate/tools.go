package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/tools"
)

var toolsFile string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool registry",
	Long: `Inspect the tool registry file.

  agentgate tools list       # names, types and descriptions
  agentgate tools validate   # build every tool and report errors
  agentgate tools builtins   # functions available to type: function`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := loadToolsFile()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tDESCRIPTION")
		for _, s := range file.Tools {
			desc := s.Description
			if desc == "" {
				desc = s.Topic
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Type, firstLine(desc))
		}
		return tw.Flush()
	},
}

var toolsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Build every declared tool",
	Long: `Build every declared tool without calling any model. Database tools
open their connections and search tools check their endpoints parse.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := loadToolsFile()
		if err != nil {
			return err
		}
		built, closer, err := file.Build(tools.BuildDeps{
			Completer:  unavailableCompleter{},
			HTTPClient: http.DefaultClient,
			Logger:     logging.Nop(),
		})
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", color.RedString("✗"), err)
			return err
		}
		defer closer()
		if _, err := tools.NewRegistry(built...); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", color.RedString("✗"), err)
			return err
		}
		for _, t := range built {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("✓"), t.Name())
		}
		return nil
	},
}

var toolsBuiltinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "List built-in functions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range tools.BuiltinNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	toolsCmd.PersistentFlags().StringVar(&toolsFile, "file", "", "Tool registry file (default from config)")
	toolsCmd.AddCommand(toolsListCmd, toolsValidateCmd, toolsBuiltinsCmd)
}

func loadToolsFile() (*tools.File, error) {
	path := toolsFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Tools.Registry
	}
	return tools.LoadFile(path)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// unavailableCompleter lets analyst tools be built without credentials.
type unavailableCompleter struct{}

func (unavailableCompleter) Complete(context.Context, llm.Request) (string, error) {
	return "", errors.New("no model client while validating")
}
