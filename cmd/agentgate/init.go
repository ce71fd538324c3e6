package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentgate/internal/config"
	"github.com/ShayCichocki/agentgate/internal/tools"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize an agentgate project",
	Long: `Initialize a directory for use with agentgate.

This command sets up:
  - the .agentgate directory with a logs folder
  - a sample tool registry at .agentgate/tools.yaml
  - a .agentgate.yaml project configuration template
  - .gitignore entries for logs and local databases

The directory argument is optional and defaults to the current directory.

Examples:
  agentgate init              # Initialize current directory
  agentgate init ./myproject  # Initialize specific directory
  agentgate init --force      # Rewrite the sample files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing sample files")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initializing agentgate in %s...\n\n", absPath)
	if err := initProject(out, absPath, initForce); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s agentgate initialization complete!\n\n", color.GreenString("✓"))
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Declare your tools in .agentgate/tools.yaml")
	fmt.Fprintln(out, "  2. Check them with: agentgate tools validate")
	fmt.Fprintln(out, "  3. Ask a question: agentgate run \"How many words are in 'hello big world'?\"")
	return nil
}

// initProject lays out the project files under root.
func initProject(w io.Writer, root string, force bool) error {
	dir := filepath.Join(root, ".agentgate")
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	printStatus(w, "✓", "Created .agentgate directory structure", color.FgGreen)

	registry := filepath.Join(root, filepath.FromSlash(config.DefaultRegistryPath))
	wrote, err := writeIfAbsent(registry, sampleRegistry, force)
	if err != nil {
		return err
	}
	if wrote {
		printStatus(w, "✓", "Created sample tool registry "+config.DefaultRegistryPath, color.FgGreen)
	} else {
		printStatus(w, "⚠", config.DefaultRegistryPath+" exists (use --force to overwrite)", color.FgYellow)
	}
	if _, err := tools.LoadFile(registry); err != nil {
		printStatus(w, "✗", "Tool registry does not parse: "+err.Error(), color.FgRed)
	}

	wrote, err = writeIfAbsent(filepath.Join(root, config.ProjectFile), projectTemplate, force)
	if err != nil {
		return err
	}
	if wrote {
		printStatus(w, "✓", "Created "+config.ProjectFile+" template", color.FgGreen)
	}

	if err := updateGitignore(root); err != nil {
		printStatus(w, "⚠", "Could not update .gitignore: "+err.Error(), color.FgYellow)
	} else {
		printStatus(w, "✓", "Updated .gitignore", color.FgGreen)
	}

	cfg := config.Default()
	if config.GetAPIKeySource(cfg) == config.KeySourceNone {
		printStatus(w, "⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus(w, "✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}
	return nil
}

// writeIfAbsent writes content unless the file exists and force is false.
func writeIfAbsent(path, content string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// gitignoreEntries keeps logs and local databases out of version control.
var gitignoreEntries = []string{
	".agentgate/logs/",
	".agentgate/*.db",
}

// updateGitignore appends missing agentgate entries to .gitignore.
func updateGitignore(root string) error {
	path := filepath.Join(root, ".gitignore")

	var existing string
	if data, err := os.ReadFile(path); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range gitignoreEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(existing)
	if len(existing) > 0 && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n# agentgate\n")
	for _, entry := range missing {
		b.WriteString(entry + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

const sampleRegistry = `# Tools the planner may call. Each entry becomes one action in plans.
tools:
  - name: word_count
    type: function
    builtin: word_count
  - name: sum
    type: function
    builtin: sum
  - name: current_date
    type: function
    builtin: current_date

# A remote search service. The planner gets a summarize step after each
# search unless the search feeds the final answer directly.
#  - name: search_docs
#    type: search
#    topic: product documentation
#    data_description: pages of the user manual
#    endpoint: ${DOCS_SEARCH_URL}
#    search_columns: [title, body]
#    columns: [title, url]
#    limit: 5

# A database the analyst model writes read-only SQL against.
#  - name: sales_analyst
#    type: analyst
#    topic: sales
#    data_description: orders and customers since 2020
#    driver: sqlite3
#    dsn: .agentgate/sales.db

# A fixed, parameterized query.
#  - name: customer_orders
#    type: sql
#    description: Orders placed by one customer
#    driver: sqlite3
#    dsn: .agentgate/sales.db
#    query: SELECT id, total FROM orders WHERE customer = ?
#    params: [customer]
`

const projectTemplate = `# agentgate project configuration
# This file overrides defaults from ~/.config/agentgate/config.yaml

# planner:
#   model: claude-sonnet-4-20250514
#   stream: true
#   max_tokens: 4096

# fuser:
#   model: claude-sonnet-4-20250514

# gateway:
#   max_iterations: 2

# tools:
#   registry: .agentgate/tools.yaml

# server:
#   addr: ":8080"

# history:
#   enabled: true
#   path: .agentgate/state.db

# logging:
#   level: info
#   path: .agentgate/logs/agentgate.log
`
