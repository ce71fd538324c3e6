package tools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

var (
	// ErrNoSQL indicates the model did not produce a usable statement.
	ErrNoSQL = errors.New("unable to generate a valid SQL query")
	// ErrNoRows indicates the generated statement returned nothing.
	ErrNoRows = errors.New("no results found, consider rephrasing your request")
	// ErrUnclear indicates the model asked for clarification instead of answering.
	ErrUnclear = errors.New("your request is unclear")
)

// AnalystConfig describes a question-answering tool over a SQL database.
type AnalystConfig struct {
	// Name is the tool name used in plans.
	Name string
	// Topic is what the data covers, shown to the planner.
	Topic string
	// DataDescription describes the database, shown to the planner.
	DataDescription string
	// Driver is "sqlite" (default) or "sqlite3".
	Driver string
	// DSN is the database path or connection string.
	DSN string
	// Model overrides the completer's default model.
	Model string
	// Schema is shown to the model. When empty it is read from sqlite_master.
	Schema string
}

// AnalystTool answers a natural-language question by asking the model for one
// SELECT statement, running it, and returning the rows.
type AnalystTool struct {
	cfg       AnalystConfig
	db        *sql.DB
	completer llm.Completer
	logger    *logging.Logger
}

// NewAnalystTool opens the database and creates the tool.
func NewAnalystTool(cfg AnalystConfig, completer llm.Completer, logger *logging.Logger) (*AnalystTool, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("analyst tool requires a name")
	}
	if completer == nil {
		return nil, fmt.Errorf("analyst tool %s requires a completer", cfg.Name)
	}
	db, err := openDB(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &AnalystTool{cfg: cfg, db: db, completer: completer, logger: logger.With("analyst")}, nil
}

// Name implements models.Tool.
func (a *AnalystTool) Name() string { return a.cfg.Name }

// Describe implements models.Tool.
func (a *AnalystTool) Describe() string {
	return fmt.Sprintf("%s(prompt: str) -> str:\n"+
		" - takes a user's question about %s and queries %s\n"+
		" - Returns the relevant metrics about %s\n",
		a.cfg.Name, a.cfg.Topic, a.cfg.DataDescription, a.cfg.Topic)
}

// Category implements models.Categorized.
func (a *AnalystTool) Category() models.ToolCategory { return models.CategoryAnalyst }

const analystPrompt = `You translate questions into a single SQLite SELECT statement.

Schema:
%s

Rules:
- Reply with exactly one statement inside a ` + "```sql" + ` code block.
- Only read data. Never modify it.
- If the question cannot be answered from this schema, reply with a line starting
  "UNCLEAR:" followed by up to three rephrased questions that could be answered.

Question: %s
`

// Invoke implements models.Tool.
func (a *AnalystTool) Invoke(ctx context.Context, args []any) (any, error) {
	question, err := firstArg(a.cfg.Name, args)
	if err != nil {
		return nil, err
	}
	schema, err := a.schema(ctx)
	if err != nil {
		return nil, err
	}

	reply, err := a.completer.Complete(ctx, llm.Request{
		Model:  a.cfg.Model,
		Prompt: fmt.Sprintf(analystPrompt, schema, question),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.cfg.Name, err)
	}
	a.logger.Debugf("raw reply: %s", reply)

	if i := strings.Index(reply, "UNCLEAR:"); i >= 0 {
		suggestions := strings.TrimSpace(reply[i+len("UNCLEAR:"):])
		return nil, fmt.Errorf("%w. Consider rephrasing your request to one of the following suggestions: %s", ErrUnclear, suggestions)
	}
	stmt := extractSQL(reply)
	if stmt == "" {
		return nil, fmt.Errorf("%w. %s", ErrNoSQL, strings.TrimSpace(reply))
	}
	if !isReadOnly(stmt) {
		return nil, fmt.Errorf("%w: statement is not a query", ErrNoSQL)
	}

	rows, err := queryRows(ctx, a.db, stmt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.cfg.Name, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return models.ToolResult{
		Output: rows,
		Sources: &models.Source{
			ToolType: string(models.CategoryAnalyst),
			ToolName: a.cfg.Name,
			Metadata: extractTables(stmt),
		},
	}, nil
}

// schema returns the configured schema or the CREATE statements of every table.
func (a *AnalystTool) schema(ctx context.Context) (string, error) {
	if a.cfg.Schema != "" {
		return a.cfg.Schema, nil
	}
	rows, err := queryRows(ctx, a.db, "SELECT sql FROM sqlite_master WHERE type = 'table' AND sql IS NOT NULL ORDER BY name")
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, fmt.Sprint(r["sql"])+";")
	}
	return strings.Join(parts, "\n"), nil
}

var fencedSQL = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)```")

var bareSQL = regexp.MustCompile(`(?is)^\s*((?:SELECT|WITH)\b.*)$`)

// extractSQL pulls the statement out of a fenced block, or accepts a reply
// that is itself a statement.
func extractSQL(reply string) string {
	if m := fencedSQL.FindStringSubmatch(reply); m != nil {
		return trimStatement(m[1])
	}
	if m := bareSQL.FindStringSubmatch(reply); m != nil {
		return trimStatement(m[1])
	}
	return ""
}

func isReadOnly(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return false
	}
	return !strings.Contains(stmt, ";")
}

// Close closes the database handle.
func (a *AnalystTool) Close() error {
	return a.db.Close()
}
