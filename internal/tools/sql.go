package tools

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// SQLConfig describes a fixed SQL statement exposed as a tool.
type SQLConfig struct {
	// Name is the tool name used in plans.
	Name string
	// Description tells the planner what the query returns.
	Description string
	// Params names the positional parameters, shown in the signature.
	Params []string
	// Driver is "sqlite" (default) or "sqlite3".
	Driver string
	// DSN is the database path or connection string.
	DSN string
	// Query is the statement; ? placeholders bind the tool arguments in order.
	Query string
}

// SQLTool runs a fixed statement with the planner's arguments bound as parameters.
type SQLTool struct {
	cfg    SQLConfig
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLTool opens the database and creates the tool.
func NewSQLTool(cfg SQLConfig, logger *logging.Logger) (*SQLTool, error) {
	if cfg.Name == "" || cfg.Query == "" {
		return nil, fmt.Errorf("sql tool requires name and query")
	}
	db, err := openDB(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &SQLTool{cfg: cfg, db: db, logger: logger.With("sql")}, nil
}

// Name implements models.Tool.
func (t *SQLTool) Name() string { return t.cfg.Name }

// Describe implements models.Tool.
func (t *SQLTool) Describe() string {
	params := ""
	for i, p := range t.cfg.Params {
		if i > 0 {
			params += ", "
		}
		params += p
	}
	return fmt.Sprintf("%s(%s) -> rows:\n - %s\n", t.cfg.Name, params, t.cfg.Description)
}

// Category implements models.Categorized.
func (t *SQLTool) Category() models.ToolCategory { return models.CategorySQL }

// Invoke implements models.Tool.
func (t *SQLTool) Invoke(ctx context.Context, args []any) (any, error) {
	if len(args) != len(t.cfg.Params) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidArgs, t.cfg.Name, len(t.cfg.Params), len(args))
	}
	t.logger.Debugf("query %s args=%v", t.cfg.Name, args)

	rows, err := queryRows(ctx, t.db, trimStatement(t.cfg.Query), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.cfg.Name, err)
	}
	return models.ToolResult{
		Output: rows,
		Sources: &models.Source{
			ToolType: string(models.CategorySQL),
			ToolName: t.cfg.Name,
			Metadata: extractTables(t.cfg.Query),
		},
	}, nil
}

// Close closes the database handle.
func (t *SQLTool) Close() error {
	return t.db.Close()
}
