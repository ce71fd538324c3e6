package tools

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// DefaultDriver is the pure-Go sqlite driver.
const DefaultDriver = "sqlite"

// openDB opens a database with the given driver, defaulting to DefaultDriver.
func openDB(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = DefaultDriver
	}
	switch driver {
	case "sqlite", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

// queryRows runs a query and returns each row as a column-name map.
func queryRows(ctx context.Context, db *sql.DB, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

var (
	lineComment  = regexp.MustCompile(`--.*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	withClause   = regexp.MustCompile(`(?im)^\s*WITH\s+`)
	cteName      = regexp.MustCompile(`(?is)\b(\w+)\s+AS\s*\(`)
	fromTable    = regexp.MustCompile(`(?i)\bFROM\s+([^\s(),]+)`)
)

// extractTables lists the tables a statement reads with FROM, leaving out
// names defined by a WITH clause.
func extractTables(query string) []any {
	cleaned := lineComment.ReplaceAllString(query, "")
	cleaned = blockComment.ReplaceAllString(cleaned, "")

	ctes := make(map[string]bool)
	if withClause.MatchString(cleaned) {
		for _, m := range cteName.FindAllStringSubmatch(cleaned, -1) {
			ctes[m[1]] = true
		}
	}

	tables := []any{}
	for _, m := range fromTable.FindAllStringSubmatch(cleaned, -1) {
		if !ctes[m[1]] {
			tables = append(tables, map[string]any{"Table": m[1]})
		}
	}
	return tables
}

// trimStatement removes a trailing semicolon and surrounding whitespace.
func trimStatement(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ";")
}
