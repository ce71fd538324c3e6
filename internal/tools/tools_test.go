package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req.Prompt)
	return f.reply, f.err
}

func TestRegistry(t *testing.T) {
	a := NewFunctionTool("a", "", "first", "out", nil)
	b := NewFunctionTool("b", "b(x: int) -> int", "second", "out", nil)

	r, err := NewRegistry(a, b)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, r.Names())

	got, ok := r.Lookup("b")
	require.True(t, ok)
	require.Equal(t, b, got)
	_, ok = r.Lookup("missing")
	require.False(t, ok)

	require.ErrorIs(t, r.Register(NewFunctionTool("a", "", "", "", nil)), ErrDuplicateTool)
	require.ErrorIs(t, r.Register(NewFunctionTool(models.FuseToolName, "", "", "", nil)), ErrReservedName)

	desc := r.Describe()
	require.True(t, strings.HasPrefix(desc, "1. a(...)\n - first\n - out\n2. b(x: int) -> int"), desc)

	err = r.Replace([]models.Tool{a, a})
	require.ErrorIs(t, err, ErrDuplicateTool)
	require.Equal(t, []string{"a", "b"}, r.Names(), "failed replace must leave registry unchanged")

	require.NoError(t, r.Replace([]models.Tool{b}))
	require.Equal(t, []string{"b"}, r.Names())
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name    string
		builtin string
		args    []any
		want    any
		wantErr error
	}{
		{"word count", "word_count", []any{"one two  three"}, 3, nil},
		{"word count joins split args", "word_count", []any{"one", "two"}, 2, nil},
		{"word count without args", "word_count", []any{}, nil, ErrInvalidArgs},
		{"sum mixed", "sum", []any{1, 2.5, "3"}, 6.5, nil},
		{"sum nested", "sum", []any{[]any{1, 2}, 3}, 6.0, nil},
		{"sum rejects text", "sum", []any{"abc"}, nil, ErrInvalidArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := builtins[tt.builtin]
			tool := NewFunctionTool(tt.builtin, b.signature, b.desc, b.output, b.fn)
			got, err := tool.Invoke(context.Background(), tt.args)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			res := got.(models.ToolResult)
			require.Equal(t, tt.want, res.Output)
			require.Equal(t, "function", res.Sources.ToolType)
			require.Equal(t, tt.builtin, res.Sources.ToolName)
		})
	}
}

func TestSummarizeTool(t *testing.T) {
	c := &fakeCompleter{reply: "short"}
	s := NewSummarizeTool(c, "", nil)

	require.Equal(t, "summarize", s.Name())
	require.Equal(t, models.CategorySummarize, models.CategoryOf(s))
	require.False(t, models.IsSearchLike(s))

	out, err := s.Invoke(context.Background(), []any{"Concisely give me x"})
	require.NoError(t, err)
	require.Equal(t, "short", out)
	require.Equal(t, []string{"Concisely give me x"}, c.prompts)

	c.err = errors.New("boom")
	_, err = s.Invoke(context.Background(), []any{"again"})
	require.ErrorContains(t, err, "boom")
}

func newSearchServer(t *testing.T, handler func(req searchRequest) any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(handler(req))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSearchTool(t *testing.T) {
	var seen searchRequest
	srv, _ := newSearchServer(t, func(req searchRequest) any {
		seen = req
		return map[string]any{"results": []map[string]any{
			{"chunk": "alpha", "title": "A", "url": "a.html"},
			{"chunk": "beta", "title": "A", "url": "a.html"},
			{"chunk": "gamma", "title": "B", "url": "b.html"},
		}}
	})

	s, err := NewSearchTool(SearchConfig{
		Name:          "docs",
		Topic:         "the product",
		Endpoint:      srv.URL,
		SearchColumns: []string{"chunk"},
		Columns:       []string{"chunk", "title", "url"},
	}, nil)
	require.NoError(t, err)
	require.True(t, models.IsSearchLike(s))

	out, err := s.Invoke(context.Background(), []any{"what is alpha"})
	require.NoError(t, err)
	require.Equal(t, "what is alpha", seen.Query)
	require.Equal(t, 5, seen.Limit)

	res := out.(models.ToolResult)
	require.Len(t, res.Output, 3)
	require.Equal(t, "docs", res.Sources.ToolName)
	require.Equal(t, []any{
		map[string]any{"title": "A", "url": "a.html"},
		map[string]any{"title": "B", "url": "b.html"},
	}, res.Sources.Metadata)
}

func TestSearchTool_CitationFallbackAndErrors(t *testing.T) {
	srv, _ := newSearchServer(t, func(req searchRequest) any {
		if req.Query == "fail" {
			return map[string]any{"message": "index offline"}
		}
		return map[string]any{"results": []map[string]any{{"chunk": "only text"}}}
	})
	s, err := NewSearchTool(SearchConfig{Name: "docs", Endpoint: srv.URL, SearchColumns: []string{"chunk"}}, nil)
	require.NoError(t, err)

	out, err := s.Invoke(context.Background(), []any{"q"})
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"Search Tool": "docs"}}, out.(models.ToolResult).Sources.Metadata)

	_, err = s.Invoke(context.Background(), []any{"fail"})
	require.EqualError(t, err, "unable to parse search response: index offline")

	_, err = NewSearchTool(SearchConfig{Name: "docs"}, nil)
	require.Error(t, err)
}

func TestSearchTool_SharesInFlightQueries(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		started <- struct{}{}
		<-release
		w.Write([]byte(`{"results": [{"chunk": "x"}]}`))
	}))
	defer srv.Close()

	s, err := NewSearchTool(SearchConfig{Name: "docs", Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	invoke := func() {
		defer wg.Done()
		_, err := s.Invoke(context.Background(), []any{"same"})
		require.NoError(t, err)
	}
	wg.Add(2)
	go invoke()
	<-started
	go invoke()
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), hits.Load())
}

func newTestDB(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open(DefaultDriver, dsn)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`
CREATE TABLE sales (region TEXT, year INTEGER, amount REAL);
INSERT INTO sales VALUES ('EMEA', 2023, 10.5), ('EMEA', 2024, 12.0), ('APAC', 2024, 7.25);`)
	require.NoError(t, err)
	return dsn
}

func TestSQLTool(t *testing.T) {
	dsn := newTestDB(t)
	tool, err := NewSQLTool(SQLConfig{
		Name:        "sales_by_region",
		Description: "Total sales for a region",
		Params:      []string{"region"},
		DSN:         dsn,
		Query:       "SELECT region, SUM(amount) AS total FROM sales WHERE region = ? GROUP BY region;",
	}, nil)
	require.NoError(t, err)
	defer tool.Close()

	require.Equal(t, "sales_by_region(region) -> rows:\n - Total sales for a region\n", tool.Describe())

	out, err := tool.Invoke(context.Background(), []any{"EMEA"})
	require.NoError(t, err)
	res := out.(models.ToolResult)
	require.Equal(t, []map[string]any{{"region": "EMEA", "total": 22.5}}, res.Output)
	require.Equal(t, []any{map[string]any{"Table": "sales"}}, res.Sources.Metadata)

	_, err = tool.Invoke(context.Background(), []any{"EMEA", "extra"})
	require.ErrorIs(t, err, ErrInvalidArgs)
}

func TestAnalystTool(t *testing.T) {
	dsn := newTestDB(t)

	tests := []struct {
		name    string
		reply   string
		wantErr error
		wantLen int
	}{
		{"fenced query", "Here you go:\n```sql\nSELECT * FROM sales WHERE year = 2024;\n```", nil, 2},
		{"bare query", "SELECT region FROM sales", nil, 3},
		{"no rows", "```sql\nSELECT * FROM sales WHERE year = 1999\n```", ErrNoRows, 0},
		{"unclear", "UNCLEAR: What were 2024 sales by region?", ErrUnclear, 0},
		{"prose", "I am not sure.", ErrNoSQL, 0},
		{"write statement", "```sql\nDELETE FROM sales\n```", ErrNoSQL, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCompleter{reply: tt.reply}
			tool, err := NewAnalystTool(AnalystConfig{Name: "analyst", Topic: "sales", DSN: dsn}, c, nil)
			require.NoError(t, err)
			defer tool.Close()

			out, err := tool.Invoke(context.Background(), []any{"sales in 2024?"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			res := out.(models.ToolResult)
			require.Len(t, res.Output, tt.wantLen)
			require.Equal(t, []any{map[string]any{"Table": "sales"}}, res.Sources.Metadata)

			require.Len(t, c.prompts, 1)
			require.Contains(t, c.prompts[0], "CREATE TABLE sales")
			require.Contains(t, c.prompts[0], "Question: sales in 2024?")
		})
	}
}

func TestExtractTables(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []any
	}{
		{"simple", "SELECT * FROM sales", []any{map[string]any{"Table": "sales"}}},
		{"comments ignored", "-- FROM hidden\nSELECT 1 FROM a /* FROM b */", []any{map[string]any{"Table": "a"}}},
		{
			"cte excluded",
			"WITH recent AS (SELECT * FROM sales WHERE year > 2020)\nSELECT * FROM recent",
			[]any{map[string]any{"Table": "sales"}},
		},
		{"no tables", "SELECT 1", []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extractTables(tt.query))
		})
	}
}

func TestExtractSQL(t *testing.T) {
	require.Equal(t, "SELECT 1", extractSQL("```sql\nSELECT 1;\n```"))
	require.Equal(t, "WITH x AS (SELECT 1) SELECT * FROM x", extractSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	require.Equal(t, "", extractSQL("no sql here"))
	require.False(t, isReadOnly("SELECT 1; DROP TABLE sales"))
	require.False(t, isReadOnly("UPDATE sales SET amount = 0"))
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	_, err := openDB("postgres", "x")
	require.ErrorContains(t, err, "unsupported driver")
}
