package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// SearchConfig describes a remote search service.
type SearchConfig struct {
	// Name is the tool name used in plans.
	Name string
	// Topic is what the service knows about, shown to the planner.
	Topic string
	// DataDescription describes the indexed data, shown to the planner.
	DataDescription string
	// Endpoint receives POST {query, columns, limit}.
	Endpoint string
	// SearchColumns hold passage text and are left out of citations.
	SearchColumns []string
	// Columns are requested from the service.
	Columns []string
	// Limit is the number of results requested. Defaults to 5.
	Limit int
	// Headers are added to every request.
	Headers map[string]string
	// HTTPClient overrides the default client with a 30s timeout.
	HTTPClient *http.Client
}

// SearchTool queries a remote search service. Identical queries issued while
// one is in flight share its result.
type SearchTool struct {
	cfg    SearchConfig
	client *http.Client
	group  singleflight.Group
	logger *logging.Logger
}

// NewSearchTool validates the config and creates the tool.
func NewSearchTool(cfg SearchConfig, logger *logging.Logger) (*SearchTool, error) {
	if cfg.Name == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("search tool requires name and endpoint")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SearchTool{cfg: cfg, client: client, logger: logger.With("search")}, nil
}

// Name implements models.Tool.
func (s *SearchTool) Name() string { return s.cfg.Name }

// Describe implements models.Tool.
func (s *SearchTool) Describe() string {
	return fmt.Sprintf("%s(query: str) -> list:\n"+
		" - Executes a search for relevant information about %s.\n"+
		" - Returns a list of relevant passages from %s.\n",
		s.cfg.Name, s.cfg.Topic, s.cfg.DataDescription)
}

// Category implements models.Categorized.
func (s *SearchTool) Category() models.ToolCategory { return models.CategorySearch }

// Invoke implements models.Tool.
func (s *SearchTool) Invoke(ctx context.Context, args []any) (any, error) {
	query, err := firstArg(s.cfg.Name, args)
	if err != nil {
		return nil, err
	}
	v, err, shared := s.group.Do(query, func() (interface{}, error) {
		return s.search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debugf("query %q shared an in-flight request", query)
	}
	return v, nil
}

type searchRequest struct {
	Query   string   `json:"query"`
	Columns []string `json:"columns"`
	Limit   int      `json:"limit"`
}

type searchResponse struct {
	Results *[]map[string]any `json:"results"`
	Message string            `json:"message"`
}

func (s *SearchTool) search(ctx context.Context, query string) (models.ToolResult, error) {
	s.logger.Debugf("query: %s", query)

	body, err := json.Marshal(searchRequest{Query: query, Columns: s.cfg.Columns, Limit: s.cfg.Limit})
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("read search response: %w", err)
	}
	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.ToolResult{}, fmt.Errorf("decode search response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Results == nil {
		msg := parsed.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return models.ToolResult{}, fmt.Errorf("unable to parse search response: %s", msg)
	}

	results := *parsed.Results
	return models.ToolResult{
		Output: results,
		Sources: &models.Source{
			ToolType: string(models.CategorySearch),
			ToolName: s.cfg.Name,
			Metadata: s.citations(results),
		},
	}, nil
}

// citations returns the distinct non-passage attributes of the results, or a
// single entry naming the service when results carry no attributes.
func (s *SearchTool) citations(results []map[string]any) []any {
	skip := make(map[string]bool, len(s.cfg.SearchColumns))
	for _, c := range s.cfg.SearchColumns {
		skip[c] = true
	}

	var elements []map[string]any
	for _, r := range results {
		el := make(map[string]any)
		for k, v := range r {
			if k != "" && !skip[k] {
				el[k] = v
			}
		}
		elements = append(elements, el)
	}
	if len(elements) == 0 || len(elements[0]) == 0 {
		return []any{map[string]any{"Search Tool": s.cfg.Name}}
	}

	seen := make(map[string]bool)
	var out []any
	for _, el := range elements {
		id := citationKey(el)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, el)
	}
	return out
}

func citationKey(el map[string]any) string {
	keys := make([]string, 0, len(el))
	for k := range el {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]any, len(keys))
	for i, k := range keys {
		pairs[i] = [2]any{k, el[k]}
	}
	data, _ := json.Marshal(pairs)
	return string(data)
}
