package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/state"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

type fakeRunner struct {
	answer    models.Answer
	err       error
	got       string
	gotBudget int
}

func (f *fakeRunner) CallWithIterations(_ context.Context, input string, maxIterations int) (models.Answer, error) {
	f.got = input
	f.gotBudget = maxIterations
	return f.answer, f.err
}

func do(t *testing.T, s *server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	t.Run("initialized", func(t *testing.T) {
		s := &server{
			runner: &fakeRunner{},
			tools:  func() []string { return []string{"search", "summarize"} },
			logger: logging.Nop(),
		}
		code, body := do(t, s, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, true, body["agent_initialized"])
		assert.Equal(t, []any{"search", "summarize"}, body["tools"])
	})

	t.Run("not initialized", func(t *testing.T) {
		s := &server{logger: logging.Nop(), initErr: errors.New("no API key")}
		code, body := do(t, s, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "unhealthy", body["status"])
		assert.Equal(t, false, body["agent_initialized"])
		assert.Equal(t, "no API key", body["error"])
	})
}

func TestPrompt(t *testing.T) {
	answer := models.Answer{
		Output:  "42",
		Sources: []models.Source{{ToolType: "search", ToolName: "docs", Metadata: []any{"a.md"}}},
	}

	tests := []struct {
		name       string
		runner     *fakeRunner
		body       string
		wantCode   int
		wantStatus string
		wantMsg    string
	}{
		{
			name:       "success",
			runner:     &fakeRunner{answer: answer},
			body:       `{"prompt": "meaning of life"}`,
			wantCode:   http.StatusOK,
			wantStatus: "success",
		},
		{
			name:       "empty prompt",
			runner:     &fakeRunner{},
			body:       `{"prompt": "  "}`,
			wantCode:   http.StatusBadRequest,
			wantStatus: "error",
			wantMsg:    "No prompt provided",
		},
		{
			name:       "malformed body",
			runner:     &fakeRunner{},
			body:       `not json`,
			wantCode:   http.StatusBadRequest,
			wantStatus: "error",
			wantMsg:    "No prompt provided",
		},
		{
			name:       "negative iteration budget",
			runner:     &fakeRunner{},
			body:       `{"prompt": "q", "max_iterations": -1}`,
			wantCode:   http.StatusBadRequest,
			wantStatus: "error",
			wantMsg:    "max_iterations must not be negative",
		},
		{
			name:       "runner error",
			runner:     &fakeRunner{err: errors.New("planner down")},
			body:       `{"prompt": "q"}`,
			wantCode:   http.StatusInternalServerError,
			wantStatus: "error",
			wantMsg:    "Error processing prompt: planner down",
		},
		{
			name:       "not initialized",
			body:       `{"prompt": "q"}`,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "error",
			wantMsg:    "Service not properly initialized. Check /health endpoint for details.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &server{logger: logging.Nop()}
			if tt.runner != nil {
				s.runner = tt.runner
			}

			code, body := do(t, s, http.MethodPost, "/api/prompt", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body["status"])
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body["message"])
			}
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "meaning of life", tt.runner.got)
				assert.NotEmpty(t, body["run_id"])
				resp := body["response"].(map[string]any)
				assert.Equal(t, "42", resp["output"])
				assert.Len(t, resp["sources"], 1)
			}
		})
	}
}

func TestPrompt_IterationBudget(t *testing.T) {
	runner := &fakeRunner{answer: models.Answer{Output: "ok"}}
	s := &server{runner: runner, logger: logging.Nop()}

	code, _ := do(t, s, http.MethodPost, "/api/prompt", `{"prompt": "q"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, runner.gotBudget)

	code, _ = do(t, s, http.MethodPost, "/api/prompt", `{"prompt": "q", "max_iterations": 4}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4, runner.gotBudget)
}

func TestPrompt_MethodNotAllowed(t *testing.T) {
	s := &server{runner: &fakeRunner{}, logger: logging.Nop()}
	req := httptest.NewRequest(http.MethodGet, "/api/prompt", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPrompt_RecordsHistory(t *testing.T) {
	db, err := state.OpenMigrated(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := &server{runner: &fakeRunner{err: errors.New("fuser down")}, history: db, logger: logging.Nop()}
	code, body := do(t, s, http.MethodPost, "/api/prompt", `{"prompt": "q"}`)
	require.Equal(t, http.StatusInternalServerError, code)

	run, err := db.GetRun(body["run_id"].(string))
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, state.RunFailed, run.Status)
	assert.Equal(t, "http", run.Origin)
	assert.Equal(t, "fuser down", run.Error)
}
