package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/orchestrator"
	"github.com/ShayCichocki/agentgate/internal/state"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

var (
	serveAddr     string
	serveNoWatch  bool
	serveDeadline time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gateway over HTTP",
	Long: `Serve the gateway over HTTP.

Endpoints:
  GET  /health      {"status": "healthy", "agent_initialized": true, "tools": [...]}
  POST /api/prompt  {"prompt": "..."} -> {"status": "success", "response": {"output", "sources"}, "run_id"}

The tool registry file is watched and reloaded on change unless --no-watch
is given. When the gateway cannot be initialized (for example without an
API key) the server still starts and answers prompts with 503.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload the tool registry on change")
	serveCmd.Flags().DurationVar(&serveDeadline, "timeout", 5*time.Minute, "Per-request deadline")
}

// promptRunner is what the HTTP surface needs from the gateway.
type promptRunner interface {
	CallWithIterations(ctx context.Context, input string, maxIterations int) (models.Answer, error)
}

// server holds the HTTP handlers. runner is nil when initialization failed;
// history is nil when runs are not recorded.
type server struct {
	runner  promptRunner
	tools   func() []string
	history state.RunStore
	timeout time.Duration
	logger  *logging.Logger
	initErr error
}

type healthResponse struct {
	Status           string   `json:"status"`
	AgentInitialized bool     `json:"agent_initialized"`
	Tools            []string `json:"tools,omitempty"`
	Error            string   `json:"error,omitempty"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`

	// MaxIterations overrides gateway.max_iterations for this request when set.
	MaxIterations int `json:"max_iterations,omitempty"`
}

type promptResponse struct {
	Status   string         `json:"status"`
	Response *models.Answer `json:"response,omitempty"`
	RunID    string         `json:"run_id,omitempty"`
	Message  string         `json:"message,omitempty"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/prompt", s.handlePrompt)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", AgentInitialized: s.runner != nil}
	if s.runner == nil {
		resp.Status = "unhealthy"
		if s.initErr != nil {
			resp.Error = s.initErr.Error()
		}
	} else if s.tools != nil {
		resp.Tools = s.tools()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, promptResponse{
			Status:  "error",
			Message: "Service not properly initialized. Check /health endpoint for details.",
		})
		return
	}

	var req promptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, promptResponse{Status: "error", Message: "No prompt provided"})
		return
	}
	if req.MaxIterations < 0 {
		writeJSON(w, http.StatusBadRequest, promptResponse{Status: "error", Message: "max_iterations must not be negative"})
		return
	}

	runID := uuid.New().String()
	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Infof("request %s: %q", runID, req.Prompt)
	s.beginRun(runID, req.Prompt)
	start := time.Now()
	answer, err := s.runner.CallWithIterations(ctx, req.Prompt, req.MaxIterations)
	s.finishRun(runID, answer.Output, err)
	if err != nil {
		s.logger.Infof("request %s failed after %s: %v", runID, time.Since(start).Round(time.Millisecond), err)
		writeJSON(w, http.StatusInternalServerError, promptResponse{
			Status:  "error",
			RunID:   runID,
			Message: fmt.Sprintf("Error processing prompt: %v", err),
		})
		return
	}
	s.logger.Infof("request %s answered in %s", runID, time.Since(start).Round(time.Millisecond))
	writeJSON(w, http.StatusOK, promptResponse{Status: "success", Response: &answer, RunID: runID})
}

func (s *server) beginRun(id, prompt string) {
	if s.history == nil {
		return
	}
	if err := s.history.BeginRun(&state.Run{ID: id, Input: prompt, Origin: "http"}); err != nil {
		s.logger.Infof("history: %v", err)
	}
}

func (s *server) finishRun(id, output string, runErr error) {
	if s.history == nil {
		return
	}
	if err := s.history.FinishRun(id, output, runErr); err != nil {
		s.logger.Infof("history: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &server{timeout: serveDeadline, logger: logger.With("http")}
	// Events are only logged in server mode.
	a, err := newApp(cfg, logger, nil)
	if err != nil {
		srv.initErr = err
		logger.Infof("gateway not initialized: %v", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: gateway not initialized: %v\n", err)
	} else {
		defer a.Close()
		srv.runner = a.gateway
		srv.tools = a.registry.Names
		if db := openHistory(cfg, logger); db != nil {
			defer db.Close()
			srv.history = db
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(cmd.OutOrStdout(), "agentgate listening on %s\n", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if a != nil && !serveNoWatch {
		if _, err := os.Stat(cfg.Tools.Registry); err == nil {
			w := a.watcher()
			w.SetCloseGrace(serveDeadline)
			w.OnReload(func(names []string, err error) {
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "tool registry reload failed: %v\n", err)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tool registry reloaded: %s\n", strings.Join(names, ", "))
			})
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	return g.Wait()
}

var _ promptRunner = (*orchestrator.Gateway)(nil)
