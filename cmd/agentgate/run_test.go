package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/agentgate/internal/config"
	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/orchestrator"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

func init() {
	color.NoColor = true
}

// scriptedCompleter answers planner requests (which carry a system prompt)
// and fuser requests from fixed replies.
type scriptedCompleter struct {
	mu      sync.Mutex
	plan    string
	fuse    string
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req.Prompt)
	if req.System != "" {
		return s.plan, nil
	}
	return s.fuse, nil
}

func newFlagCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "")
	cmd.Flags().BoolVar(&runStream, "stream", false, "")
	cmd.Flags().StringVar(&runTools, "tools", "", "")
	return cmd
}

func TestApplyRunFlags(t *testing.T) {
	t.Cleanup(func() {
		runMaxIterations, runStream, runTools = 0, false, ""
	})

	t.Run("unset flags keep config", func(t *testing.T) {
		cfg := config.Default()
		cfg.Planner.Stream = true
		require.NoError(t, applyRunFlags(newFlagCmd(), cfg))
		assert.Equal(t, 2, cfg.Gateway.MaxIterations)
		assert.True(t, cfg.Planner.Stream)
		assert.Equal(t, config.DefaultRegistryPath, cfg.Tools.Registry)
	})

	t.Run("set flags override", func(t *testing.T) {
		cmd := newFlagCmd()
		require.NoError(t, cmd.Flags().Set("max-iterations", "3"))
		require.NoError(t, cmd.Flags().Set("stream", "true"))
		require.NoError(t, cmd.Flags().Set("tools", "x.yaml"))

		cfg := config.Default()
		require.NoError(t, applyRunFlags(cmd, cfg))
		assert.Equal(t, 3, cfg.Gateway.MaxIterations)
		assert.True(t, cfg.Planner.Stream)
		assert.Equal(t, "x.yaml", cfg.Tools.Registry)
	})

	t.Run("invalid override", func(t *testing.T) {
		cmd := newFlagCmd()
		require.NoError(t, cmd.Flags().Set("max-iterations", "0"))
		assert.Error(t, applyRunFlags(cmd, config.Default()))
	})
}

func TestPrintEvent(t *testing.T) {
	tests := []struct {
		event orchestrator.OrchestratorEvent
		want  string
	}{
		{orchestrator.OrchestratorEvent{Type: orchestrator.EventIterationStarted, Iteration: 1}, "▸ iteration 2\n"},
		{orchestrator.OrchestratorEvent{Type: orchestrator.EventTaskStarted, TaskID: 1, Message: `search("x")`}, "  ● 1. search(\"x\")\n"},
		{orchestrator.OrchestratorEvent{Type: orchestrator.EventTaskFailed, TaskID: 2, Tool: "sql", Error: errors.New("boom")}, "  ✗ 2. sql: boom\n"},
		{orchestrator.OrchestratorEvent{Type: orchestrator.EventReplan, Message: "need more"}, "  ↻ replan: need more\n"},
		{orchestrator.OrchestratorEvent{Type: orchestrator.EventSessionDone}, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.event.Type), func(t *testing.T) {
			var b bytes.Buffer
			printEvent(&b, tt.event)
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestPrintAnswer(t *testing.T) {
	var b bytes.Buffer
	printAnswer(&b, models.Answer{
		Output: "Paris",
		Sources: []models.Source{
			{ToolType: "search", ToolName: "wiki", Metadata: []any{"France"}},
			{ToolType: "function", ToolName: "sum"},
		},
	})
	out := b.String()
	assert.Contains(t, out, "Answer:\nParis\n")
	assert.Contains(t, out, "  - wiki (search): ['France']\n")
	assert.Contains(t, out, "  - sum (function)\n")
}

func TestAssemble_AnswersWithBuiltinTool(t *testing.T) {
	dir := t.TempDir()
	registry := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(registry, []byte(`tools:
  - name: word_count
    type: function
    builtin: word_count
`), 0644))

	cfg := config.Default()
	cfg.Tools.Registry = registry
	client := &scriptedCompleter{
		plan: "Thought: count them.\n1. word_count(\"hello big world\")\n2. fuse()\n",
		fuse: "Thought: The tool counted 3 words.\n\nAction: Finish(3)",
	}

	a, err := assemble(cfg, client, logging.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.ElementsMatch(t, []string{"word_count", "summarize"}, a.registry.Names())

	answer, err := a.gateway.Call(context.Background(), "How many words are in 'hello big world'?")
	require.NoError(t, err)
	assert.Equal(t, "3", answer.Output)

	require.Len(t, client.prompts, 2)
	assert.Contains(t, client.prompts[1], "Observation: 3")
	assert.Empty(t, a.usage())
}

func TestAssemble_MissingRegistry(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Registry = filepath.Join(t.TempDir(), "absent.yaml")

	a, err := assemble(cfg, &scriptedCompleter{}, logging.Nop(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"summarize"}, a.registry.Names())
}

func TestAssemble_BadRegistry(t *testing.T) {
	registry := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(registry, []byte("tools:\n  - name: x\n    type: teleport\n"), 0644))

	cfg := config.Default()
	cfg.Tools.Registry = registry
	_, err := assemble(cfg, &scriptedCompleter{}, logging.Nop(), nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "teleport"), err.Error())
}
