package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/agentgate/internal/config"
)

func TestConfigValues_RoundTrip(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"anthropic.use_bedrock", "true"},
		{"anthropic.aws_region", "eu-west-1"},
		{"planner.model", "claude-3-5-haiku-latest"},
		{"planner.stream", "true"},
		{"planner.max_tokens", "2048"},
		{"fuser.model", "claude-3-5-haiku-latest"},
		{"gateway.max_iterations", "4"},
		{"ratelimit.requests_per_second", "2.5"},
		{"ratelimit.burst", "3"},
		{"tools.registry", "tools.yaml"},
		{"server.addr", ":9090"},
		{"history.enabled", "false"},
		{"history.path", "runs.db"},
		{"logging.level", "debug"},
		{"logging.path", "/tmp/agentgate.log"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.Default()
			require.NoError(t, setConfigValue(cfg, tt.key, tt.value))
			got, err := getConfigValue(cfg, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestConfigValues_Errors(t *testing.T) {
	cfg := config.Default()
	assert.Error(t, setConfigValue(cfg, "planner.stream", "maybe"))
	assert.Error(t, setConfigValue(cfg, "gateway.max_iterations", "two"))
	assert.Error(t, setConfigValue(cfg, "nope", "x"))

	_, err := getConfigValue(cfg, "nope")
	assert.Error(t, err)
}

func TestConfigValues_APIKeyMasked(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.APIKey = ""
	got, err := getConfigValue(cfg, "anthropic.api_key")
	require.NoError(t, err)
	assert.Equal(t, "(not set)", got)

	require.NoError(t, setConfigValue(cfg, "anthropic.api_key", "sk-ant-abcdefghijklmnop"))
	got, err = getConfigValue(cfg, "anthropic.api_key")
	require.NoError(t, err)
	assert.NotContains(t, got, "abcdefghijkl")
}

func TestSetConfigKey_SavesToConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	var out bytes.Buffer
	require.NoError(t, setConfigKey(&out, config.Default(), "gateway.max_iterations", "5"))
	assert.Equal(t, "Set gateway.max_iterations = 5\n", out.String())

	loaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Gateway.MaxIterations)
}

func TestSetConfigKey_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	var out bytes.Buffer
	assert.Error(t, setConfigKey(&out, config.Default(), "gateway.max_iterations", "0"))
	assert.NoFileExists(t, path)
}
