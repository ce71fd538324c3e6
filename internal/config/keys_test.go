package config

import (
	"errors"
	"testing"
)

func TestGetAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		cfg        *Config
		wantKey    string
		wantSource KeySource
		wantErr    error
	}{
		{
			name:       "from environment variable",
			env:        "sk-ant-test-key",
			cfg:        &Config{},
			wantKey:    "sk-ant-test-key",
			wantSource: KeySourceEnv,
		},
		{
			name:       "from config",
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}},
			wantKey:    "sk-ant-config-key",
			wantSource: KeySourceConfig,
		},
		{
			name:       "unexpanded reference is ignored",
			cfg:        &Config{Anthropic: AnthropicConfig{APIKey: "${UNSET_AGENTGATE_VAR}"}},
			wantSource: KeySourceNone,
			wantErr:    ErrNoAPIKey,
		},
		{
			name:       "bedrock needs no key",
			cfg:        &Config{Anthropic: AnthropicConfig{UseBedrock: true}},
			wantSource: KeySourceBedrock,
		},
		{
			name:       "nil config",
			wantSource: KeySourceNone,
			wantErr:    ErrNoAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", tt.env)

			key, err := GetAPIKey(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetAPIKey() error = %v, want %v", err, tt.wantErr)
			}
			if key != tt.wantKey {
				t.Errorf("GetAPIKey() = %q, want %q", key, tt.wantKey)
			}
			if src := GetAPIKeySource(tt.cfg); src != tt.wantSource {
				t.Errorf("GetAPIKeySource() = %q, want %q", src, tt.wantSource)
			}
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "sk-ant-REDACTED", false},
		{"empty key", "", true},
		{"wrong prefix", "sk-openai-abcdefghijklmnop", true},
		{"too short", "sk-ant-abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateAPIKey(tt.key); (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-REDACTED", "sk-ant-...mnop"},
	}
	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
