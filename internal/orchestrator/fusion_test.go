package orchestrator

import (
	"errors"
	"testing"
)

func TestParseFusionOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    FusionOutput
		wantErr error
	}{
		{
			name: "finish",
			raw:  "Thought: done\n\nAction: Finish(42)",
			want: FusionOutput{Thought: "done", Answer: "42"},
		},
		{
			name: "nested parentheses",
			raw:  "Thought: t\n\nAction: Finish(f(x) = (a + b))\ntrailing",
			want: FusionOutput{Thought: "t", Answer: "f(x) = (a + b)"},
		},
		{
			name: "multi-line answer",
			raw:  "Thought: t\n\nAction: Finish(line one\nline two)",
			want: FusionOutput{Thought: "t", Answer: "line one\nline two"},
		},
		{
			name: "replan without finish",
			raw:  "Thought: missing data\n\nAction: Replan",
			want: FusionOutput{Thought: "missing data", Answer: ClarificationAnswer, Replan: true},
		},
		{
			name: "finish mentioning replan",
			raw:  "Thought: t\n\nAction: Finish(Replan with more detail)",
			want: FusionOutput{Thought: "t", Answer: "Replan with more detail", Replan: true},
		},
		{
			name: "thought needs blank line",
			raw:  "Thought: t\nAction: Finish(x)",
			want: FusionOutput{Answer: "x"},
		},
		{
			name:    "no action",
			raw:     "Thought: t\n\nNothing to see.",
			wantErr: ErrFusionParse,
		},
		{
			name:    "unterminated finish",
			raw:     "Thought: t\n\nAction: Finish(never (closed)",
			wantErr: ErrFusionParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFusionOutput(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseFusionOutput() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFusionOutput() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFusionOutput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
