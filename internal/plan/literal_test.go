package plan

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"int", "42", 42},
		{"negative float", "-2.5", -2.5},
		{"exponent", "1e3", 1000.0},
		{"double quoted", `"hi there"`, "hi there"},
		{"single quoted with escape", `'it\'s'`, "it's"},
		{"triple quoted multiline", "\"\"\"a\nb\"\"\"", "a\nb"},
		{"adjacent strings", `"a" 'b'`, "ab"},
		{"keywords", "[True, False, None]", []any{true, false, nil}},
		{"bare tuple", `"x", 3`, []any{"x", 3}},
		{"parenthesized value", "(7)", 7},
		{"one tuple", "(7,)", []any{7}},
		{"empty tuple", "()", []any{}},
		{"nested", `[1, ["a", (2, 3)]]`, []any{1, []any{"a", []any{2, 3}}}},
		{"trailing comma list", "[1, 2,]", []any{1, 2}},
		{"dict", `{"k": 1, 2: "v"}`, map[string]any{"k": 1, "2": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLiteral(tt.in)
			if err != nil {
				t.Fatalf("ParseLiteral(%q) error = %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLiteral(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLiteral_Rejects(t *testing.T) {
	inputs := []string{
		"",
		"foo",
		"__import__('os')",
		"[1, 2",
		`"unterminated`,
		"1 2",
		"open('x').read()",
	}
	for _, in := range inputs {
		if _, err := ParseLiteral(in); !errors.Is(err, ErrParse) {
			t.Errorf("ParseLiteral(%q) error = %v, want ErrParse", in, err)
		}
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []any
	}{
		{"empty", "", []any{}},
		{"whitespace only", "   ", []any{}},
		{"quoted query", `"weather in Paris"`, []any{"weather in Paris"}},
		{"single quoted", `'hello'`, []any{"hello"}},
		{"quoted number is parsed", `"2024"`, []any{2024}},
		{"two strings keep quotes", `"a", "b"`, []any{"a", "b"}},
		{"mixed tuple", `"x", 3, [1, 2]`, []any{"x", 3, []any{1, 2}}},
		{"list spreads", `[1, 2]`, []any{1, 2}},
		{"unparseable is one string", `$1 times $2`, []any{"$1 times $2"}},
		{"multiline becomes one string", "\"line one\nline two\"", []any{"line one\nline two"}},
		{"placeholder in quotes", `"summarize $3"`, []any{"summarize $3"}},
		{"apostrophe inside single quotes", `'What's the weather'`, []any{"What's the weather"}},
		{"embedded double quotes", `"say "hi" now"`, []any{`say "hi" now`}},
		{"unbalanced outer quote kept", `"open ended`, []any{`"open ended`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseArgs(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
