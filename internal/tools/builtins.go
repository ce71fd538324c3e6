package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// builtin describes a Go function that the registry file can expose by name.
type builtin struct {
	signature string
	desc      string
	output    string
	fn        Func
}

var builtins = map[string]builtin{
	"word_count": {
		signature: "word_count(text: str) -> int",
		desc:      "Counts the words in a piece of text",
		output:    "Returns the number of whitespace-separated words",
		fn: func(_ context.Context, args []any) (any, error) {
			text, err := firstArg("word_count", args)
			if err != nil {
				return nil, err
			}
			return len(strings.Fields(text)), nil
		},
	},
	"sum": {
		signature: "sum(*numbers: float) -> float",
		desc:      "Adds numbers together",
		output:    "Returns the total as a number",
		fn: func(_ context.Context, args []any) (any, error) {
			var total float64
			for _, a := range flatten(args) {
				n, err := toFloat(a)
				if err != nil {
					return nil, fmt.Errorf("%w: sum: %v", ErrInvalidArgs, err)
				}
				total += n
			}
			return total, nil
		},
	},
	"current_date": {
		signature: "current_date() -> str",
		desc:      "Returns today's date",
		output:    "Returns the date in YYYY-MM-DD form",
		fn: func(context.Context, []any) (any, error) {
			return time.Now().Format("2006-01-02"), nil
		},
	},
}

// BuiltinNames lists the functions available to `type: function` entries.
func BuiltinNames() []string {
	return []string{"current_date", "sum", "word_count"}
}

func flatten(args []any) []any {
	var out []any
	for _, a := range args {
		if list, ok := a.([]any); ok {
			out = append(out, flatten(list)...)
			continue
		}
		out = append(out, a)
	}
	return out
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
