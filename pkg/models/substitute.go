package models

import (
	"regexp"
	"strconv"
)

// placeholderPattern matches $N and ${N} references to earlier task ids.
var placeholderPattern = regexp.MustCompile(`\$\{?(\d+)\}?`)

// substitutePattern matches exactly ${N} or $N, taking every digit so $12 is
// never read as $1 followed by 2.
var substitutePattern = regexp.MustCompile(`\$\{(\d+)\}|\$(\d+)`)

// ReferencedIDs returns every id referenced by a placeholder in s, in order of appearance.
func ReferencedIDs(s string) []int {
	var ids []int
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// SubstituteArgs replaces placeholders for each dependency with that task's
// observation in a single pass, so placeholders inside an inserted observation
// are left alone. Lists are walked recursively and non-string values pass
// through. Only ids in deps are touched, and a dependency lookup that returns
// false leaves its placeholder in place.
func SubstituteArgs(args []any, deps []int, lookup func(id int) (string, bool)) []any {
	allowed := make(map[int]bool, len(deps))
	for _, d := range deps {
		allowed[d] = true
	}

	out := make([]any, len(args))
	for i, a := range args {
		out[i] = substituteValue(a, allowed, lookup)
	}
	return out
}

func substituteValue(v any, deps map[int]bool, lookup func(int) (string, bool)) any {
	switch x := v.(type) {
	case string:
		return substitutePattern.ReplaceAllStringFunc(x, func(m string) string {
			sub := substitutePattern.FindStringSubmatch(m)
			digits := sub[1]
			if digits == "" {
				digits = sub[2]
			}
			id, err := strconv.Atoi(digits)
			if err != nil || !deps[id] {
				return m
			}
			if obs, ok := lookup(id); ok {
				return obs
			}
			return m
		})
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = substituteValue(e, deps, lookup)
		}
		return out
	default:
		return v
	}
}
