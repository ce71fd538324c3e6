package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// ReplanMarker in a fuser answer requests another iteration.
	ReplanMarker = "Replan"
	// ClarificationAnswer is used when the fuser asks to replan without a Finish action.
	ClarificationAnswer = "Replan required. Consider rephrasing your question."

	finishAction = "Action: Finish("
)

var fusionThought = regexp.MustCompile(`Thought: (.*?)\n\n`)

// FusionOutput is the parsed fuser reply.
type FusionOutput struct {
	// Thought is the fuser's rationale, empty when absent.
	Thought string
	// Answer is the Finish payload or ClarificationAnswer.
	Answer string
	// Replan reports whether the answer asks for another iteration.
	Replan bool
}

// ParseFusionOutput parses a fuser reply of the form
//
//	Thought: <rationale>
//
//	Action: Finish(<answer>)
//
// The answer runs to the parenthesis that balances the one after Finish, so it
// may itself contain parentheses.
func ParseFusionOutput(raw string) (FusionOutput, error) {
	var out FusionOutput
	if m := fusionThought.FindStringSubmatch(raw); m != nil {
		out.Thought = m[1]
	}

	answer, err := extractAnswer(raw)
	if err != nil {
		return FusionOutput{}, err
	}
	out.Answer = answer
	out.Replan = strings.Contains(answer, ReplanMarker)
	return out, nil
}

func extractAnswer(raw string) (string, error) {
	start := strings.Index(raw, finishAction)
	if start < 0 {
		if strings.Contains(raw, ReplanMarker) {
			return ClarificationAnswer, nil
		}
		return "", fmt.Errorf("%w: no %q action in reply", ErrFusionParse, strings.TrimSuffix(finishAction, "("))
	}
	start += len(finishAction)

	depth := 1
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return raw[start:i], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unterminated Finish action", ErrFusionParse)
}
