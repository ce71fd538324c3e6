package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrParse indicates plan text or an argument literal did not match the grammar.
	ErrParse = errors.New("plan parse error")
	// ErrToolNotFound indicates a plan step names a tool the registry does not have.
	ErrToolNotFound = errors.New("tool not found")
)

// ToolNotFoundError records which tool name failed to resolve.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %s not found", e.Name)
}

// Unwrap lets errors.Is match ErrToolNotFound.
func (e *ToolNotFoundError) Unwrap() error {
	return ErrToolNotFound
}
