// Package tools provides the operation registry and the built-in tool variants.
package tools

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ShayCichocki/agentgate/pkg/models"
)

var (
	// ErrDuplicateTool indicates two tools share a name.
	ErrDuplicateTool = errors.New("duplicate tool name")
	// ErrReservedName indicates a tool tried to use the fuse name.
	ErrReservedName = errors.New("reserved tool name")
	// ErrInvalidArgs indicates a tool was invoked with arguments it cannot use.
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

// Registry maps tool names to tools. It is safe for concurrent use and can be
// swapped wholesale when the registry file changes.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]models.Tool
	order []string
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...models.Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]models.Tool)}
	if err := r.Replace(tools); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a tool.
func (r *Registry) Register(t models.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := checkName(t.Name(), r.tools); err != nil {
		return err
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Replace swaps the full tool set. On error the registry is unchanged.
func (r *Registry) Replace(tools []models.Tool) error {
	next := make(map[string]models.Tool, len(tools))
	order := make([]string, 0, len(tools))
	for _, t := range tools {
		if err := checkName(t.Name(), next); err != nil {
			return err
		}
		next[t.Name()] = t
		order = append(order, t.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = next
	r.order = order
	return nil
}

func checkName(name string, existing map[string]models.Tool) error {
	if name == models.FuseToolName {
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	}
	if _, dup := existing[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	return nil
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (models.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns every tool in registration order.
func (r *Registry) Tools() []models.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Describe renders the numbered tool list shown to the planner.
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, t := range r.Tools() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimRight(t.Describe(), "\n"))
	}
	return b.String()
}

// firstArg returns the first argument as a string, or all arguments joined
// with spaces when the planner split a sentence.
func firstArg(name string, args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: %s expects one argument", ErrInvalidArgs, name)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = models.Stringify(a)
	}
	return strings.Join(parts, " "), nil
}
