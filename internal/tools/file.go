package tools

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/agentgate/internal/llm"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// Tool types accepted in the registry file.
const (
	TypeSearch   = "search"
	TypeAnalyst  = "analyst"
	TypeSQL      = "sql"
	TypeFunction = "function"
)

// File is the on-disk tool registry.
type File struct {
	Tools []Spec `yaml:"tools"`
}

// Spec declares one tool. Which fields apply depends on Type.
type Spec struct {
	Name            string            `yaml:"name"`
	Type            string            `yaml:"type"`
	Description     string            `yaml:"description,omitempty"`
	Topic           string            `yaml:"topic,omitempty"`
	DataDescription string            `yaml:"data_description,omitempty"`
	Endpoint        string            `yaml:"endpoint,omitempty"`
	SearchColumns   []string          `yaml:"search_columns,omitempty"`
	Columns         []string          `yaml:"columns,omitempty"`
	Limit           int               `yaml:"limit,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Driver          string            `yaml:"driver,omitempty"`
	DSN             string            `yaml:"dsn,omitempty"`
	Query           string            `yaml:"query,omitempty"`
	Params          []string          `yaml:"params,omitempty"`
	Model           string            `yaml:"model,omitempty"`
	Schema          string            `yaml:"schema,omitempty"`
	Builtin         string            `yaml:"builtin,omitempty"`
}

// LoadFile reads and parses a registry file. ${VAR} references in
// endpoints, headers and DSNs are expanded from the environment.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool registry: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tool registry %s: %w", path, err)
	}
	for i := range f.Tools {
		s := &f.Tools[i]
		s.Endpoint = os.ExpandEnv(s.Endpoint)
		s.DSN = os.ExpandEnv(s.DSN)
		for k, v := range s.Headers {
			s.Headers[k] = os.ExpandEnv(v)
		}
	}
	return &f, nil
}

// Save writes the registry file.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode tool registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write tool registry: %w", err)
	}
	return nil
}

// BuildDeps carries what tool constructors need beyond their Spec.
type BuildDeps struct {
	// Completer backs analyst tools.
	Completer llm.Completer
	// HTTPClient is shared by search tools. Optional.
	HTTPClient *http.Client
	// Logger is passed to every tool.
	Logger *logging.Logger
}

// Build constructs the tools declared in the file. The returned closer
// releases database handles; call it when the tools are replaced.
func (f *File) Build(deps BuildDeps) ([]models.Tool, func() error, error) {
	var out []models.Tool
	var closers []io.Closer
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}

	for _, s := range f.Tools {
		t, err := buildTool(s, deps)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("tool %q: %w", s.Name, err)
		}
		if c, ok := t.(io.Closer); ok {
			closers = append(closers, c)
		}
		out = append(out, t)
	}
	return out, closeAll, nil
}

func buildTool(s Spec, deps BuildDeps) (models.Tool, error) {
	switch s.Type {
	case TypeSearch:
		return NewSearchTool(SearchConfig{
			Name:            s.Name,
			Topic:           s.Topic,
			DataDescription: s.DataDescription,
			Endpoint:        s.Endpoint,
			SearchColumns:   s.SearchColumns,
			Columns:         s.Columns,
			Limit:           s.Limit,
			Headers:         s.Headers,
			HTTPClient:      deps.HTTPClient,
		}, deps.Logger)
	case TypeAnalyst:
		return NewAnalystTool(AnalystConfig{
			Name:            s.Name,
			Topic:           s.Topic,
			DataDescription: s.DataDescription,
			Driver:          s.Driver,
			DSN:             s.DSN,
			Model:           s.Model,
			Schema:          s.Schema,
		}, deps.Completer, deps.Logger)
	case TypeSQL:
		return NewSQLTool(SQLConfig{
			Name:        s.Name,
			Description: s.Description,
			Params:      s.Params,
			Driver:      s.Driver,
			DSN:         s.DSN,
			Query:       s.Query,
		}, deps.Logger)
	case TypeFunction:
		b, ok := builtins[s.Builtin]
		if !ok {
			return nil, fmt.Errorf("unknown builtin %q (available: %v)", s.Builtin, BuiltinNames())
		}
		name := s.Name
		if name == "" {
			name = s.Builtin
		}
		desc := b.desc
		if s.Description != "" {
			desc = s.Description
		}
		return NewFunctionTool(name, b.signature, desc, b.output, b.fn), nil
	default:
		return nil, fmt.Errorf("unknown tool type %q", s.Type)
	}
}
