// Package plan compiles planner output into a task graph.
package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ShayCichocki/agentgate/internal/graph"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

const fuseName = models.FuseToolName

// actionPattern matches an optional "Thought:" line followed by "N. tool(args)"
// and an optional trailing "#comment" line.
var actionPattern = regexp.MustCompile(`(?s)(?:Thought: ([^\n]*)\n)?\n*(\d+)\. (\w+)\((.*?)\)(\s*#\w+\n)?`)

// numberedLine detects text that looks like a plan step even if it failed to match.
var numberedLine = regexp.MustCompile(`(?m)^\s*\d+\.\s+\w+`)

// Resolver looks up tools by name.
type Resolver interface {
	Lookup(name string) (models.Tool, bool)
}

// Parser turns plan text into a task graph.
type Parser struct {
	tools  Resolver
	logger *logging.Logger
}

// NewParser creates a parser resolving tools against the given registry.
func NewParser(tools Resolver, logger *logging.Logger) *Parser {
	return &Parser{tools: tools, logger: logger.With("plan")}
}

// Tokenize extracts step records from plan text in order of appearance.
func Tokenize(text string) []Record {
	return tokenize(text, actionPattern.FindAllStringSubmatchIndex(text, -1))
}

func tokenize(text string, locs [][]int) []Record {
	records := make([]Record, 0, len(locs))
	for _, loc := range locs {
		id, err := strconv.Atoi(text[loc[4]:loc[5]])
		if err != nil {
			continue
		}
		rec := Record{
			ID:   id,
			Tool: text[loc[6]:loc[7]],
			Args: text[loc[8]:loc[9]],
		}
		if loc[2] >= 0 {
			rec.Thought = text[loc[2]:loc[3]]
		}
		records = append(records, rec)
	}
	return records
}

// Parse compiles plan text into a task graph. Text with no recognizable steps
// yields an empty graph; text that looks like numbered steps but matches none
// is an ErrParse. Steps after the fuse step are discarded.
func (p *Parser) Parse(text string) (*graph.TaskGraph, error) {
	records := Tokenize(text)
	if len(records) == 0 && numberedLine.MatchString(text) {
		return nil, fmt.Errorf("%w: no step matched %q", ErrParse, firstLine(text))
	}

	records = untilFuse(records)
	rewritten := Rewrite(records, p.isSearchLike)
	p.logger.Debugf("tokenized %d steps, %d after rewrite", len(records), len(rewritten))

	g := graph.New()
	g.SetDebugLog(p.logger.Debugf)
	for _, rec := range rewritten {
		task := p.Task(rec)
		if err := g.Add(task); err != nil {
			return nil, fmt.Errorf("add task %d: %w", task.ID, err)
		}
		if task.IsFuse {
			break
		}
	}
	return g, nil
}

// untilFuse drops records after the first fuse record, so they never count
// toward the second-to-last test in Rewrite.
func untilFuse(records []Record) []Record {
	for i, rec := range records {
		if rec.IsFuse() {
			return records[:i+1]
		}
	}
	return records
}

// Task builds a task from a rewritten record. An unknown tool does not fail
// the parse: the task carries a ToolNotFoundError that the scheduler applies
// when the task becomes ready.
func (p *Parser) Task(rec Record) *models.Task {
	task := &models.Task{
		ID:           rec.ID,
		Name:         rec.Tool,
		Args:         ParseArgs(rec.Args),
		Dependencies: Dependencies(rec.ID, rec.Tool, rec.Args),
		Thought:      rec.Thought,
		IsFuse:       rec.IsFuse(),
		Synthetic:    rec.Synthetic,
		State:        models.TaskStatePending,
	}
	if task.IsFuse {
		return task
	}
	tool, ok := p.tools.Lookup(rec.Tool)
	if !ok {
		task.ResolveErr = &ToolNotFoundError{Name: rec.Tool}
		p.logger.Infof("task %d references unknown tool %s", rec.ID, rec.Tool)
		return task
	}
	task.Tool = tool
	return task
}

// Dependencies infers the ids a step waits on. The fuse step waits on every
// earlier id; any other step waits on the earlier ids it references in its
// raw argument text.
func Dependencies(id int, tool, args string) []int {
	deps := []int{}
	if tool == fuseName {
		for i := 1; i < id; i++ {
			deps = append(deps, i)
		}
		return deps
	}
	referenced := make(map[int]bool)
	for _, ref := range models.ReferencedIDs(args) {
		referenced[ref] = true
	}
	for i := 1; i < id; i++ {
		if referenced[i] {
			deps = append(deps, i)
		}
	}
	return deps
}

func (p *Parser) isSearchLike(name string) bool {
	tool, ok := p.tools.Lookup(name)
	return ok && models.IsSearchLike(tool)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
