package plan

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/agentgate/internal/graph"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

type fakeTool struct {
	name     string
	category models.ToolCategory
}

func (f fakeTool) Name() string                               { return f.name }
func (f fakeTool) Describe() string                           { return f.name + "(query: str)" }
func (f fakeTool) Category() models.ToolCategory              { return f.category }
func (f fakeTool) Invoke(context.Context, []any) (any, error) { return nil, nil }

type fakeRegistry map[string]models.Tool

func (r fakeRegistry) Lookup(name string) (models.Tool, bool) {
	t, ok := r[name]
	return t, ok
}

func newRegistry() fakeRegistry {
	return fakeRegistry{
		"search":    fakeTool{"search", models.CategorySearch},
		"lookup":    fakeTool{"lookup", models.CategoryFunction},
		"math":      fakeTool{"math", models.CategoryFunction},
		"summarize": fakeTool{"summarize", models.CategorySummarize},
	}
}

func mustParse(t *testing.T, text string) *graph.TaskGraph {
	t.Helper()
	g, err := NewParser(newRegistry(), nil).Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return g
}

type taskShape struct {
	id   int
	name string
	args []any
	deps []int
}

func shapes(g *graph.TaskGraph) []taskShape {
	var out []taskShape
	for _, tk := range g.Tasks() {
		out = append(out, taskShape{tk.ID, tk.Name, tk.Args, tk.Dependencies})
	}
	return out
}

func TestParse_SearchThenFuse(t *testing.T) {
	g := mustParse(t, "1. search(\"x\")\n2. fuse()")

	want := []taskShape{
		{1, "search", []any{"x"}, []int{}},
		{2, "fuse", []any{}, []int{1}},
	}
	if got := shapes(g); !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
	fuse, ok := g.Fuse()
	if !ok || !fuse.IsFuse || fuse.Tool != nil {
		t.Errorf("Fuse() = %+v, %v, want fuse marker without tool", fuse, ok)
	}
}

func TestParse_ThoughtsAndDependencies(t *testing.T) {
	text := `Thought: I need the population first.
1. lookup("France population")
Thought: And the area.
2. lookup("France area")
3. math("divide $1 by ${2}")
Thought: Done.
4. fuse()
<END_OF_PLAN>`

	g := mustParse(t, text)
	tasks := g.Tasks()
	if len(tasks) != 4 {
		t.Fatalf("len(tasks) = %d, want 4", len(tasks))
	}
	if tasks[0].Thought != "I need the population first." {
		t.Errorf("tasks[0].Thought = %q", tasks[0].Thought)
	}
	if tasks[2].Thought != "" {
		t.Errorf("tasks[2].Thought = %q, want empty", tasks[2].Thought)
	}
	if got, want := tasks[2].Dependencies, []int{1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("math deps = %v, want %v", got, want)
	}
	if got, want := tasks[3].Dependencies, []int{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("fuse deps = %v, want %v", got, want)
	}
}

func TestParse_SummarizeInsertion(t *testing.T) {
	text := `1. search("revenue 2023")
2. lookup("fx rate")
3. math("$1 times $2")
4. fuse()`

	g := mustParse(t, text)
	want := []taskShape{
		{1, "search", []any{"revenue 2023"}, []int{}},
		{2, "summarize", []any{"Concisely give me \"revenue 2023\" ONLY using the following context: $1. DO NOT include any other rationale."}, []int{1}},
		{3, "lookup", []any{"fx rate"}, []int{}},
		{4, "math", []any{"$2 times $3"}, []int{2, 3}},
		{5, "fuse", []any{}, []int{1, 2, 3, 4}},
	}
	if got := shapes(g); !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() =\n%+v\nwant\n%+v", got, want)
	}

	summary, _ := g.Get(2)
	if !summary.Synthetic || summary.Thought != summarizeThought {
		t.Errorf("summary task = %+v, want synthetic with summarize thought", summary)
	}
}

func TestParse_NoInsertionForSecondToLast(t *testing.T) {
	g := mustParse(t, "1. lookup(\"a\")\n2. search(\"b\")\n3. fuse()")

	var names []string
	for _, tk := range g.Tasks() {
		names = append(names, tk.Name)
	}
	if want := []string{"lookup", "search", "fuse"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestParse_StopsAtFuse(t *testing.T) {
	g := mustParse(t, "1. lookup(\"a\")\n2. fuse()\n3. lookup(\"b\")")
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}
	// Steps after fuse do not make a search step look like it is not second to last.
	g = mustParse(t, "1. search(\"a\")\n2. fuse()\n3. lookup(\"late\")\n")
	var names []string
	for _, tk := range g.Tasks() {
		names = append(names, tk.Name)
	}
	if want := []string{"search", "fuse"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestParse_UnknownTool(t *testing.T) {
	g := mustParse(t, "1. teleport(\"mars\")\n2. fuse()")

	task, _ := g.Get(1)
	if !errors.Is(task.ResolveErr, ErrToolNotFound) {
		t.Fatalf("ResolveErr = %v, want ErrToolNotFound", task.ResolveErr)
	}
	var nf *ToolNotFoundError
	if !errors.As(task.ResolveErr, &nf) || nf.Name != "teleport" {
		t.Errorf("ResolveErr = %#v, want ToolNotFoundError{teleport}", task.ResolveErr)
	}
}

func TestParse_EmptyAndGarbage(t *testing.T) {
	p := NewParser(newRegistry(), nil)

	g, err := p.Parse("I cannot help with that.")
	if err != nil || g.Len() != 0 {
		t.Errorf("Parse(prose) = %v, %v, want empty graph", g, err)
	}

	if _, err := p.Parse("1. lookup unclosed paren"); !errors.Is(err, ErrParse) {
		t.Errorf("Parse(numbered garbage) error = %v, want ErrParse", err)
	}
}

func TestDependencies(t *testing.T) {
	tests := []struct {
		name string
		id   int
		tool string
		args string
		want []int
	}{
		{"fuse waits on all", 4, "fuse", "", []int{1, 2, 3}},
		{"textual refs", 5, "math", "$1 + ${3}", []int{1, 3}},
		{"self and forward refs ignored", 2, "math", "$2 $7", []int{}},
		{"no refs", 3, "lookup", "plain", []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dependencies(tt.id, tt.tool, tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dependencies() = %v, want %v", got, tt.want)
			}
		})
	}
}

// randomPlan builds plan text with random tools and references, including
// forward and self references the parser must ignore.
func randomPlan(r *rand.Rand) string {
	tools := []string{"search", "lookup", "math", "unknown"}
	n := 1 + r.Intn(8)
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if r.Intn(2) == 0 {
			fmt.Fprintf(&b, "Thought: step %d\n", i)
		}
		var refs []string
		for j := 0; j < r.Intn(3); j++ {
			ref := 1 + r.Intn(n+2)
			if r.Intn(2) == 0 {
				refs = append(refs, fmt.Sprintf("$%d", ref))
			} else {
				refs = append(refs, fmt.Sprintf("${%d}", ref))
			}
		}
		fmt.Fprintf(&b, "%d. %s(\"q %s\")\n", i, tools[r.Intn(len(tools))], strings.Join(refs, " "))
	}
	if r.Intn(4) != 0 {
		fmt.Fprintf(&b, "%d. fuse()\n", n+1)
	}
	return b.String()
}

func TestParse_AcyclicByConstruction(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	p := NewParser(newRegistry(), nil)

	for i := 0; i < 500; i++ {
		text := randomPlan(r)
		g, err := p.Parse(text)
		if err != nil {
			t.Fatalf("Parse() error = %v\n%s", err, text)
		}
		if err := g.Validate(); err != nil {
			t.Fatalf("Validate() error = %v\n%s", err, text)
		}
		for idx, tk := range g.Tasks() {
			if tk.ID != idx+1 {
				t.Fatalf("task ids not contiguous: got %d at %d\n%s", tk.ID, idx, text)
			}
			for _, dep := range tk.Dependencies {
				if dep >= tk.ID {
					t.Fatalf("task %d depends on %d\n%s", tk.ID, dep, text)
				}
			}
		}
	}
}

func TestRewrite_ShiftsLaterReferences(t *testing.T) {
	isSearch := func(tool string) bool { return tool == "search" }

	for p := 1; p <= 4; p++ {
		t.Run(fmt.Sprintf("search at %d", p), func(t *testing.T) {
			// Six steps; step k references every earlier step.
			var recs []Record
			for k := 1; k <= 6; k++ {
				tool := "lookup"
				if k == p {
					tool = "search"
				}
				var refs []string
				for j := 1; j < k; j++ {
					refs = append(refs, fmt.Sprintf("$%d", j))
				}
				recs = append(recs, Record{ID: k, Tool: tool, Args: strings.Join(refs, ",")})
			}

			out := Rewrite(recs, isSearch)
			if len(out) != 7 {
				t.Fatalf("len(out) = %d, want 7", len(out))
			}
			if out[p].Tool != SummarizeToolName || out[p].ID != p+1 {
				t.Fatalf("out[%d] = %+v, want summarize with id %d", p, out[p], p+1)
			}
			for _, rec := range out[p+1:] {
				orig := rec.ID - 1
				var want []string
				for j := 1; j < orig; j++ {
					switch {
					case j < p:
						want = append(want, fmt.Sprintf("$%d", j))
					case j == p:
						want = append(want, fmt.Sprintf("$%d", p+1))
					default:
						want = append(want, fmt.Sprintf("$%d", j+1))
					}
				}
				if rec.Args != strings.Join(want, ",") {
					t.Errorf("step %d args = %q, want %q", rec.ID, rec.Args, strings.Join(want, ","))
				}
			}
		})
	}
}
