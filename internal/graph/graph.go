// Package graph provides the ordered task graph built from a plan.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/agentgate/pkg/models"
)

// ErrMalformed indicates the graph violates its structural rules.
var ErrMalformed = errors.New("malformed task graph")

// ErrorKind classifies structural graph errors.
type ErrorKind string

const (
	// KindDuplicateID means two tasks share an id.
	KindDuplicateID ErrorKind = "duplicate_id"
	// KindMissingDependency means a task depends on an id that was never defined.
	KindMissingDependency ErrorKind = "missing_dependency"
	// KindForwardDependency means a task depends on an id not lower than its own.
	KindForwardDependency ErrorKind = "forward_dependency"
	// KindInvalidID means a task id is not positive.
	KindInvalidID ErrorKind = "invalid_id"
	// KindAfterFuse means a task was added after the fuse task closed the graph.
	KindAfterFuse ErrorKind = "after_fuse"
)

// Error describes a structural problem with the graph.
type Error struct {
	Kind   ErrorKind
	TaskID int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: task %d: %s", ErrMalformed, e.TaskID, e.Msg)
}

// Unwrap lets errors.Is match ErrMalformed.
func (e *Error) Unwrap() error {
	return ErrMalformed
}

// TaskGraph is an id-ordered set of tasks with a reverse dependency index.
// Dependencies always point to lower ids so the graph is acyclic by construction.
type TaskGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[int]*models.Task
	// order holds ids in insertion order, which is ascending id order.
	order []int
	// dependents maps task ID to the ids that depend on it.
	dependents map[int][]int
	// fuseID is the id of the fuse task, or 0.
	fuseID int
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty task graph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes:      make(map[int]*models.Task),
		dependents: make(map[int][]int),
		debugLog:   func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *TaskGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Add inserts a task without checking its dependencies. Use Validate or
// AddChecked when the dependencies must already exist.
func (g *TaskGraph) Add(task *models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(task, false)
}

// AddChecked inserts a task after verifying every dependency is already in the
// graph and lower than the task's id.
func (g *TaskGraph) AddChecked(task *models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(task, true)
}

func (g *TaskGraph) addLocked(task *models.Task, checkDeps bool) error {
	if task.ID <= 0 {
		return &Error{Kind: KindInvalidID, TaskID: task.ID, Msg: "id must be positive"}
	}
	if _, exists := g.nodes[task.ID]; exists {
		return &Error{Kind: KindDuplicateID, TaskID: task.ID, Msg: "id already defined"}
	}
	if g.fuseID != 0 {
		return &Error{Kind: KindAfterFuse, TaskID: task.ID, Msg: fmt.Sprintf("graph closed by fuse task %d", g.fuseID)}
	}
	if checkDeps {
		if err := g.checkDepsLocked(task); err != nil {
			return err
		}
	}

	g.debugLog("[graph.Add] id=%d name=%s deps=%v", task.ID, task.Name, task.Dependencies)
	g.nodes[task.ID] = task
	g.order = append(g.order, task.ID)
	if len(g.order) > 1 && g.order[len(g.order)-2] > task.ID {
		sort.Ints(g.order)
	}
	for _, dep := range task.Dependencies {
		g.dependents[dep] = append(g.dependents[dep], task.ID)
	}
	if task.IsFuse {
		g.fuseID = task.ID
	}
	return nil
}

func (g *TaskGraph) checkDepsLocked(task *models.Task) error {
	for _, dep := range task.Dependencies {
		if dep >= task.ID {
			return &Error{Kind: KindForwardDependency, TaskID: task.ID, Msg: fmt.Sprintf("depends on %d", dep)}
		}
		if _, ok := g.nodes[dep]; !ok {
			return &Error{Kind: KindMissingDependency, TaskID: task.ID, Msg: fmt.Sprintf("depends on undefined task %d", dep)}
		}
	}
	return nil
}

// Validate checks that every dependency exists and points to a lower id.
func (g *TaskGraph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.order {
		if err := g.checkDepsLocked(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the task for a given ID.
func (g *TaskGraph) Get(id int) (*models.Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.nodes[id]
	return t, ok
}

// Tasks returns every task in ascending id order.
func (g *TaskGraph) Tasks() []*models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(g.order))
	for _, id := range g.order {
		tasks = append(tasks, g.nodes[id])
	}
	return tasks
}

// Len returns the number of tasks in the graph.
func (g *TaskGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Fuse returns the fuse task if the graph has one.
func (g *TaskGraph) Fuse() (*models.Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.fuseID == 0 {
		return nil, false
	}
	return g.nodes[g.fuseID], true
}

// Dependents returns the ids of tasks that directly depend on the given task.
func (g *TaskGraph) Dependents(id int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]int(nil), g.dependents[id]...)
}

// TransitiveDependents returns every id reachable through dependents of the
// given task, in ascending order.
func (g *TaskGraph) TransitiveDependents(id int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[int]bool)
	var visit func(int)
	visit = func(n int) {
		for _, d := range g.dependents[n] {
			if !seen[d] {
				seen[d] = true
				visit(d)
			}
		}
	}
	visit(id)

	out := make([]int, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Pending returns the ids of tasks that have not reached a terminal state.
func (g *TaskGraph) Pending() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []int
	for _, id := range g.order {
		if !g.nodes[id].State.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids
}
