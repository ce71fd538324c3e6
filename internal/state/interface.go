package state

import "io"

// RunStore handles run persistence.
type RunStore interface {
	BeginRun(r *Run) error
	FinishRun(id, output string, runErr error) error
	SetIterations(id string, n int) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
}

// TaskStore handles per-task persistence.
type TaskStore interface {
	RecordTask(rec TaskRecord) error
	ListTasks(runID string) ([]TaskRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// HistoryStore composes everything the CLI and server record.
type HistoryStore interface {
	io.Closer
	Migrator
	RunStore
	TaskStore
}

var (
	_ HistoryStore = (*DB)(nil)
	_ RunStore     = (*DB)(nil)
	_ TaskStore    = (*DB)(nil)
)
