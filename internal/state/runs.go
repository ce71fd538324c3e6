package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunActive      RunStatus = "active"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one question answered (or not) by the gateway.
type Run struct {
	ID         string     `json:"id"`
	Input      string     `json:"input"`
	Output     string     `json:"output"`
	Error      string     `json:"error,omitempty"`
	Status     RunStatus  `json:"status"`
	Origin     string     `json:"origin"`
	Iterations int        `json:"iterations"`
	PID        int        `json:"pid"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TaskRecord is the last known state of one task in one iteration of a run.
type TaskRecord struct {
	RunID     string    `json:"run_id"`
	Iteration int       `json:"iteration"`
	TaskID    int       `json:"task_id"`
	Tool      string    `json:"tool"`
	Action    string    `json:"action"`
	State     string    `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeginRun inserts an active run. PID and StartedAt default to this
// process and now.
func (db *DB) BeginRun(r *Run) error {
	if r.PID == 0 {
		r.PID = os.Getpid()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	r.Status = RunActive

	_, err := db.Exec(`
		INSERT INTO runs (id, input, status, origin, pid, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Input, string(r.Status), r.Origin, r.PID, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run. A nil runErr marks it completed.
func (db *DB) FinishRun(id, output string, runErr error) error {
	status, msg := RunCompleted, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	_, err := db.Exec(`
		UPDATE runs SET output = ?, error = ?, status = ?, finished_at = ?
		WHERE id = ?
	`, output, msg, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// SetIterations records how many iterations a run has started.
func (db *DB) SetIterations(id string, n int) error {
	if _, err := db.Exec(`UPDATE runs SET iterations = ? WHERE id = ?`, n, id); err != nil {
		return fmt.Errorf("set iterations: %w", err)
	}
	return nil
}

const runColumns = `id, input, output, error, status, origin, iterations, pid, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r          Run
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Input, &r.Output, &r.Error, &r.Status, &r.Origin,
		&r.Iterations, &r.PID, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// GetRun retrieves a run by ID. It returns nil, nil when there is no such run.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListActiveRuns returns runs that never recorded an outcome.
func (db *DB) ListActiveRuns() ([]Run, error) {
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY seq`, string(RunActive))
	if err != nil {
		return nil, fmt.Errorf("list active runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// RecordTask upserts a task's state. An empty Action or Detail keeps the
// previously stored value, so later lifecycle events need not repeat them.
func (db *DB) RecordTask(rec TaskRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO run_tasks (run_id, iteration, task_id, tool, action, state, detail, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, iteration, task_id) DO UPDATE SET
			tool = CASE WHEN excluded.tool = '' THEN run_tasks.tool ELSE excluded.tool END,
			action = CASE WHEN excluded.action = '' THEN run_tasks.action ELSE excluded.action END,
			detail = CASE WHEN excluded.detail = '' THEN run_tasks.detail ELSE excluded.detail END,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, rec.RunID, rec.Iteration, rec.TaskID, rec.Tool, rec.Action, rec.State, rec.Detail, formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("record task: %w", err)
	}
	return nil
}

// ListTasks returns a run's tasks ordered by iteration and task id.
func (db *DB) ListTasks(runID string) ([]TaskRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, iteration, task_id, tool, action, state, detail, updated_at
		FROM run_tasks WHERE run_id = ? ORDER BY iteration, task_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var (
			rec       TaskRecord
			updatedAt string
		)
		if err := rows.Scan(&rec.RunID, &rec.Iteration, &rec.TaskID, &rec.Tool, &rec.Action,
			&rec.State, &rec.Detail, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		rec.UpdatedAt, _ = parseTime(updatedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
