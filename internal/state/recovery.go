package state

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// MarkInterrupted fails runs that are still active but whose process has
// exited, for example after a crash or a killed server. Runs owned by a live
// process are left alone. Returns the runs that were marked.
func (db *DB) MarkInterrupted() ([]Run, error) {
	active, err := db.ListActiveRuns()
	if err != nil {
		return nil, err
	}

	var marked []Run
	for _, r := range active {
		if isProcessAlive(r.PID) {
			continue
		}
		_, err := db.Exec(`
			UPDATE runs SET status = ?, error = ?, finished_at = ?
			WHERE id = ? AND status = ?
		`, string(RunInterrupted), fmt.Sprintf("process %d exited before the run finished", r.PID),
			formatTime(time.Now()), r.ID, string(RunActive))
		if err != nil {
			return marked, fmt.Errorf("mark run %s interrupted: %w", r.ID, err)
		}
		r.Status = RunInterrupted
		marked = append(marked, r)
	}
	return marked, nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
