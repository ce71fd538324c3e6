package state

import (
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/orchestrator"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// Recorder writes orchestrator events for one run into the database. A nil
// Recorder ignores every event.
type Recorder struct {
	db     *DB
	runID  string
	logger *logging.Logger
}

// NewRecorder creates a recorder for an already begun run.
func NewRecorder(db *DB, runID string, logger *logging.Logger) *Recorder {
	return &Recorder{db: db, runID: runID, logger: logger.With("history")}
}

// Record stores one event. Write failures are logged, never returned, so a
// broken history database cannot fail a run.
func (r *Recorder) Record(e orchestrator.OrchestratorEvent) {
	if r == nil {
		return
	}

	var err error
	switch e.Type {
	case orchestrator.EventIterationStarted:
		err = r.db.SetIterations(r.runID, e.Iteration+1)
	case orchestrator.EventTaskQueued:
		err = r.task(e, models.TaskStateReady, "", "")
	case orchestrator.EventTaskStarted:
		err = r.task(e, models.TaskStateRunning, e.Message, "")
	case orchestrator.EventTaskCompleted:
		err = r.task(e, models.TaskStateCompleted, "", "")
	case orchestrator.EventTaskFailed:
		detail := e.Message
		if e.Error != nil {
			detail = e.Error.Error()
		}
		err = r.task(e, models.TaskStateFailed, "", detail)
	case orchestrator.EventTaskSkipped:
		err = r.task(e, models.TaskStateSkipped, "", e.Message)
	}
	if err != nil {
		r.logger.Infof("run %s: %v", r.runID, err)
	}
}

func (r *Recorder) task(e orchestrator.OrchestratorEvent, st models.TaskState, action, detail string) error {
	return r.db.RecordTask(TaskRecord{
		RunID:     r.runID,
		Iteration: e.Iteration,
		TaskID:    e.TaskID,
		Tool:      e.Tool,
		Action:    action,
		State:     string(st),
		Detail:    detail,
		UpdatedAt: e.Timestamp,
	})
}
