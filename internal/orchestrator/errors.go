package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/agentgate/internal/graph"
)

var (
	// ErrMalformedGraph indicates a structurally invalid task graph.
	ErrMalformedGraph = graph.ErrMalformed
	// ErrTaskFailed matches every *TaskError.
	ErrTaskFailed = errors.New("task failed")
	// ErrFusionParse indicates the fuser reply had no usable Finish action.
	ErrFusionParse = errors.New("unable to parse fusion output")
	// ErrEmptyPlan indicates the planner reply compiled to zero tasks.
	ErrEmptyPlan = errors.New("planner produced no tasks")
	// ErrNoResponse indicates the loop finished without producing an answer.
	ErrNoResponse = errors.New("unable to retrieve response. Please check each of your tools and ensure all connections are valid")
	// ErrInvalidConfig indicates a bad orchestrator configuration.
	ErrInvalidConfig = errors.New("invalid orchestrator config")
)

// GraphError describes a structural problem with a task graph.
type GraphError = graph.Error

// TaskError is recorded on a task whose tool failed, panicked, or could not
// be resolved.
type TaskError struct {
	TaskID int
	Tool   string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (%s) failed: %v", e.TaskID, e.Tool, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTaskFailed) true for any TaskError.
func (e *TaskError) Is(target error) bool { return target == ErrTaskFailed }

// Stage names a step of one loop iteration.
type Stage string

const (
	StagePlan    Stage = "plan"
	StageExecute Stage = "execute"
	StageFuse    Stage = "fuse"
)

// StageError is the single error a caller of Run sees. It names the stage and
// iteration that failed.
type StageError struct {
	Stage     Stage
	Iteration int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (iteration %d): %v", e.Stage, e.Iteration+1, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
