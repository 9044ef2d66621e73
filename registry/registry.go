package registry

import (
	"context"
	"errors"

	"vetvoice/models"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("task already in a terminal state")
	ErrInvalidStage      = errors.New("stage not valid for append")
	ErrResourceExhausted = errors.New("task capacity exhausted")
)

// Registry is the single source of truth for task state. Mutations on one
// task id are mutually exclusive; operations on different ids do not block
// each other. Reads return snapshots and never observe a half-written task.
type Registry interface {
	// Create allocates a new task in queued state and returns its snapshot.
	Create(ctx context.Context, traceID, originalFilename string) (*models.Task, error)
	// AppendStage appends one history entry for an intermediate stage,
	// updates the current stage and recomputes overall progress. The first
	// append moves the task from queued to running.
	AppendStage(ctx context.Context, id string, stage models.Stage, message string) error
	// Complete atomically appends the completed stage event, sets progress
	// to 100 and stores the result.
	Complete(ctx context.Context, id string, result models.Result, message string) error
	// Fail atomically appends the error stage event and stores the error
	// detail. Progress keeps its last value.
	Fail(ctx context.Context, id string, detail models.ErrorDetail) error
	// Get returns an immutable snapshot of the task.
	Get(ctx context.Context, id string) (*models.Task, error)
	// List returns snapshots of all tasks in creation order.
	List(ctx context.Context) ([]*models.Task, error)
}
