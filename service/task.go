package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vetvoice/cache"
	"vetvoice/models"
	"vetvoice/ner"
	"vetvoice/pipeline"
	"vetvoice/registry"
	"vetvoice/stt"
	"vetvoice/validation"
)

// ErrNotReady is returned by Result while the task is still queued/running.
var ErrNotReady = errors.New("task not completed yet")

// TaskFailedError carries the stored error detail of a failed task.
type TaskFailedError struct {
	Detail models.ErrorDetail
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task failed at stage %s: %s", e.Detail.Stage, e.Detail.Message)
}

// TaskService is the boundary the HTTP handlers talk to: submission plus the
// read-only progress/result/list queries.
type TaskService struct {
	registry     registry.Registry
	orchestrator *pipeline.Orchestrator
	cache        *cache.StatusCache
	stt          stt.Engine
	ner          ner.Engine
	supported    []validation.Format
	maxFileSize  int64
	logger       *zap.Logger
}

func NewTaskService(
	reg registry.Registry,
	orchestrator *pipeline.Orchestrator,
	statusCache *cache.StatusCache,
	sttEngine stt.Engine,
	nerEngine ner.Engine,
	supported []validation.Format,
	maxFileSize int64,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		registry:     reg,
		orchestrator: orchestrator,
		cache:        statusCache,
		stt:          sttEngine,
		ner:          nerEngine,
		supported:    supported,
		maxFileSize:  maxFileSize,
		logger:       logger,
	}
}

// Submit validates the upload synchronously, creates the task and hands it
// to the orchestrator. Input errors never create a task.
func (s *TaskService) Submit(ctx context.Context, traceID, filename string, data []byte) (*models.Task, error) {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, validation.ErrFileTooLarge
	}

	format, err := validation.ValidateUpload(data, s.supported)
	if err != nil {
		return nil, err
	}

	task, err := s.registry.Create(ctx, traceID, filename)
	if err != nil {
		return nil, err
	}

	if err := s.orchestrator.Start(ctx, task, data, format); err != nil {
		return nil, err
	}

	s.logger.Info("Task submitted",
		zap.String("task_id", task.ID),
		zap.String("trace_id", traceID),
		zap.String("filename", filename),
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
	)

	return task, nil
}

// Progress returns the current snapshot. When the registry no longer holds
// the id, the redis mirror is consulted before reporting not found.
func (s *TaskService) Progress(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.registry.Get(ctx, taskID)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, registry.ErrTaskNotFound) {
		return nil, err
	}

	if s.cache != nil {
		if cached, cacheErr := s.cache.Get(ctx, taskID); cacheErr == nil {
			return cached, nil
		}
	}

	return nil, registry.ErrTaskNotFound
}

// Result returns the materialized result of a completed task. Callers are
// expected to have observed completion via Progress first.
func (s *TaskService) Result(ctx context.Context, taskID string) (*models.Result, error) {
	task, err := s.Progress(ctx, taskID)
	if err != nil {
		return nil, err
	}

	switch task.Status {
	case models.StatusCompleted:
		return task.Result, nil
	case models.StatusFailed:
		return nil, &TaskFailedError{Detail: *task.ErrorDetail}
	default:
		return nil, ErrNotReady
	}
}

// List returns snapshots of all tasks in creation order.
func (s *TaskService) List(ctx context.Context) ([]*models.Task, error) {
	return s.registry.List(ctx)
}

// Health reports whether the shared inference engines are loaded and ready.
func (s *TaskService) Health(ctx context.Context) (transcriberReady, extractorReady bool) {
	return s.stt.Ready(ctx), s.ner.Ready(ctx)
}
