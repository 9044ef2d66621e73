package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vetvoice/models"
)

type memoryEntry struct {
	mu   sync.Mutex
	task *models.Task
}

// Memory is the default in-process registry. A read-write lock guards the
// id-to-entry map; each entry carries its own mutex so mutations on
// different tasks proceed independently.
type Memory struct {
	mu       sync.RWMutex
	tasks    map[string]*memoryEntry
	order    []string
	maxTasks int
}

// NewMemory returns an in-memory registry. maxTasks caps the number of
// stored tasks; zero or negative means unbounded.
func NewMemory(maxTasks int) *Memory {
	return &Memory{
		tasks:    make(map[string]*memoryEntry),
		maxTasks: maxTasks,
	}
}

func (m *Memory) Create(ctx context.Context, traceID, originalFilename string) (*models.Task, error) {
	task := &models.Task{
		ID:               uuid.New().String(),
		TraceID:          traceID,
		OriginalFilename: originalFilename,
		Status:           models.StatusQueued,
		CreatedAt:        time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxTasks > 0 && len(m.tasks) >= m.maxTasks {
		return nil, ErrResourceExhausted
	}

	m.tasks[task.ID] = &memoryEntry{task: task}
	m.order = append(m.order, task.ID)

	return task.Clone(), nil
}

func (m *Memory) entry(id string) (*memoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return e, nil
}

func (m *Memory) AppendStage(ctx context.Context, id string, stage models.Stage, message string) error {
	if stage == models.StageCompleted || stage == models.StageError {
		return ErrInvalidStage
	}

	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.task.Terminal() {
		return ErrInvalidTransition
	}

	appendStageLocked(e.task, stage, message)
	e.task.Status = models.StatusRunning

	return nil
}

func (m *Memory) Complete(ctx context.Context, id string, result models.Result, message string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.task.Terminal() {
		return ErrInvalidTransition
	}

	appendStageLocked(e.task, models.StageCompleted, message)
	e.task.Status = models.StatusCompleted
	e.task.OverallProgress = 100
	e.task.Result = &result

	return nil
}

func (m *Memory) Fail(ctx context.Context, id string, detail models.ErrorDetail) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.task.Terminal() {
		return ErrInvalidTransition
	}

	appendStageLocked(e.task, models.StageError, detail.Message)
	e.task.Status = models.StatusFailed
	e.task.ErrorDetail = &detail

	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*models.Task, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.task.Clone(), nil
}

func (m *Memory) List(ctx context.Context) ([]*models.Task, error) {
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.order))
	for _, id := range m.order {
		entries = append(entries, m.tasks[id])
	}
	m.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		tasks = append(tasks, e.task.Clone())
		e.mu.Unlock()
	}

	return tasks, nil
}

// appendStageLocked records one history entry and recomputes progress.
// Stage history timestamps never go backwards even if the wall clock does.
func appendStageLocked(task *models.Task, stage models.Stage, message string) {
	now := time.Now()
	if n := len(task.Stages); n > 0 && now.Before(task.Stages[n-1].Timestamp) {
		now = task.Stages[n-1].Timestamp
	}

	progress := task.OverallProgress
	if p, ok := models.StageProgress[stage]; ok && p > progress {
		progress = p
	}

	task.Stages = append(task.Stages, models.StageEvent{
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: now,
	})
	task.CurrentStage = stage
	task.OverallProgress = progress
}
