package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vetvoice/models"
)

const statusKeyPrefix = "task:progress:"

// Store is the key-value surface the mirror needs. *database.Cache satisfies
// it; tests substitute an in-memory fake.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// StatusCache mirrors task snapshots into redis after every mutation. The
// registry stays authoritative; the mirror serves reads for ids the registry
// no longer holds and gives external consumers a TTL-bounded view.
type StatusCache struct {
	store Store
	ttl   time.Duration
}

func NewStatusCache(store Store, ttl time.Duration) *StatusCache {
	return &StatusCache{store: store, ttl: ttl}
}

type snapshot struct {
	ID               string              `json:"id"`
	TraceID          string              `json:"trace_id"`
	OriginalFilename string              `json:"original_filename"`
	Status           models.TaskStatus   `json:"status"`
	CurrentStage     models.Stage        `json:"current_stage"`
	OverallProgress  int                 `json:"overall_progress"`
	Stages           []models.StageEvent `json:"stages"`
	Result           *models.Result      `json:"result,omitempty"`
	ErrorDetail      *models.ErrorDetail `json:"error_detail,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func (sc *StatusCache) Get(ctx context.Context, taskID string) (*models.Task, error) {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, taskID)

	data, err := sc.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}

	return &models.Task{
		ID:               snap.ID,
		TraceID:          snap.TraceID,
		OriginalFilename: snap.OriginalFilename,
		Status:           snap.Status,
		CurrentStage:     snap.CurrentStage,
		OverallProgress:  snap.OverallProgress,
		Stages:           snap.Stages,
		Result:           snap.Result,
		ErrorDetail:      snap.ErrorDetail,
		CreatedAt:        snap.CreatedAt,
	}, nil
}

func (sc *StatusCache) Set(ctx context.Context, task *models.Task) error {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, task.ID)

	data, err := json.Marshal(snapshot{
		ID:               task.ID,
		TraceID:          task.TraceID,
		OriginalFilename: task.OriginalFilename,
		Status:           task.Status,
		CurrentStage:     task.CurrentStage,
		OverallProgress:  task.OverallProgress,
		Stages:           task.Stages,
		Result:           task.Result,
		ErrorDetail:      task.ErrorDetail,
		CreatedAt:        task.CreatedAt,
	})
	if err != nil {
		return err
	}

	return sc.store.Set(ctx, key, data, sc.ttl)
}

func (sc *StatusCache) Delete(ctx context.Context, taskID string) error {
	key := fmt.Sprintf("%s%s", statusKeyPrefix, taskID)
	return sc.store.Del(ctx, key)
}
