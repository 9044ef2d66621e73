package service

import (
	"context"

	"go.uber.org/zap"

	"vetvoice/cache"
	"vetvoice/events"
	"vetvoice/models"
)

// Mirror fans registry snapshots out to the optional redis cache and kafka
// stage-event topic. Both sinks are best-effort: the pipeline never blocks
// or fails on them.
type Mirror struct {
	cache     *cache.StatusCache
	publisher events.Publisher
	logger    *zap.Logger
}

func NewMirror(statusCache *cache.StatusCache, publisher events.Publisher, logger *zap.Logger) *Mirror {
	return &Mirror{
		cache:     statusCache,
		publisher: publisher,
		logger:    logger,
	}
}

func (m *Mirror) TaskUpdated(ctx context.Context, task *models.Task) {
	if m.cache != nil {
		if err := m.cache.Set(ctx, task); err != nil {
			m.logger.Warn("Failed to mirror task snapshot",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
		}
	}

	if m.publisher != nil && len(task.Stages) > 0 {
		last := task.Stages[len(task.Stages)-1]
		event := &events.StageEvent{
			TaskID:    task.ID,
			TraceID:   task.TraceID,
			Status:    string(task.Status),
			Stage:     string(last.Stage),
			Progress:  last.Progress,
			Message:   last.Message,
			Timestamp: last.Timestamp,
		}
		if err := m.publisher.PublishStageEvent(ctx, event); err != nil {
			m.logger.Warn("Failed to publish stage event",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
		}
	}
}
