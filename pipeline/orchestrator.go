package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vetvoice/audio"
	"vetvoice/models"
	"vetvoice/ner"
	"vetvoice/registry"
	"vetvoice/stt"
	"vetvoice/validation"
)

// Notifier observes every registry mutation with a fresh task snapshot.
// Used to mirror progress to the cache and publish stage events.
type Notifier interface {
	TaskUpdated(ctx context.Context, task *models.Task)
}

// Orchestrator drives a task through the pipeline stages, updating the
// registry and invoking the two inference adapters behind their gates.
type Orchestrator struct {
	registry   registry.Registry
	normalizer *audio.Normalizer
	stt        stt.Engine
	ner        ner.Engine
	sttGate    *Gate
	nerGate    *Gate
	pool       *Pool
	notifier   Notifier
	logger     *zap.Logger
}

func NewOrchestrator(
	reg registry.Registry,
	normalizer *audio.Normalizer,
	sttEngine stt.Engine,
	nerEngine ner.Engine,
	sttGate, nerGate *Gate,
	pool *Pool,
	notifier Notifier,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:   reg,
		normalizer: normalizer,
		stt:        sttEngine,
		ner:        nerEngine,
		sttGate:    sttGate,
		nerGate:    nerGate,
		pool:       pool,
		notifier:   notifier,
		logger:     logger,
	}
}

// Start moves a freshly created task into running(received) and schedules
// the pipeline on the worker pool. The returned error covers only the
// synchronous transition; stage failures land in the task's error detail.
func (o *Orchestrator) Start(ctx context.Context, task *models.Task, data []byte, format validation.Format) error {
	msg := fmt.Sprintf("Task started for file: %s (%d bytes)", task.OriginalFilename, len(data))
	if err := o.registry.AppendStage(ctx, task.ID, models.StageReceived, msg); err != nil {
		return err
	}
	o.notify(ctx, task.ID)

	// The pipeline outlives the submission request.
	runCtx := context.WithoutCancel(ctx)
	o.pool.Go(runCtx, func(ctx context.Context) {
		o.run(ctx, task, data, format)
	})

	return nil
}

// Wait blocks until all in-flight pipelines finish. Used on shutdown.
func (o *Orchestrator) Wait() {
	o.pool.Wait()
}

func (o *Orchestrator) run(ctx context.Context, task *models.Task, data []byte, format validation.Format) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Pipeline panic",
				zap.String("task_id", task.ID),
				zap.Any("error", r),
			)
			o.fail(ctx, task, task.CurrentStage, fmt.Errorf("internal error: %v", r))
		}
	}()

	// Stage: audio conversion.
	if err := o.advance(ctx, task, models.StageConvertingAudio, "Converting audio to 16kHz mono PCM"); err != nil {
		return
	}
	wave, err := o.normalizer.Normalize(ctx, data, format)
	if err != nil {
		o.fail(ctx, task, models.StageConvertingAudio, err)
		return
	}

	// Stage: transcription.
	if err := o.advance(ctx, task, models.StageTranscribing,
		fmt.Sprintf("Audio decoded (%.2fs), starting speech-to-text", wave.DurationSeconds())); err != nil {
		return
	}
	recognized, err := o.transcribe(ctx, wave)
	if err != nil {
		o.fail(ctx, task, models.StageTranscribing, err)
		return
	}

	// Stage: entity extraction.
	if err := o.advance(ctx, task, models.StageExtractingEntities,
		fmt.Sprintf("Transcription completed (%d characters), extracting entities", len(recognized.Transcript))); err != nil {
		return
	}
	entities, err := o.extract(ctx, recognized.Transcript)
	if err != nil {
		o.fail(ctx, task, models.StageExtractingEntities, err)
		return
	}

	result := models.Result{
		Transcript:            recognized.Transcript,
		Confidence:            recognized.Confidence,
		DurationSeconds:       wave.DurationSeconds(),
		Diagnoses:             entities.Diagnoses,
		Treatments:            entities.Treatments,
		ProcessingTimeSeconds: time.Since(task.CreatedAt).Seconds(),
	}

	msg := fmt.Sprintf("Processing completed: %d diagnoses, %d treatments",
		len(result.Diagnoses), len(result.Treatments))
	if err := o.registry.Complete(ctx, task.ID, result, msg); err != nil {
		o.logger.Error("Failed to store result",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return
	}
	o.notify(ctx, task.ID)

	o.logger.Info("Task completed",
		zap.String("task_id", task.ID),
		zap.String("trace_id", task.TraceID),
		zap.Float64("duration_seconds", result.DurationSeconds),
		zap.Float64("processing_time_seconds", result.ProcessingTimeSeconds),
	)
}

func (o *Orchestrator) transcribe(ctx context.Context, wave *audio.Waveform) (*stt.Result, error) {
	if err := o.sttGate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", stt.ErrRecognitionFailed, err)
	}
	defer o.sttGate.Release()

	return o.stt.Transcribe(ctx, wave)
}

func (o *Orchestrator) extract(ctx context.Context, transcript string) (*ner.Entities, error) {
	if err := o.nerGate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ner.ErrExtractionFailed, err)
	}
	defer o.nerGate.Release()

	return o.ner.Extract(ctx, transcript)
}

func (o *Orchestrator) advance(ctx context.Context, task *models.Task, stage models.Stage, message string) error {
	if err := o.registry.AppendStage(ctx, task.ID, stage, message); err != nil {
		o.logger.Error("Failed to append stage",
			zap.String("task_id", task.ID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return err
	}
	task.CurrentStage = stage
	o.notify(ctx, task.ID)

	o.logger.Info("Stage entered",
		zap.String("task_id", task.ID),
		zap.String("trace_id", task.TraceID),
		zap.String("stage", string(stage)),
		zap.String("message", message),
	)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, task *models.Task, stage models.Stage, cause error) {
	detail := models.ErrorDetail{Stage: stage, Message: cause.Error()}
	if err := o.registry.Fail(ctx, task.ID, detail); err != nil {
		o.logger.Error("Failed to record task failure",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return
	}
	o.notify(ctx, task.ID)

	o.logger.Warn("Task failed",
		zap.String("task_id", task.ID),
		zap.String("trace_id", task.TraceID),
		zap.String("stage", string(stage)),
		zap.String("error", detail.Message),
	)
}

func (o *Orchestrator) notify(ctx context.Context, taskID string) {
	if o.notifier == nil {
		return
	}
	snap, err := o.registry.Get(ctx, taskID)
	if err != nil {
		return
	}
	o.notifier.TaskUpdated(ctx, snap)
}
