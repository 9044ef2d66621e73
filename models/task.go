package models

import (
	"time"
)

type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

type Stage string

const (
	StageReceived           Stage = "received"
	StageConvertingAudio    Stage = "converting_audio"
	StageTranscribing       Stage = "transcribing"
	StageExtractingEntities Stage = "extracting_entities"
	StageCompleted          Stage = "completed"
	StageError              Stage = "error"
)

// StageProgress is the fixed stage-to-percentage mapping used to recompute
// overall progress on every stage append. StageError has no entry: a failed
// task keeps the progress of the last stage it reached.
var StageProgress = map[Stage]int{
	StageReceived:           5,
	StageConvertingAudio:    20,
	StageTranscribing:       60,
	StageExtractingEntities: 90,
	StageCompleted:          100,
}

// StageEvent is one append-only entry of a task's stage history.
type StageEvent struct {
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Result holds the materialized output of a completed task.
type Result struct {
	Transcript            string   `json:"transcript"`
	Confidence            float64  `json:"confidence"`
	DurationSeconds       float64  `json:"duration_seconds"`
	Diagnoses             []string `json:"diagnoses"`
	Treatments            []string `json:"treatments"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
}

// ErrorDetail holds the terminal error of a failed task and the stage at
// which it occurred.
type ErrorDetail struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Task is one end-to-end transcription-and-extraction job. Exactly one of
// Result/ErrorDetail is set once the task leaves queued/running; the registry
// enforces this on Complete/Fail.
type Task struct {
	ID               string
	TraceID          string
	OriginalFilename string
	Status           TaskStatus
	CurrentStage     Stage
	OverallProgress  int
	Stages           []StageEvent
	Result           *Result
	ErrorDetail      *ErrorDetail
	CreatedAt        time.Time
}

// Terminal reports whether the task reached completed or failed.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Clone returns a deep copy safe to hand to readers while the original keeps
// mutating under its own lock.
func (t *Task) Clone() *Task {
	c := *t
	c.Stages = make([]StageEvent, len(t.Stages))
	copy(c.Stages, t.Stages)
	if t.Result != nil {
		r := *t.Result
		r.Diagnoses = append([]string(nil), t.Result.Diagnoses...)
		r.Treatments = append([]string(nil), t.Result.Treatments...)
		c.Result = &r
	}
	if t.ErrorDetail != nil {
		d := *t.ErrorDetail
		c.ErrorDetail = &d
	}
	return &c
}
