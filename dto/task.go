package dto

import (
	"time"

	"vetvoice/models"
)

const timestampLayout = time.RFC3339Nano

type TaskResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type StageEventResponse struct {
	Stage     string `json:"stage"`
	Progress  int    `json:"progress"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ProgressResponse struct {
	TaskID          string               `json:"task_id"`
	Status          string               `json:"status"`
	CurrentStage    string               `json:"current_stage"`
	OverallProgress int                  `json:"overall_progress"`
	Stages          []StageEventResponse `json:"stages"`
}

type ResultResponse struct {
	TaskID                string   `json:"task_id"`
	Transcript            string   `json:"transcript"`
	Confidence            float64  `json:"confidence"`
	DurationSeconds       float64  `json:"duration_seconds"`
	Diagnoses             []string `json:"diagnoses"`
	Treatments            []string `json:"treatments"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
}

type TaskSummary struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	CurrentStage string `json:"current_stage"`
	Progress     int    `json:"progress"`
	CreatedAt    string `json:"created_at"`
}

type TaskListResponse struct {
	Tasks []TaskSummary `json:"tasks"`
}

type HealthResponse struct {
	Status           string `json:"status"`
	TranscriberReady bool   `json:"transcriber_ready"`
	ExtractorReady   bool   `json:"ner_ready"`
	Timestamp        string `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func NewProgressResponse(task *models.Task) *ProgressResponse {
	stages := make([]StageEventResponse, 0, len(task.Stages))
	for _, ev := range task.Stages {
		stages = append(stages, StageEventResponse{
			Stage:     string(ev.Stage),
			Progress:  ev.Progress,
			Message:   ev.Message,
			Timestamp: ev.Timestamp.Format(timestampLayout),
		})
	}

	return &ProgressResponse{
		TaskID:          task.ID,
		Status:          string(task.Status),
		CurrentStage:    string(task.CurrentStage),
		OverallProgress: task.OverallProgress,
		Stages:          stages,
	}
}

func NewResultResponse(taskID string, result *models.Result) *ResultResponse {
	diagnoses := result.Diagnoses
	if diagnoses == nil {
		diagnoses = []string{}
	}
	treatments := result.Treatments
	if treatments == nil {
		treatments = []string{}
	}

	return &ResultResponse{
		TaskID:                taskID,
		Transcript:            result.Transcript,
		Confidence:            result.Confidence,
		DurationSeconds:       result.DurationSeconds,
		Diagnoses:             diagnoses,
		Treatments:            treatments,
		ProcessingTimeSeconds: result.ProcessingTimeSeconds,
	}
}

func NewTaskSummary(task *models.Task) TaskSummary {
	return TaskSummary{
		TaskID:       task.ID,
		Status:       string(task.Status),
		CurrentStage: string(task.CurrentStage),
		Progress:     task.OverallProgress,
		CreatedAt:    task.CreatedAt.Format(timestampLayout),
	}
}
