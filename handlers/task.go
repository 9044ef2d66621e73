package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"vetvoice/dto"
	"vetvoice/middleware"
	"vetvoice/models"
	"vetvoice/registry"
	"vetvoice/service"
	"vetvoice/validation"
)

// TaskAPI is the service surface the handlers need. Declared here so tests
// can substitute a mock.
type TaskAPI interface {
	Submit(ctx context.Context, traceID, filename string, data []byte) (*models.Task, error)
	Progress(ctx context.Context, taskID string) (*models.Task, error)
	Result(ctx context.Context, taskID string) (*models.Result, error)
	List(ctx context.Context) ([]*models.Task, error)
	Health(ctx context.Context) (transcriberReady, extractorReady bool)
}

type TaskHandler struct {
	service TaskAPI
	logger  *zap.Logger
}

func NewTaskHandler(service TaskAPI, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger,
	}
}

func (h *TaskHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/transcribe", h.Transcribe)
	mux.HandleFunc("/progress/", h.Progress)
	mux.HandleFunc("/results/", h.Results)
	mux.HandleFunc("/tasks", h.Tasks)
	mux.HandleFunc("/health", h.Health)
}

func (h *TaskHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if r.Method != http.MethodPost {
		h.handleError(w, "Method not allowed", nil, traceID, http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, "Failed to get file", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.handleError(w, "Failed to read file", err, traceID, http.StatusInternalServerError)
		return
	}

	task, err := h.service.Submit(r.Context(), traceID, header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrUnsupportedFormat):
			h.handleError(w, "Unsupported audio format", err, traceID, http.StatusBadRequest)
		case errors.Is(err, validation.ErrEmptyInput):
			h.handleError(w, "Audio payload is empty", err, traceID, http.StatusBadRequest)
		case errors.Is(err, validation.ErrFileTooLarge):
			h.handleError(w, "File too large", err, traceID, http.StatusBadRequest)
		case errors.Is(err, registry.ErrResourceExhausted):
			h.handleError(w, "Too many tasks, try again later", err, traceID, http.StatusTooManyRequests)
		default:
			h.handleError(w, "Failed to start transcription", err, traceID, http.StatusInternalServerError)
		}
		return
	}

	h.logger.Info("File uploaded",
		zap.String("trace_id", traceID),
		zap.String("task_id", task.ID),
		zap.String("filename", header.Filename),
	)

	h.respondJSON(w, http.StatusCreated, dto.TaskResponse{
		TaskID:  task.ID,
		Status:  string(task.Status),
		Message: "Transcription task started",
	})
}

func (h *TaskHandler) Progress(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := strings.TrimPrefix(r.URL.Path, "/progress/")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	task, err := h.service.Progress(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, registry.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task progress", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewProgressResponse(task))
}

func (h *TaskHandler) Results(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := strings.TrimPrefix(r.URL.Path, "/results/")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	result, err := h.service.Result(r.Context(), taskID)
	if err != nil {
		var failed *service.TaskFailedError
		switch {
		case errors.Is(err, registry.ErrTaskNotFound):
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
		case errors.Is(err, service.ErrNotReady):
			h.handleError(w, "Task not completed yet", err, traceID, http.StatusConflict)
		case errors.As(err, &failed):
			h.handleError(w, failed.Detail.Message, err, traceID, http.StatusInternalServerError)
		default:
			h.handleError(w, "Failed to get task result", err, traceID, http.StatusInternalServerError)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewResultResponse(taskID, result))
}

func (h *TaskHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	tasks, err := h.service.List(r.Context())
	if err != nil {
		h.handleError(w, "Failed to list tasks", err, traceID, http.StatusInternalServerError)
		return
	}

	resp := dto.TaskListResponse{Tasks: make([]dto.TaskSummary, 0, len(tasks))}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, dto.NewTaskSummary(task))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	transcriberReady, extractorReady := h.service.Health(r.Context())

	status := "healthy"
	if !transcriberReady || !extractorReady {
		status = "degraded"
	}

	h.respondJSON(w, http.StatusOK, dto.HealthResponse{
		Status:           status,
		TranscriberReady: transcriberReady,
		ExtractorReady:   extractorReady,
		Timestamp:        time.Now().Format(time.RFC3339Nano),
	})
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
