package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vetvoice/database"
	"vetvoice/models"
)

// Postgres is the durable registry backend. Row-level locking gives the same
// per-task mutual exclusion the in-memory backend gets from entry mutexes.
type Postgres struct {
	db *database.DB
}

func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the registry tables if they do not exist yet.
func (r *Postgres) Migrate(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			trace_id TEXT NOT NULL,
			original_filename TEXT NOT NULL,
			status TEXT NOT NULL,
			current_stage TEXT NOT NULL DEFAULT '',
			overall_progress INT NOT NULL DEFAULT 0,
			result JSONB,
			error_detail JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS task_stages (
			seq BIGSERIAL PRIMARY KEY,
			task_id UUID NOT NULL REFERENCES tasks(id),
			stage TEXT NOT NULL,
			progress INT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS task_stages_task_id_idx ON task_stages(task_id, seq);
	`)
	return err
}

func (r *Postgres) Create(ctx context.Context, traceID, originalFilename string) (*models.Task, error) {
	task := &models.Task{
		TraceID:          traceID,
		OriginalFilename: originalFilename,
		Status:           models.StatusQueued,
	}

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO tasks (trace_id, original_filename, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, traceID, originalFilename, task.Status).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return task, nil
}

// lockTask fetches the task status under FOR UPDATE inside tx.
func lockTask(ctx context.Context, tx pgx.Tx, id string) (models.TaskStatus, error) {
	var status models.TaskStatus
	err := tx.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrTaskNotFound
	}
	return status, err
}

func (r *Postgres) AppendStage(ctx context.Context, id string, stage models.Stage, message string) error {
	if stage == models.StageCompleted || stage == models.StageError {
		return ErrInvalidStage
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		status, err := lockTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if status == models.StatusCompleted || status == models.StatusFailed {
			return ErrInvalidTransition
		}

		var progress int
		err = tx.QueryRow(ctx, `
			UPDATE tasks
			SET status = $2,
			    current_stage = $3,
			    overall_progress = GREATEST(overall_progress, $4)
			WHERE id = $1
			RETURNING overall_progress
		`, id, models.StatusRunning, stage, models.StageProgress[stage]).Scan(&progress)
		if err != nil {
			return err
		}

		return insertStage(ctx, tx, id, stage, progress, message)
	})
}

func (r *Postgres) Complete(ctx context.Context, id string, result models.Result, message string) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		status, err := lockTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if status == models.StatusCompleted || status == models.StatusFailed {
			return ErrInvalidTransition
		}

		_, err = tx.Exec(ctx, `
			UPDATE tasks
			SET status = $2, current_stage = $3, overall_progress = 100, result = $4
			WHERE id = $1
		`, id, models.StatusCompleted, models.StageCompleted, data)
		if err != nil {
			return err
		}

		return insertStage(ctx, tx, id, models.StageCompleted, 100, message)
	})
}

func (r *Postgres) Fail(ctx context.Context, id string, detail models.ErrorDetail) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		status, err := lockTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if status == models.StatusCompleted || status == models.StatusFailed {
			return ErrInvalidTransition
		}

		var progress int
		err = tx.QueryRow(ctx, `
			UPDATE tasks
			SET status = $2, current_stage = $3, error_detail = $4
			WHERE id = $1
			RETURNING overall_progress
		`, id, models.StatusFailed, models.StageError, data).Scan(&progress)
		if err != nil {
			return err
		}

		return insertStage(ctx, tx, id, models.StageError, progress, detail.Message)
	})
}

// Get reads the task row and its stage history in one repeatable-read
// transaction so both come from the same committed state. Without it a
// concurrent Complete/Fail could commit between the two queries and the
// snapshot would show a terminal history entry under a running status.
func (r *Postgres) Get(ctx context.Context, id string) (*models.Task, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, trace_id, original_filename, status, current_stage, overall_progress, result, error_detail, created_at
		FROM tasks
		WHERE id = $1
	`, id)

	task, err := scanTaskRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT stage, progress, message, created_at
		FROM task_stages
		WHERE task_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		var ev models.StageEvent
		if err := rows.Scan(&ev.Stage, &ev.Progress, &ev.Message, &ev.Timestamp); err != nil {
			rows.Close()
			return nil, err
		}
		task.Stages = append(task.Stages, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return task, tx.Commit(ctx)
}

func (r *Postgres) List(ctx context.Context) ([]*models.Task, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, trace_id, original_filename, status, current_stage, overall_progress, result, error_detail, created_at
		FROM tasks
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

func scanTaskRow(row pgx.Row) (*models.Task, error) {
	var (
		task       models.Task
		resultData []byte
		errorData  []byte
	)

	err := row.Scan(
		&task.ID,
		&task.TraceID,
		&task.OriginalFilename,
		&task.Status,
		&task.CurrentStage,
		&task.OverallProgress,
		&resultData,
		&errorData,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resultData != nil {
		task.Result = &models.Result{}
		if err := json.Unmarshal(resultData, task.Result); err != nil {
			return nil, err
		}
	}
	if errorData != nil {
		task.ErrorDetail = &models.ErrorDetail{}
		if err := json.Unmarshal(errorData, task.ErrorDetail); err != nil {
			return nil, err
		}
	}

	return &task, nil
}

func insertStage(ctx context.Context, tx pgx.Tx, id string, stage models.Stage, progress int, message string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO task_stages (task_id, stage, progress, message)
		VALUES ($1, $2, $3, $4)
	`, id, stage, progress, message)
	return err
}

func (r *Postgres) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
