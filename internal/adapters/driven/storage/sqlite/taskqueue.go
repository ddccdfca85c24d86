package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// taskQueue implements driven.TaskQueue on the tasks table. Claiming uses a
// single UPDATE ... RETURNING so two workers can never run the same task.
type taskQueue struct {
	store *Store
}

var _ driven.TaskQueue = (*taskQueue)(nil)

const taskColumns = `id, event_id, event_type, status, attempts, max_attempts,
	not_before, error, result, settings, created_at, started_at, finished_at`

// Enqueue persists a pending task. Duplicate ids and event ids are no-ops.
func (q *taskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	settingsJSON, err := json.Marshal(task.Settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	_, err = q.store.db.ExecContext(ctx, `
		INSERT INTO tasks (id, event_id, event_type, status, attempts, max_attempts,
			not_before, error, result, settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID.String(), task.EventID.String(), string(task.Type), string(task.Status),
		task.Attempts, task.MaxAttempts, task.NotBefore.UTC(), task.Error,
		nullRawMessage(task.Result), string(settingsJSON), task.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("enqueueing task: %w", err)
	}
	return nil
}

// Claim atomically moves the oldest due pending task to running.
func (q *taskQueue) Claim(ctx context.Context) (*domain.Task, error) {
	now := time.Now().UTC()
	row := q.store.db.QueryRowContext(ctx, `
		UPDATE tasks SET status = ?, attempts = attempts + 1, started_at = ?
		WHERE id = (
			SELECT id FROM tasks
			WHERE status = ? AND not_before <= ?
			ORDER BY created_at ASC LIMIT 1
		)
		RETURNING `+taskColumns,
		string(domain.TaskRunning), now, string(domain.TaskPending), now)

	task, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Complete marks a running task succeeded and records its result.
func (q *taskQueue) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, result = ?, error = '', finished_at = ?
		WHERE id = ?
	`, string(domain.TaskSucceeded), nullRawMessage(result), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("completing task: %w", err)
	}
	return requireAffected(res)
}

// Requeue returns a running task to pending with a backoff delay.
func (q *taskQueue) Requeue(ctx context.Context, id uuid.UUID, delay time.Duration, errMsg string) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, not_before = ?, error = ?, started_at = NULL
		WHERE id = ?
	`, string(domain.TaskPending), time.Now().UTC().Add(delay), errMsg, id.String())
	if err != nil {
		return fmt.Errorf("requeueing task: %w", err)
	}
	return requireAffected(res)
}

// Fail marks a running task failed with a final error message.
func (q *taskQueue) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(domain.TaskFailed), errMsg, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failing task: %w", err)
	}
	return requireAffected(res)
}

// Get retrieves a task by ID.
func (q *taskQueue) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := q.store.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id.String())
	return scanTask(row)
}

// GetByEvent retrieves the task associated with an event.
func (q *taskQueue) GetByEvent(ctx context.Context, eventID uuid.UUID) (*domain.Task, error) {
	row := q.store.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE event_id = ?`, eventID.String())
	return scanTask(row)
}

// CountByStatus returns the number of tasks in each status.
func (q *taskQueue) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := q.store.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning task count: %w", err)
		}
		counts[domain.TaskStatus(status)] = count
	}
	return counts, rows.Err()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var id, eventID, eventType, status, settingsJSON string
	var result sql.NullString
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&id, &eventID, &eventType, &status, &task.Attempts, &task.MaxAttempts,
		&task.NotBefore, &task.Error, &result, &settingsJSON,
		&task.CreatedAt, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	var err error
	if task.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing task id: %w", err)
	}
	if task.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("parsing event id: %w", err)
	}
	task.Type = domain.EventType(eventType)
	task.Status = domain.TaskStatus(status)
	if result.Valid {
		task.Result = json.RawMessage(result.String)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &task.Settings); err != nil {
		return nil, fmt.Errorf("unmarshalling settings: %w", err)
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		task.FinishedAt = &finishedAt.Time
	}
	return &task, nil
}

func nullRawMessage(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
