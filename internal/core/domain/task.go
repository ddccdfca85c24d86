package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the execution state of a background task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Task is the durable unit of background work associated with an event.
// Exactly one task exists per event; retries re-run the same task, never
// a duplicate, so an event is processed at most once to completion.
type Task struct {
	ID      uuid.UUID
	EventID uuid.UUID
	Type    EventType
	Status  TaskStatus

	// Attempts counts executions so far; MaxAttempts bounds retries.
	Attempts    int
	MaxAttempts int

	// NotBefore delays a requeued task for backoff.
	NotBefore time.Time

	// Error holds the last failure message. It survives a later success
	// only as history on the final failed attempt.
	Error string

	// Result is the JSON-encoded outcome (QAAnswer, SearchResultSet,
	// Summary, ...) recorded when the task completes.
	Result json.RawMessage

	// Settings is the configuration snapshot captured at submission time.
	// A settings change never alters in-flight work.
	Settings Settings

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Terminal reports whether the task reached a final state.
func (t *Task) Terminal() bool {
	return t.Status == TaskSucceeded || t.Status == TaskFailed
}
