package driving

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// Receipt acknowledges acceptance of an event for asynchronous processing.
type Receipt struct {
	// EventID identifies the accepted event.
	EventID uuid.UUID `json:"event_id"`

	// TaskID identifies the task backing the event.
	TaskID uuid.UUID `json:"task_id"`

	// Status is the current status of the backing task.
	Status domain.TaskStatus `json:"status"`

	// Duplicate is true when the event id was already accepted and the
	// original receipt is returned instead of enqueueing new work.
	Duplicate bool `json:"duplicate"`

	// AcceptedAt is when the event was first accepted.
	AcceptedAt time.Time `json:"accepted_at"`
}

// EventDispatcher is the single entry point for all write operations.
// External actors submit typed events; the dispatcher validates, persists,
// and enqueues them for the worker pool.
type EventDispatcher interface {
	// Submit validates the event payload, persists the event, and enqueues
	// a task for it. Submitting an event id that was already accepted
	// returns the original receipt with Duplicate set.
	Submit(ctx context.Context, event *domain.Event) (*Receipt, error)
}

// WorkerService runs the pool that drains the task queue.
type WorkerService interface {
	// Start launches the worker pool. It returns once the workers are
	// running; processing continues until Stop is called.
	Start(ctx context.Context) error

	// Stop drains in-flight tasks and shuts the pool down.
	Stop(ctx context.Context) error
}
