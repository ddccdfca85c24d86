package driven

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// TaskQueue is the durable queue workers consume. The dispatcher and the
// workers communicate only through this queue and the shared stores;
// there are no direct calls between them.
type TaskQueue interface {
	// Enqueue persists a pending task. Enqueueing an id that already exists
	// is a no-op so retried submissions never double-schedule work.
	Enqueue(ctx context.Context, task *domain.Task) error

	// Claim atomically moves the oldest due pending task to running and
	// returns it. Returns domain.ErrNotFound when nothing is due.
	Claim(ctx context.Context) (*domain.Task, error)

	// Complete marks a running task succeeded and records its result.
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error

	// Requeue returns a running task to pending with a backoff delay,
	// recording the transient error.
	Requeue(ctx context.Context, id uuid.UUID, delay time.Duration, errMsg string) error

	// Fail marks a running task failed with a final error message.
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error

	// Get retrieves a task by id.
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByEvent retrieves the task associated with an event.
	GetByEvent(ctx context.Context, eventID uuid.UUID) (*domain.Task, error)

	// CountByStatus returns the number of tasks in each status.
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int, error)
}
