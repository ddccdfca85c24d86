package driven

import (
	"context"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// EventStore persists immutable event records. Save is the idempotency
// anchor for the dispatcher: inserting an id that already exists returns
// domain.ErrAlreadyExists, never a duplicate row.
type EventStore interface {
	// Save inserts a new event. Events are never updated.
	Save(ctx context.Context, event *domain.Event) error

	// Get retrieves an event by id.
	Get(ctx context.Context, id uuid.UUID) (*domain.Event, error)

	// ListRecent returns events newest-first, bounded by limit.
	ListRecent(ctx context.Context, limit int) ([]domain.Event, error)

	// ListByType returns events of one type newest-first, bounded by limit.
	ListByType(ctx context.Context, t domain.EventType, limit int) ([]domain.Event, error)
}
