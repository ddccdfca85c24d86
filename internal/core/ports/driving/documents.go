package driving

import (
	"context"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// DocumentService provides synchronous read access to documents and their
// derived artefacts.
type DocumentService interface {
	// Get retrieves a document by id.
	Get(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// List returns documents ordered by upload time descending.
	List(ctx context.Context, limit, offset int) ([]domain.Document, error)

	// Chunks returns a document's chunks ordered by chunk index. Content
	// is truncated to the configured preview length when preview is true.
	Chunks(ctx context.Context, documentID uuid.UUID, limit int, preview bool) ([]domain.Chunk, error)

	// Summary returns the current summary for a document.
	Summary(ctx context.Context, documentID uuid.UUID) (*domain.Summary, error)
}

// HistoryService exposes the audit trail of processed events and their
// results.
type HistoryService interface {
	// Events returns recent events newest-first, optionally filtered by
	// event type.
	Events(ctx context.Context, eventType domain.EventType, limit int) ([]domain.Event, error)

	// Event returns a single event together with its backing task.
	Event(ctx context.Context, eventID uuid.UUID) (*domain.Event, *domain.Task, error)

	// QAAnswers returns recent question-answering results newest-first.
	QAAnswers(ctx context.Context, limit int) ([]domain.QAAnswer, error)

	// Searches returns recent search result sets newest-first.
	Searches(ctx context.Context, limit int) ([]domain.SearchResultSet, error)

	// Classifications returns a document's classification history
	// newest-first, including manual overrides.
	Classifications(ctx context.Context, documentID uuid.UUID, limit int) ([]domain.ClassificationRecord, error)
}
