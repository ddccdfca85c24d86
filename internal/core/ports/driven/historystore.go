package driven

import (
	"context"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// SummaryStore persists document summaries. Summaries are latest-wins:
// saving replaces any prior summary for the document.
type SummaryStore interface {
	// Save stores or replaces the summary for a document.
	Save(ctx context.Context, summary *domain.Summary) error

	// Get retrieves the current summary for a document.
	Get(ctx context.Context, documentID uuid.UUID) (*domain.Summary, error)

	// Delete removes the summary for a document.
	Delete(ctx context.Context, documentID uuid.UUID) error
}

// ClassificationStore is the append-only audit log of classification
// results and manual overrides.
type ClassificationStore interface {
	// Append records a new classification result. Records are immutable.
	Append(ctx context.Context, record *domain.ClassificationRecord) error

	// ListByDocument returns a document's history newest-first, bounded
	// by limit (0 means all).
	ListByDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]domain.ClassificationRecord, error)

	// Latest returns the current label record for a document.
	Latest(ctx context.Context, documentID uuid.UUID) (*domain.ClassificationRecord, error)
}

// LabelStore persists the label taxonomy rows.
type LabelStore interface {
	// Save stores or updates a taxonomy node.
	Save(ctx context.Context, label *domain.Label) error

	// Delete removes taxonomy nodes by id.
	Delete(ctx context.Context, ids []uuid.UUID) error

	// List returns all taxonomy rows.
	List(ctx context.Context) ([]domain.Label, error)
}
