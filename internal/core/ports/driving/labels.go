package driving

import (
	"context"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// LabelService manages the label taxonomy used by classification.
type LabelService interface {
	// AddDomain creates a top-level domain node.
	AddDomain(ctx context.Context, name, description string) (*domain.Label, error)

	// AddLabel creates a leaf label under an existing domain.
	AddLabel(ctx context.Context, name, description string, parentID uuid.UUID) (*domain.Label, error)

	// Delete removes a taxonomy node. Deleting a domain that still has
	// children fails unless force is set, in which case the children are
	// removed as well.
	Delete(ctx context.Context, id uuid.UUID, force bool) error

	// Taxonomy returns the current taxonomy.
	Taxonomy(ctx context.Context) (*domain.Taxonomy, error)

	// CandidateLabels returns the leaf label names used for zero-shot
	// classification, sorted by name.
	CandidateLabels(ctx context.Context) ([]string, error)
}
