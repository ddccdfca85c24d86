package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

// Ensure LabelManager implements the interface.
var _ driving.LabelService = (*LabelManager)(nil)

// LabelManager maintains the two-level label taxonomy backing
// classification. Mutations rebuild the arena from the persisted rows so
// structural rules (leaf parents exist, no duplicate ids) are enforced in
// one place.
type LabelManager struct {
	labels driven.LabelStore
	mu     sync.Mutex
	now    func() time.Time
	log    zerolog.Logger
}

// NewLabelManager creates the taxonomy manager.
func NewLabelManager(labels driven.LabelStore, log zerolog.Logger) *LabelManager {
	return &LabelManager{
		labels: labels,
		now:    time.Now,
		log:    log.With().Str("component", "labels").Logger(),
	}
}

// AddDomain creates a top-level domain node.
func (m *LabelManager) AddDomain(ctx context.Context, name, description string) (*domain.Label, error) {
	if name == "" {
		return nil, domain.NewValidationError(map[string]string{"name": "required"})
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	taxonomy, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	node := domain.Label{
		ID:        uuid.New(),
		Name:      name,
		Kind:      domain.KindDomain,
		CreatedAt: m.now(),
	}
	if err := taxonomy.AddDomain(node.ID, name, description); err != nil {
		return nil, err
	}
	node.Description = description
	if err := m.labels.Save(ctx, &node); err != nil {
		return nil, fmt.Errorf("save domain: %w", err)
	}
	m.log.Info().Str("name", name).Msg("taxonomy domain added")
	return &node, nil
}

// AddLabel creates a leaf label under an existing domain.
func (m *LabelManager) AddLabel(ctx context.Context, name, description string, parentID uuid.UUID) (*domain.Label, error) {
	if name == "" {
		return nil, domain.NewValidationError(map[string]string{"name": "required"})
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	taxonomy, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	node := domain.Label{
		ID:          uuid.New(),
		Name:        name,
		Kind:        domain.KindLabel,
		Description: description,
		ParentID:    parentID,
		CreatedAt:   m.now(),
	}
	if err := taxonomy.AddLabel(node.ID, parentID, name, description); err != nil {
		return nil, err
	}
	if err := m.labels.Save(ctx, &node); err != nil {
		return nil, fmt.Errorf("save label: %w", err)
	}
	m.log.Info().Str("name", name).Stringer("parent_id", parentID).Msg("taxonomy label added")
	return &node, nil
}

// Delete removes a node. Deleting a domain with children requires force,
// which cascades to the children.
func (m *LabelManager) Delete(ctx context.Context, id uuid.UUID, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	taxonomy, err := m.load(ctx)
	if err != nil {
		return err
	}
	removed, err := taxonomy.Delete(id, force)
	if err != nil {
		return err
	}
	if err := m.labels.Delete(ctx, removed); err != nil {
		return fmt.Errorf("delete labels: %w", err)
	}
	m.log.Info().Stringer("label_id", id).Int("removed", len(removed)).Msg("taxonomy nodes deleted")
	return nil
}

// Taxonomy returns the current taxonomy.
func (m *LabelManager) Taxonomy(ctx context.Context) (*domain.Taxonomy, error) {
	return m.load(ctx)
}

// CandidateLabels returns the sorted leaf label names.
func (m *LabelManager) CandidateLabels(ctx context.Context) ([]string, error) {
	taxonomy, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return taxonomy.CandidateLabels(), nil
}

func (m *LabelManager) load(ctx context.Context) (*domain.Taxonomy, error) {
	rows, err := m.labels.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy rows: %w", err)
	}
	taxonomy, err := domain.NewTaxonomy(rows)
	if err != nil {
		return nil, fmt.Errorf("build taxonomy: %w", err)
	}
	return taxonomy, nil
}
