package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure the stores implement their interfaces.
var (
	_ driven.SummaryStore        = (*SummaryStore)(nil)
	_ driven.ClassificationStore = (*ClassificationStore)(nil)
	_ driven.LabelStore          = (*LabelStore)(nil)
)

// SummaryStore is an in-memory implementation of driven.SummaryStore.
type SummaryStore struct {
	mu        sync.RWMutex
	summaries map[uuid.UUID]domain.Summary
}

// NewSummaryStore creates a new in-memory summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{summaries: make(map[uuid.UUID]domain.Summary)}
}

// Save stores or replaces the summary for a document.
func (s *SummaryStore) Save(_ context.Context, summary *domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.DocumentID] = *summary
	return nil
}

// Get retrieves the current summary for a document.
func (s *SummaryStore) Get(_ context.Context, documentID uuid.UUID) (*domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &summary, nil
}

// Delete removes the summary for a document.
func (s *SummaryStore) Delete(_ context.Context, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.summaries, documentID)
	return nil
}

// ClassificationStore is an in-memory implementation of
// driven.ClassificationStore.
type ClassificationStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]domain.ClassificationRecord
}

// NewClassificationStore creates a new in-memory classification store.
func NewClassificationStore() *ClassificationStore {
	return &ClassificationStore{records: make(map[uuid.UUID][]domain.ClassificationRecord)}
}

// Append records a new classification result.
func (s *ClassificationStore) Append(_ context.Context, record *domain.ClassificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.DocumentID] = append(s.records[record.DocumentID], *record)
	return nil
}

// ListByDocument returns a document's history newest-first.
func (s *ClassificationStore) ListByDocument(_ context.Context, documentID uuid.UUID, limit int) ([]domain.ClassificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.records[documentID]
	out := make([]domain.ClassificationRecord, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Latest returns the current label record for a document.
func (s *ClassificationStore) Latest(ctx context.Context, documentID uuid.UUID) (*domain.ClassificationRecord, error) {
	history, err := s.ListByDocument(ctx, documentID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, domain.ErrNotFound
	}
	return &history[0], nil
}

// LabelStore is an in-memory implementation of driven.LabelStore.
type LabelStore struct {
	mu     sync.RWMutex
	labels map[uuid.UUID]domain.Label
}

// NewLabelStore creates a new in-memory label store.
func NewLabelStore() *LabelStore {
	return &LabelStore{labels: make(map[uuid.UUID]domain.Label)}
}

// Save stores or updates a taxonomy node.
func (s *LabelStore) Save(_ context.Context, label *domain.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[label.ID] = *label
	return nil
}

// Delete removes taxonomy nodes by id.
func (s *LabelStore) Delete(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.labels, id)
	}
	return nil
}

// List returns all taxonomy rows.
func (s *LabelStore) List(_ context.Context) ([]domain.Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Label, 0, len(s.labels))
	for id := range s.labels {
		out = append(out, s.labels[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == domain.KindDomain
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
