package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure EventStore implements the interface.
var _ driven.EventStore = (*EventStore)(nil)

// EventStore is an in-memory implementation of driven.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID]domain.Event
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{events: make(map[uuid.UUID]domain.Event)}
}

// Save inserts a new event, rejecting duplicate ids.
func (s *EventStore) Save(_ context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.events[event.ID] = *event
	return nil
}

// Get retrieves an event by ID.
func (s *EventStore) Get(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &event, nil
}

// ListRecent returns events newest-first.
func (s *EventStore) ListRecent(_ context.Context, limit int) ([]domain.Event, error) {
	return s.list(domain.EventType(""), limit), nil
}

// ListByType returns events of one type newest-first.
func (s *EventStore) ListByType(_ context.Context, t domain.EventType, limit int) ([]domain.Event, error) {
	return s.list(t, limit), nil
}

func (s *EventStore) list(t domain.EventType, limit int) []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, 0, len(s.events))
	for _, event := range s.events {
		if t != "" && event.Type != t {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
