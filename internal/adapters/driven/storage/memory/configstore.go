package memory

import (
	"context"
	"sync"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is an in-memory implementation of driven.ConfigStore.
type ConfigStore struct {
	mu       sync.RWMutex
	settings domain.Settings
}

// NewConfigStore creates a new in-memory config store seeded with defaults.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{settings: domain.DefaultSettings()}
}

// Load reads the current settings.
func (s *ConfigStore) Load(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// Save persists the settings.
func (s *ConfigStore) Save(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}
