package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// configStore implements driven.ConfigStore on the single settings row.
type configStore struct {
	store *Store
}

var _ driven.ConfigStore = (*configStore)(nil)

// Load reads the stored settings, falling back to defaults when no row
// has been saved yet.
func (s *configStore) Load(ctx context.Context) (domain.Settings, error) {
	var raw string
	err := s.store.db.QueryRowContext(ctx,
		`SELECT config FROM settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	var settings domain.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("unmarshalling settings: %w", err)
	}
	return settings.Normalised(), nil
}

// Save persists the settings.
func (s *configStore) Save(ctx context.Context, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO settings (id, config, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config = excluded.config,
			updated_at = excluded.updated_at
	`, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
