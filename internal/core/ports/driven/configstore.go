package driven

import (
	"context"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// ConfigStore loads and persists runtime settings.
type ConfigStore interface {
	// Load reads the current settings, falling back to defaults when no
	// configuration exists yet.
	Load(ctx context.Context) (domain.Settings, error)

	// Save persists the settings.
	Save(ctx context.Context, settings domain.Settings) error
}
