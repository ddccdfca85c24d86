package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	store, err := NewConfigStore("")

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(home, ".doculens", "config.toml"), store.Path())
}

func TestConfigStore_LoadDefaultsWhenMissing(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	settings, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), settings)
}

func TestConfigStore_SaveAndLoadRoundTrip(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	want := domain.DefaultSettings()
	want.QATopK = 8
	want.ChunkSizeTokens = 256
	want.TaskTimeout = 2 * time.Minute
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)

	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No temp file is left behind by the atomic write.
	_, err = os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestConfigStore_LoadNormalisesPartialFile(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	partial := "qa_top_k = 3\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(partial), 0o600))

	settings, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, settings.QATopK)
	assert.Equal(t, domain.DefaultSettings().ChunkSizeTokens, settings.ChunkSizeTokens)
	assert.Equal(t, domain.DefaultSettings().MaxAttempts, settings.MaxAttempts)
}

func TestConfigStore_LoadRejectsMalformedTOML(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not toml"), 0o600))

	_, err = store.Load(context.Background())
	assert.Error(t, err)
}
