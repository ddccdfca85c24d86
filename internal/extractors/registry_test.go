package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

func TestRegistry_ResolveByDocType(t *testing.T) {
	r := Default()

	e, err := r.Resolve("txt", "")
	require.NoError(t, err)
	assert.Equal(t, "plaintext", e.Name())

	e, err = r.Resolve("markdown", "")
	require.NoError(t, err)
	assert.Equal(t, "markdown", e.Name())
}

func TestRegistry_ResolveByFilenameExtension(t *testing.T) {
	r := Default()

	e, err := r.Resolve("", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "markdown", e.Name())

	e, err = r.Resolve("", "report.PDF")
	require.NoError(t, err)
	assert.Equal(t, "pdf", e.Name())
}

func TestRegistry_DocTypeWinsOverExtension(t *testing.T) {
	r := Default()

	// A declared type overrides whatever the filename suggests.
	e, err := r.Resolve("txt", "data.md")
	require.NoError(t, err)
	assert.Equal(t, "plaintext", e.Name())
}

func TestRegistry_ResolveUnsupported(t *testing.T) {
	r := Default()

	_, err := r.Resolve("", "image.png")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = r.Resolve("", "noextension")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistry_NormalisesTypeSpelling(t *testing.T) {
	r := Default()

	e, err := r.Resolve(".TXT", "")
	require.NoError(t, err)
	assert.Equal(t, "plaintext", e.Name())
}
