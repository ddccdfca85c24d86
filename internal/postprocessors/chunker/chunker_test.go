package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

func newChunker(t *testing.T) *TokenChunker {
	t.Helper()
	c, err := New()
	if err != nil {
		t.Skipf("tokenizer unavailable: %v", err)
	}
	return c
}

func testSettings(size, overlap int) domain.Settings {
	s := domain.DefaultSettings()
	s.ChunkSizeTokens = size
	s.ChunkOverlap = overlap
	return s
}

func TestTokenChunker_IndicesContiguousZeroBased(t *testing.T) {
	c := newChunker(t)
	doc := &domain.Document{ID: uuid.New()}

	text := strings.Repeat("This is a simple sentence about nothing in particular. ", 40)
	chunks, err := c.Chunk(context.Background(), doc, text, testSettings(64, 8))

	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, doc.ID, chunk.DocumentID)
		assert.NotEmpty(t, chunk.Content)
		assert.Positive(t, chunk.TokenCount)
	}
}

func TestTokenChunker_RespectsTokenBudget(t *testing.T) {
	c := newChunker(t)
	doc := &domain.Document{ID: uuid.New()}

	text := strings.Repeat("Short sentence here. ", 100)
	size := 32
	chunks, err := c.Chunk(context.Background(), doc, text, testSettings(size, 4))

	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, size)
	}
}

func TestTokenChunker_OverlapCarriesTrailingText(t *testing.T) {
	c := newChunker(t)
	doc := &domain.Document{ID: uuid.New()}

	text := strings.Repeat("Alpha beta gamma delta epsilon zeta. ", 30)
	chunks, err := c.Chunk(context.Background(), doc, text, testSettings(48, 12))

	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prevTail := lastSentence(chunks[i-1].Content)
		assert.True(t, strings.HasPrefix(chunks[i].Content, prevTail),
			"chunk %d should start with the previous chunk's tail", i)
	}
}

func TestTokenChunker_EmptyTextYieldsNoChunks(t *testing.T) {
	c := newChunker(t)
	doc := &domain.Document{ID: uuid.New()}

	chunks, err := c.Chunk(context.Background(), doc, "   \n\t  ", testSettings(64, 8))

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTokenChunker_OversizedSentenceIsHardSplit(t *testing.T) {
	c := newChunker(t)
	doc := &domain.Document{ID: uuid.New()}

	// One sentence far beyond the budget, with no punctuation to split on.
	text := strings.Repeat("wordsoup ", 300) + "."
	size := 32
	chunks, err := c.Chunk(context.Background(), doc, text, testSettings(size, 0))

	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, size)
	}
}

func TestTokenChunker_ShortTextSingleChunk(t *testing.T) {
	c := newChunker(t)
	doc := &domain.Document{ID: uuid.New()}

	chunks, err := c.Chunk(context.Background(), doc, "Just one short sentence.", testSettings(512, 64))

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Just one short sentence.", chunks[0].Content)
}

func lastSentence(content string) string {
	idx := strings.LastIndex(strings.TrimRight(content, ". "), ".")
	if idx < 0 {
		return content
	}
	return strings.TrimSpace(content[idx+1:])
}
