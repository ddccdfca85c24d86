package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

func seedUploadedFile(t *testing.T, env *testEnv, content string) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:         uuid.New(),
		Filename:   "notes.txt",
		DocType:    "txt",
		UploadedAt: time.Now().UTC(),
		Status:     domain.StatusProcessing,
		SourcePath: writeUploadFile(t, "notes.txt", content),
	}
	require.NoError(t, env.docs.SaveDocument(context.Background(), doc))
	return doc
}

func TestIngestor_ProcessEmbedsAllChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := seedUploadedFile(t, env, "First paragraph.\n\nSecond paragraph.\n\nThird paragraph.")

	ready, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, ready.Status)
	assert.Equal(t, 3, ready.ChunkCount)
	assert.Equal(t, 3, ready.EmbeddedChunkCount)
	assert.Zero(t, ready.FailedChunkCount)
	assert.Empty(t, ready.ProcessingError)

	// Indices are contiguous and zero-based, embeddings and model recorded.
	chunks, err := env.docs.GetChunks(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Embedding)
		assert.Equal(t, env.embedder.model, chunk.EmbeddingModel)
		assert.False(t, chunk.Failed)
	}
}

func TestIngestor_ProcessMarksExhaustedChunksFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := seedUploadedFile(t, env, "Good paragraph.\n\nBad paragraph.")

	// The batch call keeps failing because one text is unembeddable; the
	// per-chunk fallback then settles each chunk on its own.
	env.embedder.failTexts["Bad paragraph."] = true

	ready, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, ready.Status)
	assert.Equal(t, 2, ready.ChunkCount)
	assert.Equal(t, 1, ready.EmbeddedChunkCount)
	assert.Equal(t, 1, ready.FailedChunkCount)

	chunks, err := env.docs.GetChunks(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.False(t, chunks[0].Failed)
	assert.True(t, chunks[1].Failed)
	assert.Empty(t, chunks[1].Embedding)
}

func TestIngestor_ProcessAnnotatesExtractionFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := &domain.Document{
		ID:         uuid.New(),
		Filename:   "gone.txt",
		DocType:    "txt",
		Status:     domain.StatusProcessing,
		SourcePath: "/nonexistent/gone.txt",
	}
	require.NoError(t, env.docs.SaveDocument(ctx, doc))

	_, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())
	require.Error(t, err)

	// The document stays in processing with the error annotated.
	got, err := env.docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.NotEmpty(t, got.ProcessingError)
}

func TestIngestor_ProcessRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := &domain.Document{
		ID:         uuid.New(),
		Filename:   "image.png",
		Status:     domain.StatusProcessing,
		SourcePath: writeUploadFile(t, "image.png", "binary"),
	}
	require.NoError(t, env.docs.SaveDocument(ctx, doc))

	_, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestIngestor_ProcessSkipsNonProcessingDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := seedUploadedFile(t, env, "Paragraph.")
	doc.Status = domain.StatusArchived
	require.NoError(t, env.docs.SaveDocument(ctx, doc))

	got, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, got.Status)

	chunks, err := env.docs.GetChunks(ctx, doc.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestIngestor_ReprocessReplacesPriorChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := seedUploadedFile(t, env, "Fresh first.\n\nFresh second.")

	// Stale chunk from a previous run.
	env.seedChunk(t, doc, 0, "stale content", []float32{0, 0, 1})
	doc.ChunkCount = 1
	require.NoError(t, env.docs.SaveDocument(ctx, doc))

	ready, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, 2, ready.ChunkCount)

	chunks, err := env.docs.GetChunks(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Fresh first.", chunks[0].Content)
	assert.Equal(t, "Fresh second.", chunks[1].Content)
}

func TestIngestor_ProcessFailsWithoutEmbedder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := seedUploadedFile(t, env, "Paragraph.")
	env.ingestor.embedder = nil

	_, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIngestor_EmptyDocumentBecomesReadyWithZeroChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := seedUploadedFile(t, env, "   \n  ")

	ready, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, ready.Status)
	assert.Zero(t, ready.ChunkCount)
}

func TestIngestor_BatchErrorFallsBackPerChunk(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := seedUploadedFile(t, env, "Alpha.\n\nBeta.")
	env.embedder.batchErr = errors.New("batch endpoint down")

	ready, err := env.ingestor.Process(ctx, doc.ID, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, 2, ready.EmbeddedChunkCount)
	assert.Zero(t, ready.FailedChunkCount)
}
