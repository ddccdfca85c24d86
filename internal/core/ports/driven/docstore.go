package driven

import (
	"context"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// DocumentStore persists documents and chunks.
type DocumentStore interface {
	// SaveDocument stores or updates a document record.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by id.
	GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// ListDocuments returns documents newest-first, bounded by limit with
	// offset for pagination.
	ListDocuments(ctx context.Context, limit, offset int) ([]domain.Document, error)

	// SaveChunk persists one chunk together with its embedding atomically.
	// A partially embedded document is a valid, visible state.
	SaveChunk(ctx context.Context, chunk *domain.Chunk) error

	// GetChunk retrieves a chunk by id.
	GetChunk(ctx context.Context, id uuid.UUID) (*domain.Chunk, error)

	// GetChunks returns a document's chunks ordered by chunk index,
	// bounded by limit (0 means all).
	GetChunks(ctx context.Context, documentID uuid.UUID, limit int) ([]domain.Chunk, error)

	// DeleteChunks hard-removes all chunks and embeddings for a document.
	DeleteChunks(ctx context.Context, documentID uuid.UUID) error

	// Stats returns corpus-wide document and chunk counts.
	Stats(ctx context.Context) (*CorpusStats, error)
}

// CorpusStats aggregates document and chunk counts across the corpus.
type CorpusStats struct {
	TotalDocuments   int
	DocumentsByState map[domain.DocumentStatus]int
	TotalChunks      int
	EmbeddedChunks   int
	FailedChunks     int
}
