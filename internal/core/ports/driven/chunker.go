package driven

import (
	"context"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// Chunker splits extracted text into overlap-aware chunks. Chunk indices
// are assigned here, at chunking time, independent of embedding completion
// order.
type Chunker interface {
	// Chunk splits text into chunks for the given document using the
	// token budget and overlap from the settings snapshot. Returned
	// chunks have contiguous zero-based indices and token counts set;
	// embeddings are filled in later by the pipeline.
	Chunk(ctx context.Context, doc *domain.Document, text string, settings domain.Settings) ([]domain.Chunk, error)
}
