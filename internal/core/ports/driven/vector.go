package driven

import (
	"context"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// VectorQuery describes a nearest-neighbour search over stored chunks.
type VectorQuery struct {
	// Embedding is the query vector, produced by the same embedding
	// provider used at ingestion time.
	Embedding []float32

	// Model restricts matches to chunks embedded with this model.
	// Mixing embedding spaces silently degrades relevance, so the
	// restriction is enforced in the store, not left to callers.
	Model string

	// Filters restricts matches by document metadata.
	Filters domain.SearchFilters

	// Limit bounds the result count.
	Limit int
}

// ChunkMatch is one nearest-neighbour hit. Distance is cosine distance;
// lower is more relevant.
type ChunkMatch struct {
	Chunk    domain.Chunk
	Distance float64
}

// VectorSearcher runs similarity queries against the chunk store. Failed
// chunks and chunks of deleted documents are never returned.
type VectorSearcher interface {
	// SimilaritySearch returns up to Limit matches ordered by ascending
	// distance, ties broken by chunk recency. The second return reports
	// whether more matches existed beyond the limit.
	SimilaritySearch(ctx context.Context, q VectorQuery) ([]ChunkMatch, bool, error)
}
