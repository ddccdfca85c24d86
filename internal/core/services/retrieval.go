package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Retriever turns a natural-language query into a ranked set of chunks.
// It embeds the query with the same provider used at ingestion time and
// delegates the nearest-neighbour scan to the vector store. Read-only and
// safe for concurrent use.
type Retriever struct {
	embedder driven.EmbeddingService
	searcher driven.VectorSearcher
	docs     driven.DocumentStore
	obs      driven.PipelineObserver
	now      func() time.Time
	log      zerolog.Logger
}

// NewRetriever creates the retrieval engine.
func NewRetriever(embedder driven.EmbeddingService, searcher driven.VectorSearcher, docs driven.DocumentStore, log zerolog.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		docs:     docs,
		obs:      driven.NopObserver{},
		now:      time.Now,
		log:      log.With().Str("component", "retrieval").Logger(),
	}
}

// SetObserver installs the instrumentation sink.
func (r *Retriever) SetObserver(obs driven.PipelineObserver) {
	if obs != nil {
		r.obs = obs
	}
}

// Retrieve returns up to limit results ordered by ascending distance, plus
// whether more matches existed beyond the limit. An empty corpus yields an
// empty slice, never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, filters domain.SearchFilters, limit int) ([]domain.SearchResult, bool, error) {
	if r.embedder == nil {
		return nil, false, domain.ErrEmbeddingUnavailable
	}
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("%w: embed query: %v", domain.ErrProvider, err)
	}

	matches, truncated, err := r.searcher.SimilaritySearch(ctx, driven.VectorQuery{
		Embedding: embedding,
		Model:     r.embedder.ModelName(),
		Filters:   filters,
		Limit:     limit,
	})
	if err != nil {
		return nil, false, fmt.Errorf("similarity search: %w", err)
	}

	filenames := make(map[uuid.UUID]string)
	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		filename, ok := filenames[m.Chunk.DocumentID]
		if !ok {
			doc, err := r.docs.GetDocument(ctx, m.Chunk.DocumentID)
			if err != nil {
				// Results stay usable without a display name.
				r.log.Debug().Stringer("document_id", m.Chunk.DocumentID).Err(err).Msg("filename lookup failed")
			} else {
				filename = doc.Filename
			}
			filenames[m.Chunk.DocumentID] = filename
		}
		results = append(results, domain.SearchResult{
			ChunkID:    m.Chunk.ID,
			DocumentID: m.Chunk.DocumentID,
			ChunkIndex: m.Chunk.Index,
			Filename:   filename,
			Reference:  m.Chunk.Reference(),
			Content:    m.Chunk.Content,
			Distance:   m.Distance,
			Metadata:   m.Chunk.Metadata,
		})
	}
	return results, truncated, nil
}

// Execute runs a search_query event and records the full result set as the
// task outcome.
func (r *Retriever) Execute(ctx context.Context, eventID uuid.UUID, p *domain.SearchQueryPayload, settings domain.Settings) (*domain.SearchResultSet, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = settings.SearchResultLimit
	}
	results, truncated, err := r.Retrieve(ctx, p.Query, p.Filters, limit)
	if err != nil {
		return nil, err
	}
	r.obs.SearchExecuted()
	r.log.Debug().
		Str("query", p.Query).
		Bool("filtered", !p.Filters.Empty()).
		Int("results", len(results)).
		Msg("search executed")
	return &domain.SearchResultSet{
		EventID:          eventID,
		Query:            p.Query,
		Filters:          p.Filters,
		Limit:            limit,
		ResultCount:      len(results),
		Results:          results,
		ResultsTruncated: truncated,
		CreatedAt:        r.now(),
	}, nil
}
