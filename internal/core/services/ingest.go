package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

const (
	embedAttempts    = 3
	embedBackoffBase = 500 * time.Millisecond
)

// Ingestor runs the chunking and embedding pipeline: extract text, split
// into chunks, embed in batches, persist per chunk. It holds the document's
// advisory lock for the whole run so lifecycle transitions cannot race an
// in-flight embedding write.
type Ingestor struct {
	docs       driven.DocumentStore
	extractors driven.ExtractorRegistry
	chunker    driven.Chunker
	embedder   driven.EmbeddingService
	lifecycle  *Lifecycle
	locks      *documentLocks
	limiter    *rate.Limiter
	backoff    time.Duration
	obs        driven.PipelineObserver
	now        func() time.Time
	log        zerolog.Logger
}

// NewIngestor creates the ingestion pipeline. The limiter bounds embedding
// request rate across all documents; pass nil to disable throttling.
func NewIngestor(
	docs driven.DocumentStore,
	extractors driven.ExtractorRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	lifecycle *Lifecycle,
	limiter *rate.Limiter,
	log zerolog.Logger,
) *Ingestor {
	return &Ingestor{
		docs:       docs,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		lifecycle:  lifecycle,
		locks:      lifecycle.locks,
		limiter:    limiter,
		backoff:    embedBackoffBase,
		obs:        driven.NopObserver{},
		now:        time.Now,
		log:        log.With().Str("component", "ingest").Logger(),
	}
}

// SetObserver installs the instrumentation sink.
func (in *Ingestor) SetObserver(obs driven.PipelineObserver) {
	if obs != nil {
		in.obs = obs
	}
}

// Process runs the full pipeline for a document. Partial success is a
// first-class state: counts always reflect actually-persisted chunks, and a
// chunk whose embedding retries were exhausted is marked failed without
// blocking the rest of the document.
func (in *Ingestor) Process(ctx context.Context, documentID uuid.UUID, settings domain.Settings) (*domain.Document, error) {
	unlock := in.locks.Lock(documentID)
	defer unlock()

	doc, err := in.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusProcessing {
		in.log.Warn().
			Stringer("document_id", documentID).
			Str("status", string(doc.Status)).
			Msg("skipping pipeline, document no longer processing")
		return doc, nil
	}
	if in.embedder == nil {
		return nil, in.annotate(ctx, doc, domain.ErrEmbeddingUnavailable)
	}

	extractor, err := in.extractors.Resolve(doc.DocType, doc.Filename)
	if err != nil {
		return nil, in.annotate(ctx, doc, err)
	}

	text, err := extractor.Extract(ctx, doc.SourcePath)
	if err != nil {
		return nil, in.annotate(ctx, doc, fmt.Errorf("extract %s: %w", extractor.Name(), err))
	}

	// Reprocessing after a vector purge starts from a clean slate.
	if doc.VectorsPurged || doc.ChunkCount > 0 {
		if err := in.docs.DeleteChunks(ctx, documentID); err != nil {
			return nil, fmt.Errorf("clear prior chunks: %w", err)
		}
		doc.VectorsPurged = false
	}

	chunks, err := in.chunker.Chunk(ctx, doc, text, settings)
	if err != nil {
		return nil, in.annotate(ctx, doc, fmt.Errorf("chunk text: %w", err))
	}

	doc.ChunkCount = len(chunks)
	doc.EmbeddedChunkCount = 0
	doc.FailedChunkCount = 0
	doc.ProcessingError = ""
	if err := in.docs.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("record chunk count: %w", err)
	}

	batchSize := settings.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := in.embedBatch(ctx, doc, chunks[start:end]); err != nil {
			return nil, err
		}
		if err := in.docs.SaveDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("update embed progress: %w", err)
		}
	}

	ready, err := in.lifecycle.MarkReady(ctx, documentID)
	if err != nil {
		return nil, err
	}
	in.obs.DocumentReady()
	in.log.Info().
		Stringer("document_id", documentID).
		Int("chunks", ready.ChunkCount).
		Int("embedded", ready.EmbeddedChunkCount).
		Int("failed", ready.FailedChunkCount).
		Msg("document ready")
	return ready, nil
}

// embedBatch embeds a batch of chunks, falling back to per-chunk embedding
// with bounded retries when the batch call keeps failing.
func (in *Ingestor) embedBatch(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	embeddings, err := in.retryBatch(ctx, texts)
	if err == nil && len(embeddings) == len(chunks) {
		for i := range chunks {
			if err := in.persistChunk(ctx, doc, &chunks[i], embeddings[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Batch failed; retry chunk by chunk so one bad input cannot sink the
	// whole batch.
	for i := range chunks {
		embedding, err := in.retryOne(ctx, chunks[i].Content)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			in.log.Warn().
				Stringer("document_id", doc.ID).
				Int("chunk_index", chunks[i].Index).
				Err(err).
				Msg("chunk embedding failed after retries")
			if err := in.persistFailedChunk(ctx, doc, &chunks[i]); err != nil {
				return err
			}
			continue
		}
		if err := in.persistChunk(ctx, doc, &chunks[i], embedding); err != nil {
			return err
		}
	}
	return nil
}

func (in *Ingestor) retryBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < embedAttempts; attempt++ {
		if err := in.wait(ctx, attempt); err != nil {
			return nil, err
		}
		embeddings, err := in.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrProvider, lastErr)
}

func (in *Ingestor) retryOne(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < embedAttempts; attempt++ {
		if err := in.wait(ctx, attempt); err != nil {
			return nil, err
		}
		embedding, err := in.embedder.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrProvider, lastErr)
}

// wait applies rate limiting plus exponential backoff before a retry.
func (in *Ingestor) wait(ctx context.Context, attempt int) error {
	if in.limiter != nil {
		if err := in.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if attempt == 0 {
		return nil
	}
	delay := in.backoff << (attempt - 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (in *Ingestor) persistChunk(ctx context.Context, doc *domain.Document, chunk *domain.Chunk, embedding []float32) error {
	chunk.Embedding = embedding
	chunk.EmbeddingModel = in.embedder.ModelName()
	chunk.CreatedAt = in.now()
	if err := in.docs.SaveChunk(ctx, chunk); err != nil {
		return fmt.Errorf("persist chunk %d: %w", chunk.Index, err)
	}
	doc.EmbeddedChunkCount++
	in.obs.ChunkEmbedded()
	return nil
}

func (in *Ingestor) persistFailedChunk(ctx context.Context, doc *domain.Document, chunk *domain.Chunk) error {
	chunk.Failed = true
	chunk.CreatedAt = in.now()
	if err := in.docs.SaveChunk(ctx, chunk); err != nil {
		return fmt.Errorf("persist failed chunk %d: %w", chunk.Index, err)
	}
	doc.FailedChunkCount++
	in.obs.ChunkFailed()
	return nil
}

// annotate records a pipeline failure on the document. The document stays
// in processing with the error visible rather than advancing.
func (in *Ingestor) annotate(ctx context.Context, doc *domain.Document, cause error) error {
	doc.ProcessingError = cause.Error()
	if err := in.docs.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("record processing error: %w", err)
	}
	return cause
}
