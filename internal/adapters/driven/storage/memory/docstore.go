package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore  = (*DocumentStore)(nil)
	_ driven.VectorSearcher = (*DocumentStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.DocumentStore and
// driven.VectorSearcher. Similarity search is a brute-force cosine scan,
// which is fine at in-memory scale.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]domain.Document
	chunks    map[uuid.UUID]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[uuid.UUID]domain.Document),
		chunks:    make(map[uuid.UUID]domain.Chunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns documents newest-first.
func (s *DocumentStore) ListDocuments(_ context.Context, limit, offset int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.documents))
	for id := range s.documents {
		out = append(out, s.documents[id])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveChunk stores or updates a chunk with its embedding.
func (s *DocumentStore) SaveChunk(_ context.Context, chunk *domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.ID] = *chunk
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id uuid.UUID) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// GetChunks returns a document's chunks ordered by chunk index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID uuid.UUID, limit int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Chunk
	for id := range s.chunks {
		if s.chunks[id].DocumentID == documentID {
			out = append(out, s.chunks[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteChunks removes all chunks for a document.
func (s *DocumentStore) DeleteChunks(_ context.Context, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.chunks {
		if s.chunks[id].DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	return nil
}

// Stats returns corpus-wide document and chunk counts.
func (s *DocumentStore) Stats(_ context.Context) (*driven.CorpusStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &driven.CorpusStats{
		TotalDocuments:   len(s.documents),
		DocumentsByState: make(map[domain.DocumentStatus]int),
	}
	for _, doc := range s.documents {
		stats.DocumentsByState[doc.Status]++
	}
	for _, chunk := range s.chunks {
		stats.TotalChunks++
		switch {
		case chunk.Failed:
			stats.FailedChunks++
		case len(chunk.Embedding) > 0:
			stats.EmbeddedChunks++
		}
	}
	return stats, nil
}

// SimilaritySearch runs a brute-force cosine scan over stored embeddings.
func (s *DocumentStore) SimilaritySearch(_ context.Context, q driven.VectorQuery) ([]driven.ChunkMatch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []driven.ChunkMatch
	for id := range s.chunks {
		chunk := s.chunks[id]
		if chunk.Failed || len(chunk.Embedding) == 0 {
			continue
		}
		if q.Model != "" && chunk.EmbeddingModel != q.Model {
			continue
		}
		if q.Filters.DocumentID != uuid.Nil && chunk.DocumentID != q.Filters.DocumentID {
			continue
		}
		doc, ok := s.documents[chunk.DocumentID]
		if !ok || doc.Status == domain.StatusDeleted {
			continue
		}
		if q.Filters.DocType != "" && doc.DocType != q.Filters.DocType {
			continue
		}
		matches = append(matches, driven.ChunkMatch{
			Chunk:    chunk,
			Distance: cosineDistance(q.Embedding, chunk.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Chunk.CreatedAt.After(matches[j].Chunk.CreatedAt)
	})

	truncated := false
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
		truncated = true
	}
	return matches, truncated, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
