package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// DocumentStore implements driven.DocumentStore and driven.VectorSearcher.
type DocumentStore struct {
	store *Store
}

var (
	_ driven.DocumentStore  = (*DocumentStore)(nil)
	_ driven.VectorSearcher = (*DocumentStore)(nil)
)

const documentColumns = `id, filename, doc_type, uploaded_at, chunk_count,
	embedded_chunk_count, failed_chunk_count, metadata, status, processing_error,
	source_path, vectors_purged, due_at, archived_at, deleted_at, restored_at`

// SaveDocument stores or updates a document record.
func (s *DocumentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, doc_type, uploaded_at, chunk_count,
			embedded_chunk_count, failed_chunk_count, metadata, status, processing_error,
			source_path, vectors_purged, due_at, archived_at, deleted_at, restored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			doc_type = excluded.doc_type,
			chunk_count = excluded.chunk_count,
			embedded_chunk_count = excluded.embedded_chunk_count,
			failed_chunk_count = excluded.failed_chunk_count,
			metadata = excluded.metadata,
			status = excluded.status,
			processing_error = excluded.processing_error,
			source_path = excluded.source_path,
			vectors_purged = excluded.vectors_purged,
			due_at = excluded.due_at,
			archived_at = excluded.archived_at,
			deleted_at = excluded.deleted_at,
			restored_at = excluded.restored_at
	`, doc.ID.String(), doc.Filename, doc.DocType, doc.UploadedAt.UTC(),
		doc.ChunkCount, doc.EmbeddedChunkCount, doc.FailedChunkCount,
		string(metadataJSON), string(doc.Status), doc.ProcessingError,
		doc.SourcePath, doc.VectorsPurged,
		nullTime(doc.DueAt), nullTime(doc.ArchivedAt), nullTime(doc.DeletedAt), nullTime(doc.RestoredAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id.String())
	return scanDocument(row)
}

// ListDocuments returns documents newest-first.
func (s *DocumentStore) ListDocuments(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 ORDER BY uploaded_at DESC, id LIMIT ? OFFSET ?`,
		limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// SaveChunk persists one chunk together with its embedding atomically.
func (s *DocumentStore) SaveChunk(ctx context.Context, chunk *domain.Chunk) error {
	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, token_count,
			embedding, embedding_model, failed, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			token_count = excluded.token_count,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model,
			failed = excluded.failed,
			metadata = excluded.metadata
	`, chunk.ID.String(), chunk.DocumentID.String(), chunk.Index, chunk.Content,
		chunk.TokenCount, float32SliceToBytes(chunk.Embedding), chunk.EmbeddingModel,
		chunk.Failed, string(metadataJSON), chunk.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *DocumentStore) GetChunk(ctx context.Context, id uuid.UUID) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, chunk_index, content, token_count,
			embedding, embedding_model, failed, metadata, created_at
		FROM chunks WHERE id = ?
	`, id.String())
	return scanChunk(row)
}

// GetChunks returns a document's chunks ordered by chunk index.
func (s *DocumentStore) GetChunks(ctx context.Context, documentID uuid.UUID, limit int) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, token_count,
			embedding, embedding_model, failed, metadata, created_at
		FROM chunks WHERE document_id = ?
		ORDER BY chunk_index ASC LIMIT ?
	`, documentID.String(), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

// DeleteChunks hard-removes all chunks for a document.
func (s *DocumentStore) DeleteChunks(ctx context.Context, documentID uuid.UUID) error {
	if _, err := s.store.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ?`, documentID.String()); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// Stats returns corpus-wide document and chunk counts.
func (s *DocumentStore) Stats(ctx context.Context) (*driven.CorpusStats, error) {
	stats := &driven.CorpusStats{DocumentsByState: make(map[domain.DocumentStatus]int)}

	rows, err := s.store.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning document count: %w", err)
		}
		stats.DocumentsByState[domain.DocumentStatus(status)] = count
		stats.TotalDocuments += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	row := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN failed = 0 AND embedding IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(failed), 0)
		FROM chunks
	`)
	if err := row.Scan(&stats.TotalChunks, &stats.EmbeddedChunks, &stats.FailedChunks); err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	return stats, nil
}

// SimilaritySearch runs a brute-force cosine scan over embedded chunks,
// excluding failed chunks and chunks of deleted documents.
func (s *DocumentStore) SimilaritySearch(ctx context.Context, q driven.VectorQuery) ([]driven.ChunkMatch, bool, error) {
	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.token_count,
			c.embedding, c.embedding_model, c.failed, c.metadata, c.created_at
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.failed = 0 AND c.embedding IS NOT NULL AND d.status != ?`
	args := []any{string(domain.StatusDeleted)}

	if q.Model != "" {
		query += ` AND c.embedding_model = ?`
		args = append(args, q.Model)
	}
	if q.Filters.DocumentID != uuid.Nil {
		query += ` AND c.document_id = ?`
		args = append(args, q.Filters.DocumentID.String())
	}
	if q.Filters.DocType != "" {
		query += ` AND d.doc_type = ?`
		args = append(args, q.Filters.DocType)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("scanning chunks: %w", err)
	}
	defer rows.Close()

	var matches []driven.ChunkMatch
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, false, err
		}
		matches = append(matches, driven.ChunkMatch{
			Chunk:    *chunk,
			Distance: cosineDistance(q.Embedding, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
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

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var id, metadataJSON, status string
	var dueAt, archivedAt, deletedAt, restoredAt sql.NullTime
	if err := row.Scan(&id, &doc.Filename, &doc.DocType, &doc.UploadedAt,
		&doc.ChunkCount, &doc.EmbeddedChunkCount, &doc.FailedChunkCount,
		&metadataJSON, &status, &doc.ProcessingError,
		&doc.SourcePath, &doc.VectorsPurged,
		&dueAt, &archivedAt, &deletedAt, &restoredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	var err error
	if doc.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing document id: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	if metadataJSON != "" && metadataJSON != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	if dueAt.Valid {
		doc.DueAt = &dueAt.Time
	}
	if archivedAt.Valid {
		doc.ArchivedAt = &archivedAt.Time
	}
	if deletedAt.Valid {
		doc.DeletedAt = &deletedAt.Time
	}
	if restoredAt.Valid {
		doc.RestoredAt = &restoredAt.Time
	}
	return &doc, nil
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var id, docID, metadataJSON string
	var embeddingBlob []byte
	if err := row.Scan(&id, &docID, &chunk.Index, &chunk.Content, &chunk.TokenCount,
		&embeddingBlob, &chunk.EmbeddingModel, &chunk.Failed, &metadataJSON, &chunk.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	var err error
	if chunk.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing chunk id: %w", err)
	}
	if chunk.DocumentID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parsing document id: %w", err)
	}
	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	if metadataJSON != "" && metadataJSON != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	return &chunk, nil
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

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
