// Package pgvector provides a PostgreSQL-backed document and chunk store
// with native vector similarity search through the pgvector extension.
// It replaces the SQLite brute-force scan for deployments where the corpus
// outgrows a single embedded database.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

var (
	_ driven.DocumentStore  = (*Store)(nil)
	_ driven.VectorSearcher = (*Store)(nil)
)

// DefaultDimensions matches nomic-embed-text.
const DefaultDimensions = 768

// Config holds connection settings for the Postgres store.
type Config struct {
	// ConnString is a pgx connection string or URL (required).
	ConnString string

	// Dimensions is the vector column size; must match the embedding
	// provider (default: 768).
	Dimensions int
}

// Store implements the document store and vector searcher on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects, enables the vector extension and creates the schema.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("pgvector: connection string is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.createSchema(ctx, cfg.Dimensions); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) createSchema(ctx context.Context, dimensions int) error {
	schema := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id                   UUID PRIMARY KEY,
		filename             TEXT NOT NULL,
		doc_type             TEXT NOT NULL DEFAULT '',
		uploaded_at          TIMESTAMPTZ NOT NULL,
		chunk_count          INT NOT NULL DEFAULT 0,
		embedded_chunk_count INT NOT NULL DEFAULT 0,
		failed_chunk_count   INT NOT NULL DEFAULT 0,
		metadata             JSONB,
		status               TEXT NOT NULL,
		processing_error     TEXT NOT NULL DEFAULT '',
		source_path          TEXT NOT NULL DEFAULT '',
		vectors_purged       BOOLEAN NOT NULL DEFAULT FALSE,
		due_at               TIMESTAMPTZ,
		archived_at          TIMESTAMPTZ,
		deleted_at           TIMESTAMPTZ,
		restored_at          TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id              UUID PRIMARY KEY,
		document_id     UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index     INT NOT NULL,
		content         TEXT NOT NULL,
		token_count     INT NOT NULL DEFAULT 0,
		embedding       vector(%d),
		embedding_model TEXT NOT NULL DEFAULT '',
		failed          BOOLEAN NOT NULL DEFAULT FALSE,
		metadata        JSONB,
		created_at      TIMESTAMPTZ NOT NULL,
		UNIQUE(document_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding
		ON chunks USING hnsw (embedding vector_cosine_ops);
	`, dimensions)

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveDocument stores or updates a document record.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (id, filename, doc_type, uploaded_at, chunk_count,
			embedded_chunk_count, failed_chunk_count, metadata, status, processing_error,
			source_path, vectors_purged, due_at, archived_at, deleted_at, restored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			doc_type = EXCLUDED.doc_type,
			chunk_count = EXCLUDED.chunk_count,
			embedded_chunk_count = EXCLUDED.embedded_chunk_count,
			failed_chunk_count = EXCLUDED.failed_chunk_count,
			metadata = EXCLUDED.metadata,
			status = EXCLUDED.status,
			processing_error = EXCLUDED.processing_error,
			source_path = EXCLUDED.source_path,
			vectors_purged = EXCLUDED.vectors_purged,
			due_at = EXCLUDED.due_at,
			archived_at = EXCLUDED.archived_at,
			deleted_at = EXCLUDED.deleted_at,
			restored_at = EXCLUDED.restored_at
	`, doc.ID, doc.Filename, doc.DocType, doc.UploadedAt.UTC(),
		doc.ChunkCount, doc.EmbeddedChunkCount, doc.FailedChunkCount,
		metadataJSON, string(doc.Status), doc.ProcessingError,
		doc.SourcePath, doc.VectorsPurged,
		doc.DueAt, doc.ArchivedAt, doc.DeletedAt, doc.RestoredAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, filename, doc_type, uploaded_at, chunk_count,
			embedded_chunk_count, failed_chunk_count, metadata, status, processing_error,
			source_path, vectors_purged, due_at, archived_at, deleted_at, restored_at
		FROM documents WHERE id = $1
	`, id)
	return scanDocument(row)
}

// ListDocuments returns documents newest-first.
func (s *Store) ListDocuments(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filename, doc_type, uploaded_at, chunk_count,
			embedded_chunk_count, failed_chunk_count, metadata, status, processing_error,
			source_path, vectors_purged, due_at, archived_at, deleted_at, restored_at
		FROM documents ORDER BY uploaded_at DESC, id LIMIT $1 OFFSET $2
	`, nullableLimit(limit), offset)
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
func (s *Store) SaveChunk(ctx context.Context, chunk *domain.Chunk) error {
	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	var embedding *pgvec.Vector
	if len(chunk.Embedding) > 0 {
		v := pgvec.NewVector(chunk.Embedding)
		embedding = &v
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, token_count,
			embedding, embedding_model, failed, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			token_count = EXCLUDED.token_count,
			embedding = EXCLUDED.embedding,
			embedding_model = EXCLUDED.embedding_model,
			failed = EXCLUDED.failed,
			metadata = EXCLUDED.metadata
	`, chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content, chunk.TokenCount,
		embedding, chunk.EmbeddingModel, chunk.Failed, metadataJSON, chunk.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id uuid.UUID) (*domain.Chunk, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, document_id, chunk_index, content, token_count,
			embedding, embedding_model, failed, metadata, created_at
		FROM chunks WHERE id = $1
	`, id)
	return scanChunk(row)
}

// GetChunks returns a document's chunks ordered by chunk index.
func (s *Store) GetChunks(ctx context.Context, documentID uuid.UUID, limit int) ([]domain.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, token_count,
			embedding, embedding_model, failed, metadata, created_at
		FROM chunks WHERE document_id = $1
		ORDER BY chunk_index ASC LIMIT $2
	`, documentID, nullableLimit(limit))
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
func (s *Store) DeleteChunks(ctx context.Context, documentID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// Stats returns corpus-wide document and chunk counts.
func (s *Store) Stats(ctx context.Context) (*driven.CorpusStats, error) {
	stats := &driven.CorpusStats{DocumentsByState: make(map[domain.DocumentStatus]int)}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
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

	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE NOT failed AND embedding IS NOT NULL),
			COUNT(*) FILTER (WHERE failed)
		FROM chunks
	`)
	if err := row.Scan(&stats.TotalChunks, &stats.EmbeddedChunks, &stats.FailedChunks); err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	return stats, nil
}

// SimilaritySearch runs a cosine nearest-neighbour query using the `<=>`
// operator so the HNSW index serves the scan.
func (s *Store) SimilaritySearch(ctx context.Context, q driven.VectorQuery) ([]driven.ChunkMatch, bool, error) {
	if len(q.Embedding) == 0 {
		return nil, false, fmt.Errorf("empty query embedding")
	}

	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.token_count,
			c.embedding, c.embedding_model, c.failed, c.metadata, c.created_at,
			c.embedding <=> $1 AS distance
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE NOT c.failed AND c.embedding IS NOT NULL AND d.status != $2`
	args := []any{pgvec.NewVector(q.Embedding), string(domain.StatusDeleted)}

	if q.Model != "" {
		args = append(args, q.Model)
		query += fmt.Sprintf(` AND c.embedding_model = $%d`, len(args))
	}
	if q.Filters.DocumentID != uuid.Nil {
		args = append(args, q.Filters.DocumentID)
		query += fmt.Sprintf(` AND c.document_id = $%d`, len(args))
	}
	if q.Filters.DocType != "" {
		args = append(args, q.Filters.DocType)
		query += fmt.Sprintf(` AND d.doc_type = $%d`, len(args))
	}

	// Fetch one past the limit to learn whether results were truncated.
	fetch := q.Limit
	if fetch > 0 {
		fetch++
	}
	args = append(args, nullableLimit(fetch))
	query += fmt.Sprintf(` ORDER BY c.embedding <=> $1, c.created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var matches []driven.ChunkMatch
	for rows.Next() {
		var match driven.ChunkMatch
		chunk, err := scanChunkWithDistance(rows, &match.Distance)
		if err != nil {
			return nil, false, err
		}
		match.Chunk = *chunk
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	truncated := false
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
		truncated = true
	}
	return matches, truncated, nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON []byte
	var status string
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.DocType, &doc.UploadedAt,
		&doc.ChunkCount, &doc.EmbeddedChunkCount, &doc.FailedChunkCount,
		&metadataJSON, &status, &doc.ProcessingError,
		&doc.SourcePath, &doc.VectorsPurged,
		&doc.DueAt, &doc.ArchivedAt, &doc.DeletedAt, &doc.RestoredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}
	return &doc, nil
}

func scanChunk(row pgx.Row) (*domain.Chunk, error) {
	return scanChunkWithDistance(row, nil)
}

func scanChunkWithDistance(row pgx.Row, withDistance *float64) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embedding *pgvec.Vector
	var metadataJSON []byte

	dest := []any{&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
		&chunk.TokenCount, &embedding, &chunk.EmbeddingModel, &chunk.Failed,
		&metadataJSON, &chunk.CreatedAt}
	if withDistance != nil {
		dest = append(dest, withDistance)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	if embedding != nil {
		chunk.Embedding = embedding.Slice()
	}
	if err := unmarshalMetadata(metadataJSON, &chunk.Metadata); err != nil {
		return nil, err
	}
	return &chunk, nil
}

func unmarshalMetadata(raw []byte, dst *map[string]string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return nil
}

// nullableLimit maps a non-positive limit to NULL, which Postgres treats
// as LIMIT ALL.
func nullableLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
