package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	// StatusProcessing is the initial state set on upload. Chunk and
	// embedding counts update incrementally while a document is processing.
	StatusProcessing DocumentStatus = "processing"

	// StatusReady means chunking and embedding completed.
	StatusReady DocumentStatus = "ready"

	// StatusArchived hides the document from active queues but retains
	// its chunks and vectors.
	StatusArchived DocumentStatus = "archived"

	// StatusDeleted is terminal from the public API's viewpoint, except
	// via restore.
	StatusDeleted DocumentStatus = "deleted"
)

// Document is the canonical record for an ingested file. It is owned by the
// lifecycle service and mutated only through its transition operations;
// chunk counts are derived and updated by the ingestion pipeline.
type Document struct {
	ID         uuid.UUID
	Filename   string
	DocType    string
	UploadedAt time.Time

	// ChunkCount is assigned at chunking time. EmbeddedChunkCount trails it
	// while embedding is in flight; EmbeddedChunkCount never exceeds
	// ChunkCount. FailedChunkCount tracks chunks whose embedding retries
	// were exhausted.
	ChunkCount         int
	EmbeddedChunkCount int
	FailedChunkCount   int

	Metadata map[string]string
	Status   DocumentStatus

	// ProcessingError annotates a document whose extraction or pipeline
	// failed; the document stays in processing rather than advancing.
	ProcessingError string

	// SourcePath points at the stored upload bytes. Restore after a vector
	// purge requires these bytes to reprocess.
	SourcePath    string
	VectorsPurged bool

	DueAt      *time.Time
	ArchivedAt *time.Time
	DeletedAt  *time.Time
	RestoredAt *time.Time
}

// Chunk is a bounded slice of a document's extracted text, the unit of
// embedding and retrieval. Chunks are immutable once embedded and are
// removed only when their document's vectors are purged.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID

	// Index is the ordinal position within the document, assigned at
	// chunking time. Indices form a contiguous zero-based sequence
	// regardless of embedding completion order.
	Index int

	Content    string
	TokenCount int

	Embedding []float32

	// EmbeddingModel records which model produced the embedding. Retrieval
	// only matches chunks embedded with the querying model.
	EmbeddingModel string

	// Failed marks a chunk whose embedding retries were exhausted.
	// Failed chunks are excluded from retrieval.
	Failed bool

	Metadata  map[string]string
	CreatedAt time.Time
}

// Reference returns the stable citation token for a chunk. The QA engine
// embeds these into prompts and cross-checks model citations against them.
func (c Chunk) Reference() string {
	return ChunkReference{DocumentID: c.DocumentID, ChunkIndex: c.Index}.Token()
}
