package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChunkReference is a non-owning back-reference from an answer to a chunk
// that was part of its retrieved set. It never extends the chunk's lifetime.
type ChunkReference struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
}

// Token renders the stable reference string presented to the model,
// e.g. "[doc:0b6a9c2e-...#3]". Tokens key on the document id rather than
// the filename so arbitrary filenames cannot break token parsing.
func (r ChunkReference) Token() string {
	return fmt.Sprintf("[doc:%s#%d]", r.DocumentID, r.ChunkIndex)
}

// QAAnswer is the immutable outcome of a qa_query event. A follow-up
// question produces a new QAAnswer, never a mutation.
type QAAnswer struct {
	EventID   uuid.UUID `json:"event_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Reasoning string    `json:"reasoning,omitempty"`

	// Confidence blends the top retrieval distance with the lexical overlap
	// between the answer and its cited chunks, clamped to [0,1]. Zero means
	// nothing matched the query.
	Confidence float64 `json:"confidence"`

	// Citations holds only reference tokens that were actually presented
	// to the model; anything else the model invents is dropped.
	Citations []string `json:"citations"`

	ChunkReferences []ChunkReference `json:"chunk_references"`
	CreatedAt       time.Time        `json:"created_at"`
}
