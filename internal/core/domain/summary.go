package domain

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the condensed representation of a document. Summaries are
// latest-wins: re-running summarization replaces the prior one.
type Summary struct {
	DocumentID       uuid.UUID `json:"document_id"`
	Summary          string    `json:"summary"`
	BulletPoints     []string  `json:"bullet_points"`
	NextSteps        []string  `json:"next_steps,omitempty"`
	SourceChunkCount int       `json:"source_chunk_count"`
	Model            string    `json:"model,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
}
