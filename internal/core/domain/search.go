package domain

import (
	"time"

	"github.com/google/uuid"
)

// SearchFilters restricts retrieval to matching chunks. Zero values match
// everything.
type SearchFilters struct {
	DocumentID uuid.UUID `json:"document_id,omitempty"`
	DocType    string    `json:"doc_type,omitempty"`
}

// Empty reports whether no filter is set.
func (f SearchFilters) Empty() bool {
	return f.DocumentID == uuid.Nil && f.DocType == ""
}

// SearchResult is one ranked chunk returned by the retrieval engine.
// Distance is in the embedding metric (cosine distance); lower is more
// relevant.
type SearchResult struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Filename   string    `json:"filename,omitempty"`

	// Reference is the chunk's citation token, stable across queries.
	Reference string `json:"reference"`

	Content  string            `json:"contents"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResultSet is the recorded outcome of a search_query event.
type SearchResultSet struct {
	EventID          uuid.UUID      `json:"event_id"`
	Query            string         `json:"query"`
	Filters          SearchFilters  `json:"filters"`
	Limit            int            `json:"limit"`
	ResultCount      int            `json:"result_count"`
	Results          []SearchResult `json:"results"`
	ResultsTruncated bool           `json:"results_truncated"`
	CreatedAt        time.Time      `json:"created_at"`
}
