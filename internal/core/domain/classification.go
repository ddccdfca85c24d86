package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClassificationSource distinguishes model inference from manual overrides.
type ClassificationSource string

const (
	SourceInference ClassificationSource = "inference"
	SourceOverride  ClassificationSource = "override"
)

// LabelScore is one candidate label with its score, ranked descending.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ClassificationRecord is one entry in a document's append-only
// classification audit log. The most recent record defines the document's
// current label.
type ClassificationRecord struct {
	ID                uuid.UUID            `json:"id"`
	DocumentID        uuid.UUID            `json:"document_id"`
	LabelName         string               `json:"label_name"`
	Confidence        float64              `json:"confidence"`
	Source            ClassificationSource `json:"source"`
	Scores            []LabelScore         `json:"scores,omitempty"`
	Reasoning         string               `json:"reasoning,omitempty"`
	Notes             string               `json:"notes,omitempty"`
	ClassifierVersion string               `json:"classifier_version,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}
