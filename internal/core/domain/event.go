package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// EventType identifies the kind of work an event requests.
// The set is closed: every type has exactly one payload struct.
type EventType string

const (
	EventDocumentUpload         EventType = "document_upload"
	EventDocumentSummary        EventType = "document_summary"
	EventQAQuery                EventType = "qa_query"
	EventSearchQuery            EventType = "search_query"
	EventDocumentClassification EventType = "document_classification"
	EventClassificationOverride EventType = "classification_override"
	EventDocumentArchived       EventType = "document_archived"
	EventDocumentDeleted        EventType = "document_deleted"
	EventDocumentRestored       EventType = "document_restored"
)

// Event is an immutable record of a client-submitted request. It is persisted
// synchronously at submission time; the outcome of the work it triggered
// lives on the associated Task.
type Event struct {
	ID          uuid.UUID
	Type        EventType
	SubmittedAt time.Time
	Payload     EventPayload
	TaskID      uuid.UUID
}

// EventPayload is the closed tagged union of event payloads. Each variant
// carries compile-time-checked fields and its own validation rules.
type EventPayload interface {
	EventType() EventType
	Validate() error
}

var validate = validator.New()

// validateStruct converts validator tag failures into a ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate payload: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fmt.Sprintf("failed on '%s' tag", fe.Tag())
	}
	return NewValidationError(fields)
}

// UploadPayload requests ingestion of a stored document file.
type UploadPayload struct {
	Filename string            `json:"filename" validate:"required"`
	FilePath string            `json:"file_path" validate:"required"`
	DocType  string            `json:"doc_type,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// DueAt is the optional processing deadline used for SLA tracking.
	DueAt *time.Time `json:"due_at,omitempty"`

	// DocumentID is assigned by the dispatcher at submission time so the
	// document record is visible to clients before the pipeline runs.
	DocumentID uuid.UUID `json:"document_id,omitempty"`
}

func (p *UploadPayload) EventType() EventType { return EventDocumentUpload }
func (p *UploadPayload) Validate() error      { return validateStruct(p) }

// SummaryPayload requests a structured summary of an ingested document.
type SummaryPayload struct {
	DocumentID  uuid.UUID `json:"document_id" validate:"required"`
	ChunksLimit int       `json:"chunks_limit,omitempty" validate:"gte=0"`
}

func (p *SummaryPayload) EventType() EventType { return EventDocumentSummary }
func (p *SummaryPayload) Validate() error      { return validateStruct(p) }

// QAQueryPayload requests a grounded answer to a natural-language question.
type QAQueryPayload struct {
	Query   string        `json:"query" validate:"required"`
	TopK    int           `json:"top_k,omitempty" validate:"gte=0"`
	Filters SearchFilters `json:"filters,omitempty"`
}

func (p *QAQueryPayload) EventType() EventType { return EventQAQuery }
func (p *QAQueryPayload) Validate() error      { return validateStruct(p) }

// SearchQueryPayload requests a ranked semantic search over stored chunks.
type SearchQueryPayload struct {
	Query   string        `json:"query" validate:"required"`
	Limit   int           `json:"limit,omitempty" validate:"gte=0"`
	Filters SearchFilters `json:"filters,omitempty"`
}

func (p *SearchQueryPayload) EventType() EventType { return EventSearchQuery }
func (p *SearchQueryPayload) Validate() error      { return validateStruct(p) }

// ClassificationPayload requests zero-shot classification of a document.
type ClassificationPayload struct {
	DocumentID      uuid.UUID `json:"document_id" validate:"required"`
	CandidateLabels []string  `json:"candidate_labels,omitempty"`
	TextOverride    string    `json:"text_override,omitempty"`
}

func (p *ClassificationPayload) EventType() EventType { return EventDocumentClassification }
func (p *ClassificationPayload) Validate() error      { return validateStruct(p) }

// ClassificationOverridePayload records a manual label correction.
type ClassificationOverridePayload struct {
	DocumentID uuid.UUID `json:"document_id" validate:"required"`
	Label      string    `json:"label" validate:"required"`
	Confidence float64   `json:"confidence,omitempty" validate:"gte=0,lte=1"`
	Notes      string    `json:"notes,omitempty"`
}

func (p *ClassificationOverridePayload) EventType() EventType { return EventClassificationOverride }
func (p *ClassificationOverridePayload) Validate() error      { return validateStruct(p) }

// ArchivePayload requests soft-archival of a document.
type ArchivePayload struct {
	DocumentID uuid.UUID `json:"document_id" validate:"required"`
	Reason     string    `json:"reason,omitempty"`
}

func (p *ArchivePayload) EventType() EventType { return EventDocumentArchived }
func (p *ArchivePayload) Validate() error      { return validateStruct(p) }

// DeletePayload requests soft-deletion of a document, optionally purging
// its chunk embeddings.
type DeletePayload struct {
	DocumentID   uuid.UUID `json:"document_id" validate:"required"`
	Reason       string    `json:"reason,omitempty"`
	PurgeVectors bool      `json:"purge_vectors,omitempty"`
}

func (p *DeletePayload) EventType() EventType { return EventDocumentDeleted }
func (p *DeletePayload) Validate() error      { return validateStruct(p) }

// RestorePayload requests restoring an archived or deleted document back to
// processing.
type RestorePayload struct {
	DocumentID uuid.UUID `json:"document_id" validate:"required"`
	Reason     string    `json:"reason,omitempty"`
}

func (p *RestorePayload) EventType() EventType { return EventDocumentRestored }
func (p *RestorePayload) Validate() error      { return validateStruct(p) }

// NewPayload returns the zero payload value for an event type. It is the
// single place that maps the closed union; unknown types are rejected.
func NewPayload(t EventType) (EventPayload, error) {
	switch t {
	case EventDocumentUpload:
		return &UploadPayload{}, nil
	case EventDocumentSummary:
		return &SummaryPayload{}, nil
	case EventQAQuery:
		return &QAQueryPayload{}, nil
	case EventSearchQuery:
		return &SearchQueryPayload{}, nil
	case EventDocumentClassification:
		return &ClassificationPayload{}, nil
	case EventClassificationOverride:
		return &ClassificationOverridePayload{}, nil
	case EventDocumentArchived:
		return &ArchivePayload{}, nil
	case EventDocumentDeleted:
		return &DeletePayload{}, nil
	case EventDocumentRestored:
		return &RestorePayload{}, nil
	default:
		return nil, fmt.Errorf("%w: event type %q", ErrUnsupportedType, t)
	}
}

// ParsePayload decodes raw JSON into the payload struct for the given type.
func ParsePayload(t EventType, raw []byte) (EventPayload, error) {
	payload, err := NewPayload(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return payload, nil
}
