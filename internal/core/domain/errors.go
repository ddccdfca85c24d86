package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates a malformed event payload. Validation failures
	// are returned synchronously to the caller and never enqueued.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition indicates an illegal document lifecycle operation.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrProvider indicates an embedding or LLM provider failure.
	// Provider errors are retried with bounded backoff before a task fails.
	ErrProvider = errors.New("provider error")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrUnsupportedType indicates an unknown event or document type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLabelInUse indicates a taxonomy domain cannot be deleted because it
	// still has child labels and the delete was not forced.
	ErrLabelInUse = errors.New("label has children")
)

// ValidationError carries per-field validation failures for an event payload.
// It wraps ErrValidation so callers can match with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d invalid field(s)", len(e.Fields))
}

// Unwrap lets errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError from field -> message pairs.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// TransitionError reports an illegal lifecycle transition along with the
// document's current state so the caller can surface it.
type TransitionError struct {
	DocumentID uuid.UUID
	From       DocumentStatus
	Op         string
	Reason     string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s document %s in state %q: %s", e.Op, e.DocumentID, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s document %s in state %q", e.Op, e.DocumentID, e.From)
}

// Unwrap lets errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
