package driven

import "context"

// Extractor converts one document format to plain text. Extraction failures
// are reported, never silently degraded: the pipeline leaves the document
// in processing with an error annotation.
type Extractor interface {
	// Name returns the extractor name for logging and registration.
	Name() string

	// Supports reports whether this extractor handles the given doc type
	// or file extension (lower-case, without the dot).
	Supports(docType string) bool

	// Extract reads the file at path and returns its plain text.
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorRegistry resolves the extractor for a document.
type ExtractorRegistry interface {
	// Resolve returns the extractor for a doc type or filename extension.
	// Returns domain.ErrUnsupportedType when no extractor matches.
	Resolve(docType, filename string) (Extractor, error)

	// Register adds an extractor to the registry.
	Register(e Extractor)
}
