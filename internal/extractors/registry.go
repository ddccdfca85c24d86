// Package extractors converts stored document files into plain text. One
// extractor per format; the registry resolves by declared doc type first,
// then by filename extension.
package extractors

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps doc types to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default returns a registry with the built-in extractors registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register(NewPlaintext())
	r.Register(NewMarkdown())
	r.Register(NewPDF())
	return r
}

// Register adds an extractor.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors = append(r.extractors, e)
}

// Resolve returns the extractor for a doc type or filename extension.
func (r *Registry) Resolve(docType, filename string) (driven.Extractor, error) {
	key := normaliseType(docType)
	if key == "" {
		key = normaliseType(filepath.Ext(filename))
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no doc type or file extension for %q", domain.ErrUnsupportedType, filename)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.extractors {
		if e.Supports(key) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: doc type %q", domain.ErrUnsupportedType, key)
}

func normaliseType(t string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
}
