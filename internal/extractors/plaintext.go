package extractors

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure Plaintext implements the interface.
var _ driven.Extractor = (*Plaintext)(nil)

// Plaintext handles plain text formats verbatim.
type Plaintext struct{}

// NewPlaintext creates the plain text extractor.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

func (p *Plaintext) Name() string { return "plaintext" }

func (p *Plaintext) Supports(docType string) bool {
	switch docType {
	case "txt", "text", "log", "plaintext":
		return true
	}
	return false
}

// Extract reads the file, replacing invalid UTF-8 sequences.
func (p *Plaintext) Extract(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	text := string(raw)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}
