package extractors

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure PDF implements the interface.
var _ driven.Extractor = (*PDF)(nil)

var (
	pdfTjRe  = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
	pdfTJRe  = regexp.MustCompile(`\[((?:[^\[\]\\]|\\.)*)\]\s*TJ`)
	pdfStrRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)
)

// PDF extracts text by decoding the show-text operators of each page's
// content stream. Scanned PDFs without a text layer yield little or no
// text; that surfaces as an extraction failure upstream rather than a
// silent empty document.
type PDF struct{}

// NewPDF creates the PDF extractor.
func NewPDF() *PDF {
	return &PDF{}
}

func (p *PDF) Name() string { return "pdf" }

func (p *PDF) Supports(docType string) bool {
	return docType == "pdf"
}

func (p *PDF) Extract(ctx context.Context, path string) (string, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var b strings.Builder
	for page := 1; page <= pdfCtx.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		reader, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			return "", fmt.Errorf("extract page %d content: %w", page, err)
		}
		if reader == nil {
			continue
		}
		content, err := io.ReadAll(reader)
		if err != nil {
			return "", fmt.Errorf("read page %d content: %w", page, err)
		}
		pageText := decodeTextOperators(string(content))
		if pageText != "" {
			b.WriteString(pageText)
			b.WriteString("\n\n")
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text layer")
	}
	return text, nil
}

// decodeTextOperators pulls the literal strings out of Tj and TJ show-text
// operators.
func decodeTextOperators(content string) string {
	var parts []string
	for _, m := range pdfTjRe.FindAllStringSubmatch(content, -1) {
		if s := decodePDFString(m[1]); s != "" {
			parts = append(parts, s)
		}
	}
	for _, m := range pdfTJRe.FindAllStringSubmatch(content, -1) {
		var segment strings.Builder
		for _, sm := range pdfStrRe.FindAllStringSubmatch(m[1], -1) {
			segment.WriteString(decodePDFString(sm[1]))
		}
		if segment.Len() > 0 {
			parts = append(parts, segment.String())
		}
	}
	return strings.Join(parts, " ")
}

// decodePDFString resolves the escape sequences of a PDF literal string.
func decodePDFString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '(', ')', '\\':
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
