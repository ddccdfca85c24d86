package extractors

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure Markdown implements the interface.
var _ driven.Extractor = (*Markdown)(nil)

var (
	mdCodeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n(.*?)```")
	mdImageRe     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLinkRe      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeadingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasisRe  = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)([^*_~]+)?(\*{1,3}|_{1,3}|~~)`)
	mdHTMLTagRe   = regexp.MustCompile(`<[^>]+>`)
)

// Markdown strips formatting from Markdown files, keeping the readable
// text including code block contents and link labels.
type Markdown struct{}

// NewMarkdown creates the Markdown extractor.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (m *Markdown) Name() string { return "markdown" }

func (m *Markdown) Supports(docType string) bool {
	return docType == "md" || docType == "markdown"
}

func (m *Markdown) Extract(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return stripMarkdown(string(raw)), nil
}

func stripMarkdown(text string) string {
	text = mdCodeFenceRe.ReplaceAllString(text, "$1")
	text = mdImageRe.ReplaceAllString(text, "$1")
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = mdHeadingRe.ReplaceAllString(text, "")
	text = mdEmphasisRe.ReplaceAllString(text, "$2")
	text = mdHTMLTagRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "`", "")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "> ")
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
