// Package chunker splits extracted text into overlapping, token-budgeted
// chunks ready for embedding.
package chunker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Ensure TokenChunker implements the interface.
var _ driven.Chunker = (*TokenChunker)(nil)

var sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?\n]*\s*`)

// TokenChunker accumulates whole sentences up to the token budget, carrying
// a sentence-aligned overlap between consecutive chunks. A single sentence
// longer than the budget is hard-split on token windows.
type TokenChunker struct {
	enc *tiktoken.Tiktoken
}

// New creates a chunker using the cl100k_base encoding.
func New() (*TokenChunker, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TokenChunker{enc: enc}, nil
}

// Chunk splits text into chunks with contiguous zero-based indices.
func (c *TokenChunker) Chunk(ctx context.Context, doc *domain.Document, text string, settings domain.Settings) ([]domain.Chunk, error) {
	settings = settings.Normalised()
	size := settings.ChunkSizeTokens
	overlap := settings.ChunkOverlap

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var pieces []piece
	for _, sentence := range sentenceRe.FindAllString(text, -1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tokens := c.enc.Encode(sentence, nil, nil)
		if len(tokens) <= size {
			pieces = append(pieces, piece{text: sentence, tokens: len(tokens)})
			continue
		}
		// Sentence alone exceeds the budget; split it on token windows.
		for start := 0; start < len(tokens); start += size {
			end := start + size
			if end > len(tokens) {
				end = len(tokens)
			}
			pieces = append(pieces, piece{
				text:   c.enc.Decode(tokens[start:end]),
				tokens: end - start,
			})
		}
	}

	var chunks []domain.Chunk
	var current []piece
	currentTokens := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		var b strings.Builder
		for _, p := range current {
			b.WriteString(p.text)
		}
		content := strings.TrimSpace(b.String())
		if content == "" {
			current = nil
			currentTokens = 0
			return
		}
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      len(chunks),
			Content:    content,
			TokenCount: currentTokens,
		})
		// Carry trailing sentences as overlap into the next chunk.
		var carried []piece
		carriedTokens := 0
		for i := len(current) - 1; i >= 0 && carriedTokens < overlap; i-- {
			carried = append([]piece{current[i]}, carried...)
			carriedTokens += current[i].tokens
		}
		if carriedTokens >= currentTokens {
			carried, carriedTokens = nil, 0
		}
		current = carried
		currentTokens = carriedTokens
	}

	for _, p := range pieces {
		if currentTokens+p.tokens > size && currentTokens > 0 {
			flush()
		}
		current = append(current, p)
		currentTokens += p.tokens
	}
	if currentTokens > 0 {
		flush()
	}
	return chunks, nil
}

type piece struct {
	text   string
	tokens int
}
