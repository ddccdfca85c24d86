package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

const summarySystemPrompt = `You are a document summarization assistant.
Given document excerpts, respond with a JSON object of this exact shape:
{"summary": "...", "bullet_points": ["..."], "next_steps": ["..."]}
Keep the summary under 200 words. Respond with JSON only.`

// Summarizer condenses a document into a structured summary. Chunks are
// selected in chunk-index order, earliest first; re-running replaces the
// prior summary.
type Summarizer struct {
	docs      driven.DocumentStore
	summaries driven.SummaryStore
	llm       driven.LLMService
	now       func() time.Time
	log       zerolog.Logger
}

// NewSummarizer creates the summarization engine.
func NewSummarizer(docs driven.DocumentStore, summaries driven.SummaryStore, llm driven.LLMService, log zerolog.Logger) *Summarizer {
	return &Summarizer{
		docs:      docs,
		summaries: summaries,
		llm:       llm,
		now:       time.Now,
		log:       log.With().Str("component", "summary").Logger(),
	}
}

// Summarize runs a document_summary event.
func (s *Summarizer) Summarize(ctx context.Context, p *domain.SummaryPayload, settings domain.Settings) (*domain.Summary, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	doc, err := s.docs.GetDocument(ctx, p.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.StatusDeleted {
		return nil, &domain.TransitionError{
			DocumentID: doc.ID,
			From:       doc.Status,
			Op:         "summarize",
			Reason:     "cannot summarize a deleted document",
		}
	}

	limit := p.ChunksLimit
	if limit <= 0 {
		limit = settings.SummaryChunkLimit
	}
	chunks, err := s.docs.GetChunks(ctx, p.DocumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no chunks to summarize: %w", doc.ID, domain.ErrNotFound)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n\nExcerpts:\n", doc.Filename)
	for _, chunk := range chunks {
		b.WriteString(chunk.Content)
		b.WriteString("\n\n")
	}

	raw, err := s.llm.Generate(ctx, b.String(), driven.GenerateOptions{
		Temperature: 0.2,
		System:      summarySystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate summary: %v", domain.ErrProvider, err)
	}

	summary := parseSummaryResponse(raw)
	summary.DocumentID = doc.ID
	summary.SourceChunkCount = len(chunks)
	summary.Model = s.llm.ModelName()
	summary.GeneratedAt = s.now()

	if err := s.summaries.Save(ctx, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	s.log.Info().Stringer("document_id", doc.ID).Int("source_chunks", len(chunks)).Msg("summary generated")
	return summary, nil
}

// parseSummaryResponse decodes the model's JSON output, tolerating code
// fences and falling back to the raw text when the JSON is malformed.
func parseSummaryResponse(raw string) *domain.Summary {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed struct {
		Summary      string   `json:"summary"`
		BulletPoints []string `json:"bullet_points"`
		NextSteps    []string `json:"next_steps"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil || parsed.Summary == "" {
		return &domain.Summary{Summary: cleaned}
	}
	return &domain.Summary{
		Summary:      parsed.Summary,
		BulletPoints: parsed.BulletPoints,
		NextSteps:    parsed.NextSteps,
	}
}
