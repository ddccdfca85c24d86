package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// classifierInputChunks bounds how many chunks feed the classifier when no
// summary or text override is available.
const classifierInputChunks = 6

// Classifier assigns taxonomy labels to documents using zero-shot scoring.
// Results and manual overrides form an append-only audit log; the newest
// record defines the current label.
type Classifier struct {
	docs            driven.DocumentStore
	summaries       driven.SummaryStore
	classifications driven.ClassificationStore
	labels          driven.LabelStore
	llm             driven.LLMService
	now             func() time.Time
	log             zerolog.Logger
}

// NewClassifier creates the classification engine.
func NewClassifier(
	docs driven.DocumentStore,
	summaries driven.SummaryStore,
	classifications driven.ClassificationStore,
	labels driven.LabelStore,
	llm driven.LLMService,
	log zerolog.Logger,
) *Classifier {
	return &Classifier{
		docs:            docs,
		summaries:       summaries,
		classifications: classifications,
		labels:          labels,
		llm:             llm,
		now:             time.Now,
		log:             log.With().Str("component", "classify").Logger(),
	}
}

// Classify runs a document_classification event. The candidate set defaults
// to the leaf labels of the taxonomy; the input text prefers the override,
// then the stored summary, then the document's leading chunks.
func (c *Classifier) Classify(ctx context.Context, p *domain.ClassificationPayload, settings domain.Settings) (*domain.ClassificationRecord, error) {
	if c.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	doc, err := c.docs.GetDocument(ctx, p.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.StatusDeleted {
		return nil, &domain.TransitionError{
			DocumentID: doc.ID,
			From:       doc.Status,
			Op:         "classify",
			Reason:     "cannot classify a deleted document",
		}
	}

	candidates := p.CandidateLabels
	if len(candidates) == 0 {
		candidates, err = c.taxonomyCandidates(ctx)
		if err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		return nil, domain.NewValidationError(map[string]string{
			"candidate_labels": "no candidate labels given and the taxonomy is empty",
		})
	}

	text, err := c.classificationInput(ctx, doc, p.TextOverride)
	if err != nil {
		return nil, err
	}

	scores, err := c.llm.Classify(ctx, text, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: classify document: %v", domain.ErrProvider, err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: classifier returned no scores", domain.ErrProvider)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	record := &domain.ClassificationRecord{
		ID:                uuid.New(),
		DocumentID:        doc.ID,
		LabelName:         scores[0].Label,
		Confidence:        clamp01(scores[0].Score),
		Source:            domain.SourceInference,
		Scores:            scores,
		ClassifierVersion: c.llm.ModelName(),
		CreatedAt:         c.now(),
	}
	if err := c.classifications.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append classification: %w", err)
	}
	c.log.Info().
		Stringer("document_id", doc.ID).
		Str("label", record.LabelName).
		Float64("confidence", record.Confidence).
		Msg("document classified")
	return record, nil
}

// Override runs a classification_override event, recording a manual label
// correction in the same audit log.
func (c *Classifier) Override(ctx context.Context, p *domain.ClassificationOverridePayload) (*domain.ClassificationRecord, error) {
	doc, err := c.docs.GetDocument(ctx, p.DocumentID)
	if err != nil {
		return nil, err
	}

	record := &domain.ClassificationRecord{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		LabelName:  p.Label,
		Confidence: clamp01(p.Confidence),
		Source:     domain.SourceOverride,
		Notes:      p.Notes,
		CreatedAt:  c.now(),
	}
	if err := c.classifications.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append override: %w", err)
	}
	c.log.Info().Stringer("document_id", doc.ID).Str("label", p.Label).Msg("classification overridden")
	return record, nil
}

// HasHistory reports whether a document already carries any classification
// record, inferred or overridden.
func (c *Classifier) HasHistory(ctx context.Context, documentID uuid.UUID) (bool, error) {
	if _, err := c.classifications.Latest(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load classification history: %w", err)
	}
	return true, nil
}

func (c *Classifier) taxonomyCandidates(ctx context.Context) ([]string, error) {
	rows, err := c.labels.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	taxonomy, err := domain.NewTaxonomy(rows)
	if err != nil {
		return nil, fmt.Errorf("build taxonomy: %w", err)
	}
	return taxonomy.CandidateLabels(), nil
}

func (c *Classifier) classificationInput(ctx context.Context, doc *domain.Document, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if summary, err := c.summaries.Get(ctx, doc.ID); err == nil && summary.Summary != "" {
		return summary.Summary, nil
	}
	chunks, err := c.docs.GetChunks(ctx, doc.ID, classifierInputChunks)
	if err != nil {
		return "", fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("document %s has no text to classify: %w", doc.ID, domain.ErrNotFound)
	}
	var b strings.Builder
	for _, chunk := range chunks {
		b.WriteString(chunk.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}
