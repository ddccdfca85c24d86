package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

// previewContentLength bounds chunk content in preview mode.
const previewContentLength = 240

// Ensure Reader implements the interfaces.
var (
	_ driving.DocumentService = (*Reader)(nil)
	_ driving.HistoryService  = (*Reader)(nil)
)

// Reader serves the synchronous read interfaces: documents, chunk
// previews, summaries, and the event/QA/search/classification histories.
// All methods are read-only and take no document locks.
type Reader struct {
	docs            driven.DocumentStore
	events          driven.EventStore
	queue           driven.TaskQueue
	summaries       driven.SummaryStore
	classifications driven.ClassificationStore
	config          driven.ConfigStore
	log             zerolog.Logger
}

// NewReader creates the read-side service.
func NewReader(
	docs driven.DocumentStore,
	events driven.EventStore,
	queue driven.TaskQueue,
	summaries driven.SummaryStore,
	classifications driven.ClassificationStore,
	config driven.ConfigStore,
	log zerolog.Logger,
) *Reader {
	return &Reader{
		docs:            docs,
		events:          events,
		queue:           queue,
		summaries:       summaries,
		classifications: classifications,
		config:          config,
		log:             log.With().Str("component", "reader").Logger(),
	}
}

// Get retrieves a document by id.
func (r *Reader) Get(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	return r.docs.GetDocument(ctx, id)
}

// List returns documents newest-first.
func (r *Reader) List(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	return r.docs.ListDocuments(ctx, limit, offset)
}

// Chunks returns a document's chunks in index order. In preview mode the
// count is bounded by the configured preview limit and content is
// truncated.
func (r *Reader) Chunks(ctx context.Context, documentID uuid.UUID, limit int, preview bool) ([]domain.Chunk, error) {
	if _, err := r.docs.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	if preview {
		settings, err := r.config.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		settings = settings.Normalised()
		if limit <= 0 || limit > settings.ChunkPreviewLimit {
			limit = settings.ChunkPreviewLimit
		}
	}
	chunks, err := r.docs.GetChunks(ctx, documentID, limit)
	if err != nil {
		return nil, err
	}
	if preview {
		for i := range chunks {
			chunks[i].Embedding = nil
			if len(chunks[i].Content) > previewContentLength {
				chunks[i].Content = chunks[i].Content[:previewContentLength]
			}
		}
	}
	return chunks, nil
}

// Summary returns the current summary for a document.
func (r *Reader) Summary(ctx context.Context, documentID uuid.UUID) (*domain.Summary, error) {
	return r.summaries.Get(ctx, documentID)
}

// Events returns recent events newest-first, optionally filtered by type.
func (r *Reader) Events(ctx context.Context, eventType domain.EventType, limit int) ([]domain.Event, error) {
	if eventType == "" {
		return r.events.ListRecent(ctx, limit)
	}
	return r.events.ListByType(ctx, eventType, limit)
}

// Event returns an event together with its backing task, so a caller can
// distinguish still-processing, completed, and failed purely from fields.
func (r *Reader) Event(ctx context.Context, eventID uuid.UUID) (*domain.Event, *domain.Task, error) {
	event, err := r.events.Get(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	task, err := r.queue.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	return event, task, nil
}

// QAAnswers returns recent question-answering results newest-first.
func (r *Reader) QAAnswers(ctx context.Context, limit int) ([]domain.QAAnswer, error) {
	var answers []domain.QAAnswer
	err := r.decodeResults(ctx, domain.EventQAQuery, limit, func(result json.RawMessage) error {
		var answer domain.QAAnswer
		if err := json.Unmarshal(result, &answer); err != nil {
			return err
		}
		answers = append(answers, answer)
		return nil
	})
	return answers, err
}

// Searches returns recent search result sets newest-first.
func (r *Reader) Searches(ctx context.Context, limit int) ([]domain.SearchResultSet, error) {
	var sets []domain.SearchResultSet
	err := r.decodeResults(ctx, domain.EventSearchQuery, limit, func(result json.RawMessage) error {
		var set domain.SearchResultSet
		if err := json.Unmarshal(result, &set); err != nil {
			return err
		}
		sets = append(sets, set)
		return nil
	})
	return sets, err
}

// Classifications returns a document's classification history newest-first.
func (r *Reader) Classifications(ctx context.Context, documentID uuid.UUID, limit int) ([]domain.ClassificationRecord, error) {
	if _, err := r.docs.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return r.classifications.ListByDocument(ctx, documentID, limit)
}

// decodeResults walks succeeded tasks for one event type newest-first and
// feeds each recorded result to collect.
func (r *Reader) decodeResults(ctx context.Context, eventType domain.EventType, limit int, collect func(json.RawMessage) error) error {
	events, err := r.events.ListByType(ctx, eventType, 0)
	if err != nil {
		return err
	}
	collected := 0
	for _, event := range events {
		if limit > 0 && collected >= limit {
			break
		}
		task, err := r.queue.Get(ctx, event.TaskID)
		if err != nil || task.Status != domain.TaskSucceeded || len(task.Result) == 0 {
			continue
		}
		if err := collect(task.Result); err != nil {
			r.log.Warn().Stringer("event_id", event.ID).Err(err).Msg("undecodable task result")
			continue
		}
		collected++
	}
	return nil
}
