package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

const (
	defaultWorkers      = 4
	defaultPollInterval = 250 * time.Millisecond
	retryBackoffBase    = 2 * time.Second
)

// ingestResult is the recorded outcome of an upload or restore-reprocess.
type ingestResult struct {
	DocumentID         uuid.UUID             `json:"document_id"`
	ChunkCount         int                   `json:"chunk_count"`
	EmbeddedChunkCount int                   `json:"embedded_chunk_count"`
	FailedChunkCount   int                   `json:"failed_chunk_count"`
	Status             domain.DocumentStatus `json:"status"`
}

// lifecycleResult is the recorded outcome of archive/delete/restore.
type lifecycleResult struct {
	DocumentID    uuid.UUID             `json:"document_id"`
	Status        domain.DocumentStatus `json:"status"`
	VectorsPurged bool                  `json:"vectors_purged,omitempty"`
}

// Executor maps each event type to its engine. The payload union is closed,
// so dispatch is a type switch with no runtime field inspection.
type Executor struct {
	ingestor   *Ingestor
	retriever  *Retriever
	qa         *QAEngine
	summarizer *Summarizer
	classifier *Classifier
	lifecycle  *Lifecycle

	// dispatcher, when set, receives follow-up events: a summary after a
	// successful ingest and a classification after a successful summary.
	dispatcher   driving.EventDispatcher
	autoSummary  bool
	autoClassify bool

	log zerolog.Logger
}

// NewExecutor creates the event executor.
func NewExecutor(
	ingestor *Ingestor,
	retriever *Retriever,
	qa *QAEngine,
	summarizer *Summarizer,
	classifier *Classifier,
	lifecycle *Lifecycle,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		ingestor:   ingestor,
		retriever:  retriever,
		qa:         qa,
		summarizer: summarizer,
		classifier: classifier,
		lifecycle:  lifecycle,
		log:        log.With().Str("component", "executor").Logger(),
	}
}

// EnableFollowUps turns on automatic summary-after-ingest and
// classification-after-summary submissions through the dispatcher.
func (e *Executor) EnableFollowUps(dispatcher driving.EventDispatcher, autoSummary, autoClassify bool) {
	e.dispatcher = dispatcher
	e.autoSummary = autoSummary
	e.autoClassify = autoClassify
}

// Execute runs one event to completion and returns the JSON result to
// record on the task.
func (e *Executor) Execute(ctx context.Context, event *domain.Event, settings domain.Settings) (json.RawMessage, error) {
	switch p := event.Payload.(type) {
	case *domain.UploadPayload:
		doc, err := e.ingestor.Process(ctx, p.DocumentID, settings)
		if err != nil {
			return nil, err
		}
		e.followUpSummary(ctx, doc)
		return marshalResult(ingestResult{
			DocumentID:         doc.ID,
			ChunkCount:         doc.ChunkCount,
			EmbeddedChunkCount: doc.EmbeddedChunkCount,
			FailedChunkCount:   doc.FailedChunkCount,
			Status:             doc.Status,
		})

	case *domain.SummaryPayload:
		summary, err := e.summarizer.Summarize(ctx, p, settings)
		if err != nil {
			return nil, err
		}
		e.followUpClassification(ctx, p.DocumentID)
		return marshalResult(summary)

	case *domain.QAQueryPayload:
		answer, err := e.qa.Answer(ctx, event.ID, p, settings)
		if err != nil {
			return nil, err
		}
		return marshalResult(answer)

	case *domain.SearchQueryPayload:
		set, err := e.retriever.Execute(ctx, event.ID, p, settings)
		if err != nil {
			return nil, err
		}
		return marshalResult(set)

	case *domain.ClassificationPayload:
		record, err := e.classifier.Classify(ctx, p, settings)
		if err != nil {
			return nil, err
		}
		return marshalResult(record)

	case *domain.ClassificationOverridePayload:
		record, err := e.classifier.Override(ctx, p)
		if err != nil {
			return nil, err
		}
		return marshalResult(record)

	case *domain.ArchivePayload:
		doc, err := e.lifecycle.Archive(ctx, p.DocumentID, p.Reason)
		if err != nil {
			return nil, err
		}
		return marshalResult(lifecycleResult{DocumentID: doc.ID, Status: doc.Status})

	case *domain.DeletePayload:
		doc, err := e.lifecycle.Delete(ctx, p.DocumentID, p.PurgeVectors)
		if err != nil {
			return nil, err
		}
		return marshalResult(lifecycleResult{DocumentID: doc.ID, Status: doc.Status, VectorsPurged: doc.VectorsPurged})

	case *domain.RestorePayload:
		return e.restore(ctx, p, settings)

	default:
		return nil, fmt.Errorf("%w: event type %q", domain.ErrUnsupportedType, event.Type)
	}
}

// restore moves the document back to processing, then either reprocesses
// the backing bytes (vectors were purged) or verifies the existing chunks
// and marks the document ready again.
func (e *Executor) restore(ctx context.Context, p *domain.RestorePayload, settings domain.Settings) (json.RawMessage, error) {
	doc, reprocess, err := e.lifecycle.Restore(ctx, p.DocumentID)
	if err != nil {
		return nil, err
	}
	if reprocess {
		doc, err = e.ingestor.Process(ctx, p.DocumentID, settings)
	} else {
		doc, err = e.lifecycle.MarkReady(ctx, p.DocumentID)
	}
	if err != nil {
		return nil, err
	}
	return marshalResult(lifecycleResult{DocumentID: doc.ID, Status: doc.Status, VectorsPurged: doc.VectorsPurged})
}

func (e *Executor) followUpSummary(ctx context.Context, doc *domain.Document) {
	if e.dispatcher == nil || !e.autoSummary || doc.EmbeddedChunkCount == 0 {
		return
	}
	_, err := e.dispatcher.Submit(ctx, &domain.Event{
		Payload: &domain.SummaryPayload{DocumentID: doc.ID},
	})
	if err != nil {
		e.log.Warn().Stringer("document_id", doc.ID).Err(err).Msg("auto summary submission failed")
	}
}

// followUpClassification bootstraps a label for documents that have never
// been classified. Re-summarising a document with existing history, whether
// inferred or manually overridden, must not enqueue another inference.
func (e *Executor) followUpClassification(ctx context.Context, documentID uuid.UUID) {
	if e.dispatcher == nil || !e.autoClassify {
		return
	}
	classified, err := e.classifier.HasHistory(ctx, documentID)
	if err != nil {
		e.log.Warn().Stringer("document_id", documentID).Err(err).Msg("classification history check failed")
		return
	}
	if classified {
		e.log.Debug().Stringer("document_id", documentID).Msg("classification history exists, skipping auto classification")
		return
	}
	_, err = e.dispatcher.Submit(ctx, &domain.Event{
		Payload: &domain.ClassificationPayload{DocumentID: documentID},
	})
	if err != nil {
		e.log.Warn().Stringer("document_id", documentID).Err(err).Msg("auto classification submission failed")
	}
}

func marshalResult(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal task result: %w", err)
	}
	return raw, nil
}

// Ensure WorkerPool implements the interface.
var _ driving.WorkerService = (*WorkerPool)(nil)

// WorkerPool drains the task queue with a fixed set of workers. Workers
// communicate with the dispatcher only through the queue and the shared
// stores. A task that exceeds its timeout or hits a transient error is
// requeued with exponential backoff up to its retry budget, then failed.
type WorkerPool struct {
	queue    driven.TaskQueue
	events   driven.EventStore
	executor *Executor

	workers      int
	pollInterval time.Duration
	backoffBase  time.Duration
	obs          driven.PipelineObserver

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	log zerolog.Logger
}

// WorkerPoolOption customises the pool.
type WorkerPoolOption func(*WorkerPool)

// WithWorkers sets the worker count.
func WithWorkers(n int) WorkerPoolOption {
	return func(p *WorkerPool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPollInterval sets the idle polling interval.
func WithPollInterval(d time.Duration) WorkerPoolOption {
	return func(p *WorkerPool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithBackoffBase sets the base delay for retry backoff.
func WithBackoffBase(d time.Duration) WorkerPoolOption {
	return func(p *WorkerPool) {
		if d > 0 {
			p.backoffBase = d
		}
	}
}

// WithObserver installs the instrumentation sink.
func WithObserver(obs driven.PipelineObserver) WorkerPoolOption {
	return func(p *WorkerPool) {
		if obs != nil {
			p.obs = obs
		}
	}
}

// NewWorkerPool creates the pool.
func NewWorkerPool(queue driven.TaskQueue, events driven.EventStore, executor *Executor, log zerolog.Logger, opts ...WorkerPoolOption) *WorkerPool {
	p := &WorkerPool{
		queue:        queue,
		events:       events,
		executor:     executor,
		workers:      defaultWorkers,
		pollInterval: defaultPollInterval,
		backoffBase:  retryBackoffBase,
		obs:          driven.NopObserver{},
		log:          log.With().Str("component", "workers").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers and returns. Processing continues until Stop.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runLoop(ctx, i)
	}
	p.log.Info().Int("workers", p.workers).Msg("worker pool started")
	return nil
}

// Stop drains in-flight tasks and shuts the pool down.
func (p *WorkerPool) Stop(_ context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info().Msg("worker pool stopped")
	return nil
}

func (p *WorkerPool) runLoop(ctx context.Context, worker int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", worker).Logger()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.queue.Claim(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Error().Err(err).Msg("claim failed")
			}
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}
		p.handle(ctx, log, task)
	}
}

// handle runs one claimed task under its timeout and settles its outcome.
func (p *WorkerPool) handle(ctx context.Context, log zerolog.Logger, task *domain.Task) {
	p.obs.TaskStarted()
	started := time.Now()

	event, err := p.events.Get(ctx, task.EventID)
	if err != nil {
		log.Error().Stringer("task_id", task.ID).Err(err).Msg("event missing for task")
		p.settle(ctx, log, task, started, fmt.Errorf("load event: %w", err))
		return
	}

	settings := task.Settings.Normalised()
	taskCtx, cancel := context.WithTimeout(ctx, settings.TaskTimeout)
	result, err := p.executor.Execute(taskCtx, event, settings)
	cancel()

	if err != nil {
		p.settle(ctx, log, task, started, err)
		return
	}
	if err := p.queue.Complete(ctx, task.ID, result); err != nil {
		log.Error().Stringer("task_id", task.ID).Err(err).Msg("complete failed")
		return
	}
	p.obs.TaskSettled(task.Type, domain.TaskSucceeded, time.Since(started))
	log.Info().
		Stringer("task_id", task.ID).
		Str("event_type", string(task.Type)).
		Int("attempt", task.Attempts).
		Msg("task succeeded")
}

// settle decides between retry and final failure. Validation, transition,
// not-found, and unsupported-type errors are permanent; everything else is
// retried until the attempt budget runs out.
func (p *WorkerPool) settle(ctx context.Context, log zerolog.Logger, task *domain.Task, started time.Time, cause error) {
	if permanentError(cause) || task.Attempts >= task.MaxAttempts {
		if err := p.queue.Fail(ctx, task.ID, cause.Error()); err != nil {
			log.Error().Stringer("task_id", task.ID).Err(err).Msg("fail failed")
			return
		}
		p.obs.TaskSettled(task.Type, domain.TaskFailed, time.Since(started))
		log.Warn().
			Stringer("task_id", task.ID).
			Int("attempts", task.Attempts).
			Err(cause).
			Msg("task failed")
		return
	}

	delay := p.backoffBase << (task.Attempts - 1)
	if err := p.queue.Requeue(ctx, task.ID, delay, cause.Error()); err != nil {
		log.Error().Stringer("task_id", task.ID).Err(err).Msg("requeue failed")
		return
	}
	p.obs.TaskSettled(task.Type, domain.TaskPending, time.Since(started))
	log.Warn().
		Stringer("task_id", task.ID).
		Int("attempt", task.Attempts).
		Dur("retry_in", delay).
		Err(cause).
		Msg("task requeued")
}

func permanentError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrUnsupportedType) ||
		errors.Is(err, domain.ErrEmbeddingUnavailable) ||
		errors.Is(err, domain.ErrLLMUnavailable)
}
