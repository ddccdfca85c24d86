package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
	"github.com/doculens-ai/doculens/internal/core/ports/driving"
)

// Ensure Dispatcher implements the interface.
var _ driving.EventDispatcher = (*Dispatcher)(nil)

// Dispatcher is the single write entry point. It validates payloads
// synchronously, persists the event, and enqueues exactly one task per
// event. Everything after Submit returns happens asynchronously in the
// worker pool.
type Dispatcher struct {
	events    driven.EventStore
	queue     driven.TaskQueue
	docs      driven.DocumentStore
	config    driven.ConfigStore
	lifecycle *Lifecycle
	obs       driven.PipelineObserver
	now       func() time.Time
	log       zerolog.Logger
}

// NewDispatcher creates the dispatcher.
func NewDispatcher(
	events driven.EventStore,
	queue driven.TaskQueue,
	docs driven.DocumentStore,
	config driven.ConfigStore,
	lifecycle *Lifecycle,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		events:    events,
		queue:     queue,
		docs:      docs,
		config:    config,
		lifecycle: lifecycle,
		obs:       driven.NopObserver{},
		now:       time.Now,
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

// SetObserver installs the instrumentation sink.
func (d *Dispatcher) SetObserver(obs driven.PipelineObserver) {
	if obs != nil {
		d.obs = obs
	}
}

// Submit validates, persists, and enqueues an event. Submission is
// synchronous and fast; the returned receipt lets the caller poll for the
// outcome. Resubmitting an accepted event id returns the original receipt
// without enqueueing new work.
func (d *Dispatcher) Submit(ctx context.Context, event *domain.Event) (*driving.Receipt, error) {
	if event == nil || event.Payload == nil {
		d.obs.EventRejected("validation")
		return nil, domain.NewValidationError(map[string]string{"payload": "missing payload"})
	}
	if event.Type == "" {
		event.Type = event.Payload.EventType()
	}
	if event.Type != event.Payload.EventType() {
		return nil, domain.NewValidationError(map[string]string{
			"event_type": fmt.Sprintf("payload belongs to %q, not %q", event.Payload.EventType(), event.Type),
		})
	}
	if err := event.Payload.Validate(); err != nil {
		d.obs.EventRejected(rejectionReason(err))
		return nil, err
	}
	if err := d.checkDocument(ctx, event); err != nil {
		d.obs.EventRejected(rejectionReason(err))
		return nil, err
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.SubmittedAt = d.now()

	settings, err := d.config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = settings.Normalised()

	// Upload documents get their id at submission time so the record is
	// immediately visible and lockable.
	var newDoc *domain.Document
	if upload, ok := event.Payload.(*domain.UploadPayload); ok {
		if upload.DocumentID == uuid.Nil {
			upload.DocumentID = uuid.New()
		}
		newDoc = &domain.Document{
			ID:         upload.DocumentID,
			Filename:   upload.Filename,
			DocType:    upload.DocType,
			UploadedAt: event.SubmittedAt,
			DueAt:      upload.DueAt,
			Metadata:   upload.Metadata,
			Status:     domain.StatusProcessing,
			SourcePath: upload.FilePath,
		}
	}

	task := &domain.Task{
		ID:          uuid.New(),
		EventID:     event.ID,
		Type:        event.Type,
		Status:      domain.TaskPending,
		MaxAttempts: settings.MaxAttempts,
		Settings:    settings,
		CreatedAt:   event.SubmittedAt,
	}
	event.TaskID = task.ID

	if err := d.events.Save(ctx, event); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return d.existingReceipt(ctx, event.ID)
		}
		return nil, fmt.Errorf("save event: %w", err)
	}

	if newDoc != nil {
		if err := d.docs.SaveDocument(ctx, newDoc); err != nil {
			return nil, fmt.Errorf("create document record: %w", err)
		}
	}

	if err := d.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	d.obs.EventAccepted(event.Type)
	d.log.Info().
		Stringer("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Stringer("task_id", task.ID).
		Msg("event accepted")

	return &driving.Receipt{
		EventID:    event.ID,
		TaskID:     task.ID,
		Status:     task.Status,
		AcceptedAt: event.SubmittedAt,
	}, nil
}

// checkDocument rejects document-scoped events synchronously when the
// document is unknown or the requested lifecycle transition is illegal.
func (d *Dispatcher) checkDocument(ctx context.Context, event *domain.Event) error {
	var documentID uuid.UUID
	switch p := event.Payload.(type) {
	case *domain.SummaryPayload:
		documentID = p.DocumentID
	case *domain.ClassificationPayload:
		documentID = p.DocumentID
	case *domain.ClassificationOverridePayload:
		documentID = p.DocumentID
	case *domain.ArchivePayload:
		documentID = p.DocumentID
	case *domain.DeletePayload:
		documentID = p.DocumentID
	case *domain.RestorePayload:
		documentID = p.DocumentID
	default:
		return nil
	}

	switch event.Type {
	case domain.EventDocumentArchived, domain.EventDocumentDeleted, domain.EventDocumentRestored:
		return d.lifecycle.CanApply(ctx, documentID, event.Type)
	default:
		_, err := d.docs.GetDocument(ctx, documentID)
		return err
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func (d *Dispatcher) existingReceipt(ctx context.Context, eventID uuid.UUID) (*driving.Receipt, error) {
	event, err := d.events.Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load existing event: %w", err)
	}
	task, err := d.queue.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load existing task: %w", err)
	}
	d.log.Debug().Stringer("event_id", eventID).Msg("duplicate submission")
	return &driving.Receipt{
		EventID:    event.ID,
		TaskID:     task.ID,
		Status:     task.Status,
		Duplicate:  true,
		AcceptedAt: event.SubmittedAt,
	}, nil
}
