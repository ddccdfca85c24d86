package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// Lifecycle owns the document state machine. All status mutations go
// through it; the ingestion pipeline only updates derived counts.
//
// Legal transitions:
//
//	processing -> ready            (pipeline completion)
//	processing -> archived         archive
//	ready      -> archived         archive
//	any        -> deleted          delete
//	archived   -> processing       restore
//	deleted    -> processing       restore
//
// Archive and delete on an already archived/deleted document are no-op
// successes. Restore is the only back-edge and fails when vectors were
// purged and no backing bytes remain.
type Lifecycle struct {
	docs      driven.DocumentStore
	summaries driven.SummaryStore
	locks     *documentLocks
	now       func() time.Time
	log       zerolog.Logger
}

// NewLifecycle creates the lifecycle manager. It owns the per-document
// lock table; the ingestor shares it so transitions and embedding writes
// for the same document never interleave.
func NewLifecycle(docs driven.DocumentStore, summaries driven.SummaryStore, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		docs:      docs,
		summaries: summaries,
		locks:     newDocumentLocks(),
		now:       time.Now,
		log:       log.With().Str("component", "lifecycle").Logger(),
	}
}

// CanApply checks transition legality without mutating anything. The
// dispatcher uses it to reject illegal lifecycle events synchronously.
func (l *Lifecycle) CanApply(ctx context.Context, documentID uuid.UUID, t domain.EventType) error {
	doc, err := l.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	switch t {
	case domain.EventDocumentRestored:
		if doc.Status != domain.StatusArchived && doc.Status != domain.StatusDeleted {
			return &domain.TransitionError{
				DocumentID: documentID,
				From:       doc.Status,
				Op:         "restore",
				Reason:     "restore requires an archived or deleted document",
			}
		}
		if doc.VectorsPurged && doc.SourcePath == "" {
			return &domain.TransitionError{
				DocumentID: documentID,
				From:       doc.Status,
				Op:         "restore",
				Reason:     "vectors were purged and no backing bytes remain",
			}
		}
	case domain.EventDocumentArchived, domain.EventDocumentDeleted:
		// Always legal: archiving or deleting a document that is already
		// archived or deleted is a no-op success.
	}
	return nil
}

// Archive hides a document from active queues, retaining chunks and
// vectors. Already archived or deleted documents are left untouched.
func (l *Lifecycle) Archive(ctx context.Context, documentID uuid.UUID, reason string) (*domain.Document, error) {
	unlock := l.locks.Lock(documentID)
	defer unlock()

	doc, err := l.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.StatusArchived || doc.Status == domain.StatusDeleted {
		return doc, nil
	}

	now := l.now()
	doc.Status = domain.StatusArchived
	doc.ArchivedAt = &now
	if err := l.docs.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("archive document: %w", err)
	}
	l.log.Info().Stringer("document_id", documentID).Str("reason", reason).Msg("document archived")
	return doc, nil
}

// Delete marks a document deleted. With purge, chunks, embeddings and the
// stored summary are hard-removed and the document cannot be restored
// without its backing bytes. Deleting an already deleted document is a
// no-op, though a purge request is still honoured.
func (l *Lifecycle) Delete(ctx context.Context, documentID uuid.UUID, purge bool) (*domain.Document, error) {
	unlock := l.locks.Lock(documentID)
	defer unlock()

	doc, err := l.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	changed := false
	if doc.Status != domain.StatusDeleted {
		now := l.now()
		doc.Status = domain.StatusDeleted
		doc.DeletedAt = &now
		changed = true
	}
	if purge && !doc.VectorsPurged {
		if err := l.docs.DeleteChunks(ctx, documentID); err != nil {
			return nil, fmt.Errorf("purge chunks: %w", err)
		}
		// The summary is derived from the purged chunks; it goes with them.
		if err := l.summaries.Delete(ctx, documentID); err != nil {
			return nil, fmt.Errorf("purge summary: %w", err)
		}
		doc.VectorsPurged = true
		doc.ChunkCount = 0
		doc.EmbeddedChunkCount = 0
		doc.FailedChunkCount = 0
		changed = true
	}
	if changed {
		if err := l.docs.SaveDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("delete document: %w", err)
		}
		l.log.Info().Stringer("document_id", documentID).Bool("purged", doc.VectorsPurged).Msg("document deleted")
	}
	return doc, nil
}

// Restore moves an archived or deleted document back to processing. The
// second return reports whether the caller must reprocess the backing
// bytes because the vectors were purged; otherwise MarkReady finishes the
// restore once counts are verified.
func (l *Lifecycle) Restore(ctx context.Context, documentID uuid.UUID) (*domain.Document, bool, error) {
	unlock := l.locks.Lock(documentID)
	defer unlock()

	doc, err := l.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, false, err
	}
	if doc.Status != domain.StatusArchived && doc.Status != domain.StatusDeleted {
		return nil, false, &domain.TransitionError{
			DocumentID: documentID,
			From:       doc.Status,
			Op:         "restore",
			Reason:     "restore requires an archived or deleted document",
		}
	}
	if doc.VectorsPurged && doc.SourcePath == "" {
		return nil, false, &domain.TransitionError{
			DocumentID: documentID,
			From:       doc.Status,
			Op:         "restore",
			Reason:     "vectors were purged and no backing bytes remain",
		}
	}

	now := l.now()
	doc.Status = domain.StatusProcessing
	doc.RestoredAt = &now
	if err := l.docs.SaveDocument(ctx, doc); err != nil {
		return nil, false, fmt.Errorf("restore document: %w", err)
	}
	l.log.Info().Stringer("document_id", documentID).Bool("reprocess", doc.VectorsPurged).Msg("document restored")
	return doc, doc.VectorsPurged, nil
}

// MarkReady advances a processing document to ready.
func (l *Lifecycle) MarkReady(ctx context.Context, documentID uuid.UUID) (*domain.Document, error) {
	doc, err := l.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusProcessing {
		return nil, &domain.TransitionError{
			DocumentID: documentID,
			From:       doc.Status,
			Op:         "mark_ready",
			Reason:     "only a processing document can become ready",
		}
	}
	doc.Status = domain.StatusReady
	doc.ProcessingError = ""
	if err := l.docs.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("mark document ready: %w", err)
	}
	return doc, nil
}
