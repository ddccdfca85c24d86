package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// eventStore implements driven.EventStore.
type eventStore struct {
	store *Store
}

var _ driven.EventStore = (*eventStore)(nil)

// Save inserts a new event. Duplicate ids surface as ErrAlreadyExists so
// the dispatcher can return the original receipt.
func (s *eventStore) Save(ctx context.Context, event *domain.Event) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO events (id, event_type, submitted_at, payload, task_id)
		VALUES (?, ?, ?, ?, ?)
	`, event.ID.String(), string(event.Type), event.SubmittedAt.UTC(), string(payloadJSON), event.TaskID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("saving event: %w", err)
	}
	return nil
}

// Get retrieves an event by ID.
func (s *eventStore) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, event_type, submitted_at, payload, task_id
		FROM events WHERE id = ?
	`, id.String())
	return scanEvent(row)
}

// ListRecent returns events newest-first.
func (s *eventStore) ListRecent(ctx context.Context, limit int) ([]domain.Event, error) {
	return s.list(ctx, `
		SELECT id, event_type, submitted_at, payload, task_id
		FROM events ORDER BY submitted_at DESC, id LIMIT ?
	`, limitOrAll(limit))
}

// ListByType returns events of one type newest-first.
func (s *eventStore) ListByType(ctx context.Context, t domain.EventType, limit int) ([]domain.Event, error) {
	return s.list(ctx, `
		SELECT id, event_type, submitted_at, payload, task_id
		FROM events WHERE event_type = ? ORDER BY submitted_at DESC, id LIMIT ?
	`, string(t), limitOrAll(limit))
}

func (s *eventStore) list(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var id, eventType, payloadJSON, taskID string
	if err := row.Scan(&id, &eventType, &event.SubmittedAt, &payloadJSON, &taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	var err error
	if event.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing event id: %w", err)
	}
	if event.TaskID, err = uuid.Parse(taskID); err != nil {
		return nil, fmt.Errorf("parsing task id: %w", err)
	}
	event.Type = domain.EventType(eventType)
	if event.Payload, err = domain.ParsePayload(event.Type, []byte(payloadJSON)); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	return &event, nil
}

// isUniqueViolation reports whether the error is a primary key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
