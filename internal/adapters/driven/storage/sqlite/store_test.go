package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// newTestStore creates a SQLite store in a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func newStoredEvent(submitted time.Time) *domain.Event {
	return &domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventQAQuery,
		SubmittedAt: submitted,
		Payload:     &domain.QAQueryPayload{Query: "What is the notice period?"},
		TaskID:      uuid.New(),
	}
}

func newStoredTask(created time.Time) *domain.Task {
	return &domain.Task{
		ID:          uuid.New(),
		EventID:     uuid.New(),
		Type:        domain.EventQAQuery,
		Status:      domain.TaskPending,
		MaxAttempts: 3,
		NotBefore:   created,
		Settings:    domain.DefaultSettings(),
		CreatedAt:   created,
	}
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	assert.Equal(t, filepath.Join(tempDir, "doculens.db"), store.Path())
	assert.FileExists(t, store.Path())
	assert.NoError(t, store.db.Ping())
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening the same database must not re-run applied migrations.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	var version int
	row := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations")
	require.NoError(t, row.Scan(&version))
	assert.Equal(t, 1, version)
}

// ==================== Event Store Tests ====================

func TestEventStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	events := store.EventStore()
	ctx := context.Background()

	event := newStoredEvent(time.Now().UTC())
	require.NoError(t, events.Save(ctx, event))

	got, err := events.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, domain.EventQAQuery, got.Type)
	assert.Equal(t, event.TaskID, got.TaskID)
	assert.WithinDuration(t, event.SubmittedAt, got.SubmittedAt, time.Second)

	payload, ok := got.Payload.(*domain.QAQueryPayload)
	require.True(t, ok)
	assert.Equal(t, "What is the notice period?", payload.Query)
}

func TestEventStore_GetUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.EventStore().Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventStore_DuplicateIDReturnsAlreadyExists(t *testing.T) {
	store := newTestStore(t)
	events := store.EventStore()
	ctx := context.Background()

	event := newStoredEvent(time.Now().UTC())
	require.NoError(t, events.Save(ctx, event))

	dup := newStoredEvent(time.Now().UTC())
	dup.ID = event.ID
	err := events.Save(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// The original record is untouched.
	got, err := events.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.TaskID, got.TaskID)
}

func TestEventStore_ListRecentNewestFirst(t *testing.T) {
	store := newTestStore(t)
	events := store.EventStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var saved []*domain.Event
	for i := 0; i < 3; i++ {
		event := newStoredEvent(base.Add(time.Duration(i) * time.Minute))
		require.NoError(t, events.Save(ctx, event))
		saved = append(saved, event)
	}

	listed, err := events.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, saved[2].ID, listed[0].ID)
	assert.Equal(t, saved[0].ID, listed[2].ID)

	limited, err := events.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestEventStore_ListByType(t *testing.T) {
	store := newTestStore(t)
	events := store.EventStore()
	ctx := context.Background()

	qa := newStoredEvent(time.Now().UTC())
	require.NoError(t, events.Save(ctx, qa))

	archive := &domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventDocumentArchived,
		SubmittedAt: time.Now().UTC(),
		Payload:     &domain.ArchivePayload{DocumentID: uuid.New()},
		TaskID:      uuid.New(),
	}
	require.NoError(t, events.Save(ctx, archive))

	listed, err := events.ListByType(ctx, domain.EventDocumentArchived, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, archive.ID, listed[0].ID)
}

// ==================== Task Queue Tests ====================

func TestTaskQueue_ClaimOldestDueFirst(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	older := newStoredTask(base)
	newer := newStoredTask(base.Add(time.Minute))
	require.NoError(t, queue.Enqueue(ctx, newer))
	require.NoError(t, queue.Enqueue(ctx, older))

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, older.ID, claimed.ID)
	assert.Equal(t, domain.TaskRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)
	require.NotNil(t, claimed.StartedAt)

	second, err := queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, second.ID)

	// Nothing pending remains.
	_, err = queue.Claim(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskQueue_ClaimHonoursNotBefore(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	task := newStoredTask(time.Now().UTC())
	task.NotBefore = time.Now().UTC().Add(time.Hour)
	require.NoError(t, queue.Enqueue(ctx, task))

	_, err := queue.Claim(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskQueue_CompleteRecordsResult(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	task := newStoredTask(time.Now().UTC().Add(-time.Minute))
	require.NoError(t, queue.Enqueue(ctx, task))

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)

	result := json.RawMessage(`{"answer":"30 days"}`)
	require.NoError(t, queue.Complete(ctx, claimed.ID, result))

	got, err := queue.Get(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSucceeded, got.Status)
	assert.JSONEq(t, string(result), string(got.Result))
	assert.Empty(t, got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.Terminal())
}

func TestTaskQueue_RequeueMakesTaskClaimableAgain(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	task := newStoredTask(time.Now().UTC().Add(-time.Minute))
	require.NoError(t, queue.Enqueue(ctx, task))

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, queue.Requeue(ctx, claimed.ID, 0, "provider timeout"))

	got, err := queue.Get(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, got.Status)
	assert.Equal(t, "provider timeout", got.Error)
	assert.Nil(t, got.StartedAt)

	reclaimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, claimed.ID, reclaimed.ID)
	assert.Equal(t, 2, reclaimed.Attempts)
}

func TestTaskQueue_RequeueWithDelayIsNotClaimable(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	task := newStoredTask(time.Now().UTC().Add(-time.Minute))
	require.NoError(t, queue.Enqueue(ctx, task))

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Requeue(ctx, claimed.ID, time.Hour, "transient"))

	_, err = queue.Claim(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskQueue_FailRecordsError(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	task := newStoredTask(time.Now().UTC().Add(-time.Minute))
	require.NoError(t, queue.Enqueue(ctx, task))

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Fail(ctx, claimed.ID, "retry budget exhausted"))

	got, err := queue.Get(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, got.Status)
	assert.Equal(t, "retry budget exhausted", got.Error)
	require.NotNil(t, got.FinishedAt)
}

func TestTaskQueue_CompleteUnknownTask(t *testing.T) {
	store := newTestStore(t)

	err := store.TaskQueue().Complete(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskQueue_EnqueueDuplicateEventIsNoOp(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	task := newStoredTask(time.Now().UTC().Add(-time.Minute))
	require.NoError(t, queue.Enqueue(ctx, task))

	dup := newStoredTask(time.Now().UTC())
	dup.EventID = task.EventID
	require.NoError(t, queue.Enqueue(ctx, dup))

	got, err := queue.GetByEvent(ctx, task.EventID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	counts, err := queue.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.TaskPending])
}

func TestTaskQueue_GetByEventUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.TaskQueue().GetByEvent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskQueue_SettingsSnapshotSurvivesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	task := newStoredTask(time.Now().UTC().Add(-time.Minute))
	task.Settings.MaxAttempts = 7
	task.Settings.QATopK = 9
	require.NoError(t, queue.Enqueue(ctx, task))

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, claimed.Settings.MaxAttempts)
	assert.Equal(t, 9, claimed.Settings.QATopK)
}

func TestTaskQueue_CountByStatus(t *testing.T) {
	store := newTestStore(t)
	queue := store.TaskQueue()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Enqueue(ctx, newStoredTask(base.Add(time.Duration(i)*time.Second))))
	}

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Complete(ctx, claimed.ID, nil))

	claimed, err = queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Fail(ctx, claimed.ID, "boom"))

	counts, err := queue.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.TaskPending])
	assert.Equal(t, 1, counts[domain.TaskSucceeded])
	assert.Equal(t, 1, counts[domain.TaskFailed])
}
