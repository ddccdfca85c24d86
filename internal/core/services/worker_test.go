package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

func newTestPool(env *testEnv) *WorkerPool {
	return NewWorkerPool(env.queue, env.events, env.executor, zerolog.Nop(),
		WithWorkers(2),
		WithPollInterval(5*time.Millisecond),
		WithBackoffBase(time.Millisecond),
	)
}

func TestWorkerPool_ProcessesUploadToReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pool := newTestPool(env)

	payload := &domain.UploadPayload{
		Filename: "notes.txt",
		FilePath: writeUploadFile(t, "notes.txt", "First paragraph.\n\nSecond paragraph."),
		DocType:  "txt",
	}
	receipt, err := env.dispatcher.Submit(ctx, &domain.Event{Payload: payload})
	require.NoError(t, err)

	require.NoError(t, pool.Start(ctx))
	defer func() { require.NoError(t, pool.Stop(ctx)) }()

	var task *domain.Task
	require.Eventually(t, func() bool {
		got, err := env.queue.GetByEvent(ctx, receipt.EventID)
		if err != nil {
			return false
		}
		task = got
		return got.Status == domain.TaskSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	var result ingestResult
	require.NoError(t, json.Unmarshal(task.Result, &result))
	assert.Equal(t, payload.DocumentID, result.DocumentID)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, domain.StatusReady, result.Status)

	doc, err := env.docs.GetDocument(ctx, payload.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, doc.Status)
}

func TestWorkerPool_FollowUpsChainSummaryAndClassification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedTaxonomy(t, env)
	env.executor.EnableFollowUps(env.dispatcher, true, true)
	env.llm.response = `{"summary": "Two short paragraphs.", "bullet_points": ["first", "second"]}`
	env.llm.scores = []domain.LabelScore{{Label: "invoice", Score: 0.8}, {Label: "contract", Score: 0.1}}
	pool := newTestPool(env)

	payload := &domain.UploadPayload{
		Filename: "notes.txt",
		FilePath: writeUploadFile(t, "notes.txt", "First paragraph.\n\nSecond paragraph."),
		DocType:  "txt",
	}
	_, err := env.dispatcher.Submit(ctx, &domain.Event{Payload: payload})
	require.NoError(t, err)

	require.NoError(t, pool.Start(ctx))
	defer func() { require.NoError(t, pool.Stop(ctx)) }()

	// Ingest triggers a summary, which in turn triggers a classification.
	require.Eventually(t, func() bool {
		_, err := env.summaries.Get(ctx, payload.DocumentID)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "summary never materialised")

	require.Eventually(t, func() bool {
		latest, err := env.classifications.Latest(ctx, payload.DocumentID)
		return err == nil && latest.LabelName == "invoice"
	}, 5*time.Second, 10*time.Millisecond, "classification never materialised")
}

func TestWorkerPool_AutoClassificationSkippedWhenHistoryExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedTaxonomy(t, env)
	env.executor.EnableFollowUps(env.dispatcher, true, true)
	env.llm.response = `{"summary": "A signed contract.", "bullet_points": ["term"]}`
	pool := newTestPool(env)

	doc := env.seedDocument(t, domain.StatusReady)
	env.seedChunk(t, doc, 0, "The notice period is thirty days.", []float32{1, 0, 0})

	// An operator already pinned a label; re-summarising must not
	// enqueue a fresh inference over it.
	override, err := env.classifier.Override(ctx, &domain.ClassificationOverridePayload{
		DocumentID: doc.ID,
		Label:      "contract",
		Confidence: 1,
	})
	require.NoError(t, err)

	receipt, err := env.dispatcher.Submit(ctx, &domain.Event{
		Payload: &domain.SummaryPayload{DocumentID: doc.ID},
	})
	require.NoError(t, err)

	require.NoError(t, pool.Start(ctx))
	defer func() { require.NoError(t, pool.Stop(ctx)) }()

	require.Eventually(t, func() bool {
		task, err := env.queue.GetByEvent(ctx, receipt.EventID)
		return err == nil && task.Status == domain.TaskSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	history, err := env.classifications.ListByDocument(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1, "summary follow-up enqueued a classification over existing history")
	assert.Equal(t, override.ID, history[0].ID)

	latest, err := env.classifications.Latest(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "contract", latest.LabelName)
	assert.Equal(t, domain.SourceOverride, latest.Source)
}

func TestWorkerPool_RetriesTransientProviderFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.embedder.failFirst = 2
	env.llm.response = "ANSWER: nothing indexed\nREASONING: none\nCITATIONS:"
	pool := newTestPool(env)

	receipt, err := env.dispatcher.Submit(ctx, &domain.Event{
		Payload: &domain.QAQueryPayload{Query: "anything"},
	})
	require.NoError(t, err)

	require.NoError(t, pool.Start(ctx))
	defer func() { require.NoError(t, pool.Stop(ctx)) }()

	var task *domain.Task
	require.Eventually(t, func() bool {
		got, err := env.queue.GetByEvent(ctx, receipt.EventID)
		if err != nil {
			return false
		}
		task = got
		return got.Status == domain.TaskSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	// The first two embed calls failed; the third attempt went through.
	assert.Equal(t, 3, task.Attempts)
}

func TestWorkerPool_PermanentErrorFailsWithoutRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady) // no chunks: summarize hits not-found
	pool := newTestPool(env)

	receipt, err := env.dispatcher.Submit(ctx, &domain.Event{
		Payload: &domain.SummaryPayload{DocumentID: doc.ID},
	})
	require.NoError(t, err)

	require.NoError(t, pool.Start(ctx))
	defer func() { require.NoError(t, pool.Stop(ctx)) }()

	var task *domain.Task
	require.Eventually(t, func() bool {
		got, err := env.queue.GetByEvent(ctx, receipt.EventID)
		if err != nil {
			return false
		}
		task = got
		return got.Status == domain.TaskFailed
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, task.Attempts)
	assert.NotEmpty(t, task.Error)
}

func TestWorkerPool_RetryBudgetExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	settings := domain.DefaultSettings()
	settings.MaxAttempts = 2
	require.NoError(t, env.config.Save(ctx, settings))
	env.embedder.embedErr = errors.New("provider permanently down")
	pool := newTestPool(env)

	receipt, err := env.dispatcher.Submit(ctx, &domain.Event{
		Payload: &domain.SearchQueryPayload{Query: "anything"},
	})
	require.NoError(t, err)

	require.NoError(t, pool.Start(ctx))
	defer func() { require.NoError(t, pool.Stop(ctx)) }()

	var task *domain.Task
	require.Eventually(t, func() bool {
		got, err := env.queue.GetByEvent(ctx, receipt.EventID)
		if err != nil {
			return false
		}
		task = got
		return got.Status == domain.TaskFailed
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, task.Attempts)
	assert.Contains(t, task.Error, "provider")
}

func TestWorkerPool_StartAndStopAreIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pool := newTestPool(env)

	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Stop(ctx))
	require.NoError(t, pool.Stop(ctx))
}

func TestExecutor_LifecycleEventsSettleDirectly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)
	env.seedChunk(t, doc, 0, "chunk", []float32{1, 0, 0})

	archiveEvent := &domain.Event{Payload: &domain.ArchivePayload{DocumentID: doc.ID}}
	receipt, err := env.dispatcher.Submit(ctx, archiveEvent)
	require.NoError(t, err)
	archiveEvent.ID = receipt.EventID

	raw, err := env.executor.Execute(ctx, archiveEvent, domain.DefaultSettings())
	require.NoError(t, err)

	var result lifecycleResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, domain.StatusArchived, result.Status)

	// Restore without a purge verifies chunks and lands back in ready.
	restoreEvent := &domain.Event{Payload: &domain.RestorePayload{DocumentID: doc.ID}}
	_, err = env.dispatcher.Submit(ctx, restoreEvent)
	require.NoError(t, err)

	raw, err = env.executor.Execute(ctx, restoreEvent, domain.DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, domain.StatusReady, result.Status)
}
