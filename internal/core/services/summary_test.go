package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

func TestSummarizer_SummarizeParsesStructuredResponse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)
	env.seedChunk(t, doc, 0, "The agreement runs five years.", []float32{1, 0, 0})
	env.seedChunk(t, doc, 1, "Either party may terminate with notice.", []float32{0, 1, 0})

	env.llm.response = "```json\n{\"summary\": \"Five year agreement with termination rights.\", " +
		"\"bullet_points\": [\"five year term\", \"termination on notice\"], " +
		"\"next_steps\": [\"review clause 7\"]}\n```"

	summary, err := env.summarizer.Summarize(ctx, &domain.SummaryPayload{DocumentID: doc.ID}, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, doc.ID, summary.DocumentID)
	assert.Equal(t, "Five year agreement with termination rights.", summary.Summary)
	assert.Equal(t, []string{"five year term", "termination on notice"}, summary.BulletPoints)
	assert.Equal(t, []string{"review clause 7"}, summary.NextSteps)
	assert.Equal(t, 2, summary.SourceChunkCount)
	assert.Equal(t, env.llm.model, summary.Model)

	// Chunks were presented in index order.
	require.Len(t, env.llm.prompts, 1)
	first := env.llm.prompts[0]
	assert.Less(t, indexOf(t, first, "The agreement runs five years."), indexOf(t, first, "Either party may terminate"))

	stored, err := env.summaries.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, summary.Summary, stored.Summary)
}

func TestSummarizer_RerunReplacesPriorSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)
	env.seedChunk(t, doc, 0, "Content.", []float32{1, 0, 0})

	env.llm.response = `{"summary": "first pass", "bullet_points": []}`
	_, err := env.summarizer.Summarize(ctx, &domain.SummaryPayload{DocumentID: doc.ID}, domain.DefaultSettings())
	require.NoError(t, err)

	env.llm.response = `{"summary": "second pass", "bullet_points": []}`
	_, err = env.summarizer.Summarize(ctx, &domain.SummaryPayload{DocumentID: doc.ID}, domain.DefaultSettings())
	require.NoError(t, err)

	stored, err := env.summaries.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "second pass", stored.Summary)
}

func TestSummarizer_MalformedJSONFallsBackToRawText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)
	env.seedChunk(t, doc, 0, "Content.", []float32{1, 0, 0})
	env.llm.response = "A short plain-text summary without JSON."

	summary, err := env.summarizer.Summarize(ctx, &domain.SummaryPayload{DocumentID: doc.ID}, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, "A short plain-text summary without JSON.", summary.Summary)
	assert.Empty(t, summary.BulletPoints)
}

func TestSummarizer_RejectsDeletedDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := env.seedDocument(t, domain.StatusDeleted)

	_, err := env.summarizer.Summarize(context.Background(), &domain.SummaryPayload{DocumentID: doc.ID}, domain.DefaultSettings())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSummarizer_FailsWithoutChunks(t *testing.T) {
	env := newTestEnv(t)
	doc := env.seedDocument(t, domain.StatusReady)

	_, err := env.summarizer.Summarize(context.Background(), &domain.SummaryPayload{DocumentID: doc.ID}, domain.DefaultSettings())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSummarizer_ChunksLimitBoundsInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)
	env.seedChunk(t, doc, 0, "First.", []float32{1, 0, 0})
	env.seedChunk(t, doc, 1, "Second.", []float32{0, 1, 0})
	env.llm.response = `{"summary": "bounded"}`

	summary, err := env.summarizer.Summarize(ctx, &domain.SummaryPayload{DocumentID: doc.ID, ChunksLimit: 1}, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.SourceChunkCount)
	assert.NotContains(t, env.llm.prompts[0], "Second.")
}

func TestSummarizer_FailsForUnknownDocument(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.summarizer.Summarize(context.Background(), &domain.SummaryPayload{DocumentID: uuid.New()}, domain.DefaultSettings())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "expected %q in prompt", needle)
	return idx
}
