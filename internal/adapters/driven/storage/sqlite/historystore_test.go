package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

func TestSummaryStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	summaries := store.SummaryStore()
	ctx := context.Background()

	doc := saveTestDocument(t, store, domain.StatusReady, time.Now().UTC())
	summary := &domain.Summary{
		DocumentID:       doc.ID,
		Summary:          "A services agreement with a 30 day notice period.",
		BulletPoints:     []string{"30 day notice", "net 45 payment terms"},
		NextSteps:        []string{"confirm renewal date"},
		SourceChunkCount: 6,
		Model:            "llama3",
		GeneratedAt:      time.Now().UTC(),
	}
	require.NoError(t, summaries.Save(ctx, summary))

	got, err := summaries.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.DocumentID)
	assert.Equal(t, summary.Summary, got.Summary)
	assert.Equal(t, summary.BulletPoints, got.BulletPoints)
	assert.Equal(t, summary.NextSteps, got.NextSteps)
	assert.Equal(t, 6, got.SourceChunkCount)
	assert.Equal(t, "llama3", got.Model)
}

func TestSummaryStore_SaveReplacesPrior(t *testing.T) {
	store := newTestStore(t)
	summaries := store.SummaryStore()
	ctx := context.Background()

	doc := saveTestDocument(t, store, domain.StatusReady, time.Now().UTC())
	first := &domain.Summary{
		DocumentID:  doc.ID,
		Summary:     "first pass",
		GeneratedAt: time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, summaries.Save(ctx, first))

	second := &domain.Summary{
		DocumentID:       doc.ID,
		Summary:          "second pass",
		BulletPoints:     []string{"updated"},
		SourceChunkCount: 2,
		GeneratedAt:      time.Now().UTC(),
	}
	require.NoError(t, summaries.Save(ctx, second))

	got, err := summaries.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "second pass", got.Summary)
	assert.Equal(t, []string{"updated"}, got.BulletPoints)
	assert.Nil(t, got.NextSteps)
}

func TestSummaryStore_DeleteAndGetUnknown(t *testing.T) {
	store := newTestStore(t)
	summaries := store.SummaryStore()
	ctx := context.Background()

	doc := saveTestDocument(t, store, domain.StatusReady, time.Now().UTC())
	require.NoError(t, summaries.Save(ctx, &domain.Summary{
		DocumentID:  doc.ID,
		Summary:     "short lived",
		GeneratedAt: time.Now().UTC(),
	}))

	require.NoError(t, summaries.Delete(ctx, doc.ID))

	_, err := summaries.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClassificationStore_AppendAndHistory(t *testing.T) {
	store := newTestStore(t)
	classifications := store.ClassificationStore()
	ctx := context.Background()

	doc := saveTestDocument(t, store, domain.StatusReady, time.Now().UTC())
	base := time.Now().UTC().Add(-time.Hour)

	inferred := &domain.ClassificationRecord{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		LabelName:  "invoice",
		Confidence: 0.82,
		Source:     domain.SourceInference,
		Scores: []domain.LabelScore{
			{Label: "invoice", Score: 0.82},
			{Label: "contract", Score: 0.11},
		},
		ClassifierVersion: "zero-shot-v1",
		CreatedAt:         base,
	}
	require.NoError(t, classifications.Append(ctx, inferred))

	override := &domain.ClassificationRecord{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		LabelName:  "contract",
		Confidence: 1.0,
		Source:     domain.SourceOverride,
		Notes:      "reviewed by legal",
		CreatedAt:  base.Add(time.Minute),
	}
	require.NoError(t, classifications.Append(ctx, override))

	latest, err := classifications.Latest(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "contract", latest.LabelName)
	assert.Equal(t, domain.SourceOverride, latest.Source)
	assert.Equal(t, "reviewed by legal", latest.Notes)

	history, err := classifications.ListByDocument(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, override.ID, history[0].ID)
	assert.Equal(t, inferred.ID, history[1].ID)
	assert.Equal(t, inferred.Scores, history[1].Scores)

	limited, err := classifications.ListByDocument(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, override.ID, limited[0].ID)
}

func TestClassificationStore_DuplicateIDIsRejected(t *testing.T) {
	store := newTestStore(t)
	classifications := store.ClassificationStore()
	ctx := context.Background()

	doc := saveTestDocument(t, store, domain.StatusReady, time.Now().UTC())
	record := &domain.ClassificationRecord{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		LabelName:  "invoice",
		Source:     domain.SourceInference,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, classifications.Append(ctx, record))

	err := classifications.Append(ctx, record)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestClassificationStore_LatestUnknownDocument(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ClassificationStore().Latest(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLabelStore_SaveListRoundTrip(t *testing.T) {
	store := newTestStore(t)
	labels := store.LabelStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	finance := domain.Label{
		ID:        uuid.New(),
		Name:      "finance",
		Kind:      domain.KindDomain,
		CreatedAt: base.Add(time.Minute),
	}
	invoice := domain.Label{
		ID:        uuid.New(),
		Name:      "invoice",
		Kind:      domain.KindLabel,
		ParentID:  finance.ID,
		CreatedAt: base,
	}
	// Save the leaf first; List must still yield domains before leaves.
	require.NoError(t, labels.Save(ctx, &invoice))
	require.NoError(t, labels.Save(ctx, &finance))

	listed, err := labels.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, finance.ID, listed[0].ID)
	assert.Equal(t, domain.KindDomain, listed[0].Kind)
	assert.Equal(t, uuid.Nil, listed[0].ParentID)
	assert.Equal(t, invoice.ID, listed[1].ID)
	assert.Equal(t, finance.ID, listed[1].ParentID)
}

func TestLabelStore_SaveUpdatesNameAndDescription(t *testing.T) {
	store := newTestStore(t)
	labels := store.LabelStore()
	ctx := context.Background()

	label := domain.Label{
		ID:        uuid.New(),
		Name:      "invocie",
		Kind:      domain.KindLabel,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, labels.Save(ctx, &label))

	label.Name = "invoice"
	label.Description = "billing documents"
	require.NoError(t, labels.Save(ctx, &label))

	listed, err := labels.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "invoice", listed[0].Name)
	assert.Equal(t, "billing documents", listed[0].Description)
}

func TestLabelStore_DeleteMany(t *testing.T) {
	store := newTestStore(t)
	labels := store.LabelStore()
	ctx := context.Background()

	var ids []uuid.UUID
	for _, name := range []string{"finance", "legal", "hr"} {
		label := domain.Label{
			ID:        uuid.New(),
			Name:      name,
			Kind:      domain.KindDomain,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, labels.Save(ctx, &label))
		ids = append(ids, label.ID)
	}

	require.NoError(t, labels.Delete(ctx, ids[:2]))

	listed, err := labels.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "hr", listed[0].Name)

	// Deleting nothing is a no-op.
	require.NoError(t, labels.Delete(ctx, nil))
}

func TestConfigStore_LoadDefaultsWhenEmpty(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.ConfigStore().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), settings)
}

func TestConfigStore_SaveAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	config := store.ConfigStore()
	ctx := context.Background()

	settings := domain.DefaultSettings()
	settings.QATopK = 9
	settings.ChunkSizeTokens = 256
	settings.TaskTimeout = 2 * time.Minute
	require.NoError(t, config.Save(ctx, settings))

	got, err := config.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings, got)

	// A second save replaces the single settings row.
	settings.MaxAttempts = 7
	require.NoError(t, config.Save(ctx, settings))

	got, err = config.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got.MaxAttempts)
}

func TestConfigStore_LoadNormalisesStoredZeroValues(t *testing.T) {
	store := newTestStore(t)
	config := store.ConfigStore()
	ctx := context.Background()

	require.NoError(t, config.Save(ctx, domain.Settings{QATopK: 3}))

	got, err := config.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.QATopK)
	assert.Equal(t, domain.DefaultSettings().ChunkSizeTokens, got.ChunkSizeTokens)
	assert.Equal(t, domain.DefaultSettings().TaskTimeout, got.TaskTimeout)
}
