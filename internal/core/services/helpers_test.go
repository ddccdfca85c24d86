package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/adapters/driven/storage/memory"
	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
	"github.com/doculens-ai/doculens/internal/extractors"
)

// --- Shared test doubles for the service layer ---

var (
	_ driven.EmbeddingService = (*stubEmbedder)(nil)
	_ driven.LLMService       = (*stubLLM)(nil)
	_ driven.Chunker          = (*stubChunker)(nil)
)

// stubEmbedder implements driven.EmbeddingService with deterministic
// vectors so retrieval ordering is controllable from tests.
type stubEmbedder struct {
	mu         sync.Mutex
	model      string
	vectors    map[string][]float32
	batchErr   error
	embedErr   error
	failTexts  map[string]bool
	embedCalls int
	failFirst  int // first N Embed calls fail with embedErr
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		model:     "stub-embed",
		vectors:   make(map[string][]float32),
		failTexts: make(map[string]bool),
	}
}

func (s *stubEmbedder) vectorFor(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		return v
	}
	return []float32{1, 0, 0}
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedCalls++
	if s.embedCalls <= s.failFirst {
		return nil, errors.New("embedder warming up")
	}
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	if s.failTexts[text] {
		return nil, errors.New("unembeddable text")
	}
	return s.vectorFor(text), nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if s.failTexts[text] {
			return nil, errors.New("unembeddable text in batch")
		}
		out[i] = s.vectorFor(text)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int              { return 3 }
func (s *stubEmbedder) ModelName() string            { return s.model }
func (s *stubEmbedder) Ping(_ context.Context) error { return nil }
func (s *stubEmbedder) Close() error                 { return nil }

// stubLLM implements driven.LLMService with scripted responses.
type stubLLM struct {
	mu          sync.Mutex
	model       string
	response    string
	generateErr error
	scores      []domain.LabelScore
	classifyErr error
	prompts     []string
}

func newStubLLM() *stubLLM {
	return &stubLLM{model: "stub-llm"}
}

func (s *stubLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.generateErr != nil {
		return "", s.generateErr
	}
	return s.response, nil
}

func (s *stubLLM) ModelName() string            { return s.model }
func (s *stubLLM) Ping(_ context.Context) error { return nil }
func (s *stubLLM) Close() error                 { return nil }

func (s *stubLLM) Classify(_ context.Context, text string, labels []string) ([]domain.LabelScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, text)
	if s.classifyErr != nil {
		return nil, s.classifyErr
	}
	if s.scores != nil {
		return s.scores, nil
	}
	out := make([]domain.LabelScore, len(labels))
	for i, label := range labels {
		out[i] = domain.LabelScore{Label: label, Score: 0.5}
	}
	return out, nil
}

// stubChunker splits on blank lines with one word per token.
type stubChunker struct {
	err error
}

func (c *stubChunker) Chunk(_ context.Context, doc *domain.Document, text string, _ domain.Settings) ([]domain.Chunk, error) {
	if c.err != nil {
		return nil, c.err
	}
	var chunks []domain.Chunk
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      len(chunks),
			Content:    part,
			TokenCount: len(strings.Fields(part)),
		})
	}
	return chunks, nil
}

// testEnv wires the full service graph over the in-memory stores.
type testEnv struct {
	events          *memory.EventStore
	queue           *memory.TaskQueue
	docs            *memory.DocumentStore
	config          *memory.ConfigStore
	summaries       *memory.SummaryStore
	classifications *memory.ClassificationStore
	labels          *memory.LabelStore

	embedder *stubEmbedder
	llm      *stubLLM

	lifecycle  *Lifecycle
	ingestor   *Ingestor
	retriever  *Retriever
	qa         *QAEngine
	summarizer *Summarizer
	classifier *Classifier
	dispatcher *Dispatcher
	executor   *Executor
	manager    *LabelManager
	insights   *Insights
	reader     *Reader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	env := &testEnv{
		events:          memory.NewEventStore(),
		queue:           memory.NewTaskQueue(),
		docs:            memory.NewDocumentStore(),
		config:          memory.NewConfigStore(),
		summaries:       memory.NewSummaryStore(),
		classifications: memory.NewClassificationStore(),
		labels:          memory.NewLabelStore(),
		embedder:        newStubEmbedder(),
		llm:             newStubLLM(),
	}

	env.lifecycle = NewLifecycle(env.docs, env.summaries, log)
	env.ingestor = NewIngestor(env.docs, extractors.Default(), &stubChunker{}, env.embedder, env.lifecycle, nil, log)
	env.ingestor.backoff = time.Millisecond
	env.retriever = NewRetriever(env.embedder, env.docs, env.docs, log)
	env.qa = NewQAEngine(env.retriever, env.llm, log)
	env.summarizer = NewSummarizer(env.docs, env.summaries, env.llm, log)
	env.classifier = NewClassifier(env.docs, env.summaries, env.classifications, env.labels, env.llm, log)
	env.dispatcher = NewDispatcher(env.events, env.queue, env.docs, env.config, env.lifecycle, log)
	env.executor = NewExecutor(env.ingestor, env.retriever, env.qa, env.summarizer, env.classifier, env.lifecycle, log)
	env.manager = NewLabelManager(env.labels, log)
	env.insights = NewInsights(env.docs, env.queue, env.events, env.summaries, env.config, log)
	env.reader = NewReader(env.docs, env.events, env.queue, env.summaries, env.classifications, env.config, log)
	return env
}

// seedDocument stores a document directly, bypassing the dispatcher.
func (env *testEnv) seedDocument(t *testing.T, status domain.DocumentStatus) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:         uuid.New(),
		Filename:   "contract.pdf",
		DocType:    "pdf",
		UploadedAt: time.Now().UTC(),
		Status:     status,
		SourcePath: "/tmp/contract.pdf",
	}
	require.NoError(t, env.docs.SaveDocument(context.Background(), doc))
	return doc
}

// seedChunk stores an embedded chunk for a document.
func (env *testEnv) seedChunk(t *testing.T, doc *domain.Document, index int, content string, embedding []float32) *domain.Chunk {
	t.Helper()
	chunk := &domain.Chunk{
		ID:             uuid.New(),
		DocumentID:     doc.ID,
		Index:          index,
		Content:        content,
		TokenCount:     len(strings.Fields(content)),
		Embedding:      embedding,
		EmbeddingModel: env.embedder.model,
		CreatedAt:      time.Now().UTC().Add(time.Duration(index) * time.Millisecond),
	}
	require.NoError(t, env.docs.SaveChunk(context.Background(), chunk))
	return chunk
}

// writeUploadFile creates a real file for the upload pipeline to ingest.
func writeUploadFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
