package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	configfile "github.com/doculens-ai/doculens/internal/adapters/driven/config/file"
	embedollama "github.com/doculens-ai/doculens/internal/adapters/driven/embedding/ollama"
	embedopenai "github.com/doculens-ai/doculens/internal/adapters/driven/embedding/openai"
	llmollama "github.com/doculens-ai/doculens/internal/adapters/driven/llm/ollama"
	llmopenai "github.com/doculens-ai/doculens/internal/adapters/driven/llm/openai"
	"github.com/doculens-ai/doculens/internal/adapters/driven/storage/memory"
	"github.com/doculens-ai/doculens/internal/adapters/driven/storage/pgvector"
	"github.com/doculens-ai/doculens/internal/adapters/driven/storage/sqlite"
	"github.com/doculens-ai/doculens/internal/adapters/driving/cli"
	"github.com/doculens-ai/doculens/internal/adapters/driving/rest"
	"github.com/doculens-ai/doculens/internal/adapters/driving/watcher"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
	"github.com/doculens-ai/doculens/internal/core/services"
	"github.com/doculens-ai/doculens/internal/extractors"
	"github.com/doculens-ai/doculens/internal/logger"
	"github.com/doculens-ai/doculens/internal/metrics"
	"github.com/doculens-ai/doculens/internal/postprocessors/chunker"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Pretty: envBool("LOG_PRETTY", false),
	})

	rt, err := buildRuntime(log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn().Err(err).Msg("shutdown cleanup failed")
		}
	}()

	cli.SetRuntime(rt)
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}

// stores bundles every driven store the services need, regardless of which
// backend provides it.
type stores struct {
	events          driven.EventStore
	queue           driven.TaskQueue
	docs            driven.DocumentStore
	searcher        driven.VectorSearcher
	summaries       driven.SummaryStore
	classifications driven.ClassificationStore
	labels          driven.LabelStore
	config          driven.ConfigStore
	close           func() error
}

func buildRuntime(log zerolog.Logger) (*cli.Runtime, error) {
	ctx := context.Background()

	st, err := buildStores(ctx, log)
	if err != nil {
		return nil, err
	}

	embedder, llmSvc, err := buildProviders()
	if err != nil {
		st.close()
		return nil, err
	}

	tokenChunker, err := chunker.New()
	if err != nil {
		st.close()
		return nil, fmt.Errorf("initialising chunker: %w", err)
	}

	var limiter *rate.Limiter
	if rps := envInt("EMBED_RPS", 0); rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}

	m := metrics.New()

	lifecycle := services.NewLifecycle(st.docs, st.summaries, log)
	ingestor := services.NewIngestor(st.docs, extractors.Default(), tokenChunker, embedder, lifecycle, limiter, log)
	ingestor.SetObserver(m)

	retriever := services.NewRetriever(embedder, st.searcher, st.docs, log)
	retriever.SetObserver(m)
	qa := services.NewQAEngine(retriever, llmSvc, log)
	qa.SetObserver(m)
	summarizer := services.NewSummarizer(st.docs, st.summaries, llmSvc, log)
	classifier := services.NewClassifier(st.docs, st.summaries, st.classifications, st.labels, llmSvc, log)

	dispatcher := services.NewDispatcher(st.events, st.queue, st.docs, st.config, lifecycle, log)
	dispatcher.SetObserver(m)

	executor := services.NewExecutor(ingestor, retriever, qa, summarizer, classifier, lifecycle, log)
	executor.EnableFollowUps(dispatcher, envBool("AUTO_SUMMARY", true), envBool("AUTO_CLASSIFY", false))

	pool := services.NewWorkerPool(st.queue, st.events, executor, log,
		services.WithWorkers(envInt("DOCULENS_WORKERS", 0)),
		services.WithObserver(m),
	)

	reader := services.NewReader(st.docs, st.events, st.queue, st.summaries, st.classifications, st.config, log)
	insights := services.NewInsights(st.docs, st.queue, st.events, st.summaries, st.config, log)
	labelManager := services.NewLabelManager(st.labels, log)

	server := rest.NewServer(rest.Config{
		ListenAddr: os.Getenv("DOCULENS_LISTEN_ADDR"),
		UploadDir:  os.Getenv("DOCULENS_UPLOAD_DIR"),
	}, rest.Services{
		Dispatcher: dispatcher,
		Documents:  reader,
		History:    reader,
		Labels:     labelManager,
		Insights:   insights,
		Settings:   insights,
	}, m, log)

	rt := &cli.Runtime{
		Server:   server,
		Workers:  pool,
		Insights: insights,
		Log:      log,
	}

	closers := []func() error{st.close, embedder.Close, llmSvc.Close}
	if dir := os.Getenv("DOCULENS_WATCH_DIR"); dir != "" {
		w, err := watcher.NewWatcher(watcher.Config{Dir: dir}, dispatcher, log)
		if err != nil {
			runClosers(closers)
			return nil, fmt.Errorf("initialising watcher: %w", err)
		}
		rt.Watcher = w
	}

	rt.Close = func() error { return runClosers(closers) }
	return rt, nil
}

// buildStores wires the storage backend. SQLite is the default; a Postgres
// URL switches documents, chunks, and vector search to pgvector while the
// rest of the metadata stays in SQLite. DOCULENS_STORE=memory runs fully
// in-memory for development.
func buildStores(ctx context.Context, log zerolog.Logger) (*stores, error) {
	if os.Getenv("DOCULENS_STORE") == "memory" {
		docs := memory.NewDocumentStore()
		return &stores{
			events:          memory.NewEventStore(),
			queue:           memory.NewTaskQueue(),
			docs:            docs,
			searcher:        docs,
			summaries:       memory.NewSummaryStore(),
			classifications: memory.NewClassificationStore(),
			labels:          memory.NewLabelStore(),
			config:          memory.NewConfigStore(),
			close:           func() error { return nil },
		}, nil
	}

	store, err := sqlite.NewStore(os.Getenv("DOCULENS_DATA_DIR"))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	log.Info().Str("path", store.Path()).Msg("sqlite store ready")

	docStore := store.DocumentStore()
	st := &stores{
		events:          store.EventStore(),
		queue:           store.TaskQueue(),
		docs:            docStore,
		searcher:        docStore,
		summaries:       store.SummaryStore(),
		classifications: store.ClassificationStore(),
		labels:          store.LabelStore(),
		config:          store.ConfigStore(),
		close:           store.Close,
	}

	if configDir := os.Getenv("DOCULENS_CONFIG_DIR"); configDir != "" {
		fileConfig, err := configfile.NewConfigStore(configDir)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("opening config store: %w", err)
		}
		st.config = fileConfig
		log.Info().Str("path", fileConfig.Path()).Msg("file config store ready")
	}

	if connStr := os.Getenv("POSTGRES_URL"); connStr != "" {
		pg, err := pgvector.NewStore(ctx, pgvector.Config{
			ConnString: connStr,
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("opening pgvector store: %w", err)
		}
		log.Info().Msg("pgvector store ready")
		st.docs = pg
		st.searcher = pg
		sqliteClose := st.close
		st.close = func() error {
			pg.Close()
			return sqliteClose()
		}
	}
	return st, nil
}

func buildProviders() (driven.EmbeddingService, driven.LLMService, error) {
	var embedder driven.EmbeddingService
	switch os.Getenv("EMBEDDING_PROVIDER") {
	case "openai":
		svc, err := embedopenai.NewEmbeddingService(embedopenai.Config{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		})
		if err != nil {
			return nil, nil, err
		}
		embedder = svc
	default:
		embedder = embedollama.NewEmbeddingService(embedollama.Config{
			BaseURL:    os.Getenv("OLLAMA_BASE_URL"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		})
	}

	var llmSvc driven.LLMService
	switch os.Getenv("LLM_PROVIDER") {
	case "openai":
		svc, err := llmopenai.NewLLMService(llmopenai.Config{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  os.Getenv("LLM_MODEL"),
		})
		if err != nil {
			embedder.Close()
			return nil, nil, err
		}
		llmSvc = svc
	default:
		llmSvc = llmollama.NewLLMService(llmollama.Config{
			BaseURL: os.Getenv("OLLAMA_BASE_URL"),
			Model:   os.Getenv("LLM_MODEL"),
		})
	}
	return embedder, llmSvc, nil
}

func runClosers(closers []func() error) error {
	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
