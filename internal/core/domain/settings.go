package domain

import "time"

// Settings is the runtime configuration surface consumed by the core.
// Values are injected by the config adapter, never hard-coded, and are
// snapshotted into each task at submission time so a change cannot affect
// in-flight work.
type Settings struct {
	SummaryChunkLimit int           `toml:"summary_chunk_limit" json:"summary_chunk_limit"`
	QATopK            int           `toml:"qa_top_k" json:"qa_top_k"`
	SearchResultLimit int           `toml:"search_result_limit" json:"search_result_limit"`
	ChunkPreviewLimit int           `toml:"chunk_preview_limit" json:"chunk_preview_limit"`
	EmbeddingModel    string        `toml:"embedding_model" json:"embedding_model"`
	ChunkSizeTokens   int           `toml:"chunk_size_tokens" json:"chunk_size_tokens"`
	ChunkOverlap      int           `toml:"chunk_overlap" json:"chunk_overlap"`
	EmbedBatchSize    int           `toml:"embed_batch_size" json:"embed_batch_size"`
	MaxAttempts       int           `toml:"max_attempts" json:"max_attempts"`
	TaskTimeout       time.Duration `toml:"task_timeout" json:"task_timeout"`
}

// DefaultSettings mirrors the defaults the operations console expects.
func DefaultSettings() Settings {
	return Settings{
		SummaryChunkLimit: 12,
		QATopK:            5,
		SearchResultLimit: 10,
		ChunkPreviewLimit: 25,
		EmbeddingModel:    "nomic-embed-text",
		ChunkSizeTokens:   512,
		ChunkOverlap:      64,
		EmbedBatchSize:    16,
		MaxAttempts:       3,
		TaskTimeout:       5 * time.Minute,
	}
}

// Normalised returns a copy with zero values replaced by defaults.
func (s Settings) Normalised() Settings {
	def := DefaultSettings()
	if s.SummaryChunkLimit <= 0 {
		s.SummaryChunkLimit = def.SummaryChunkLimit
	}
	if s.QATopK <= 0 {
		s.QATopK = def.QATopK
	}
	if s.SearchResultLimit <= 0 {
		s.SearchResultLimit = def.SearchResultLimit
	}
	if s.ChunkPreviewLimit <= 0 {
		s.ChunkPreviewLimit = def.ChunkPreviewLimit
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = def.EmbeddingModel
	}
	if s.ChunkSizeTokens <= 0 {
		s.ChunkSizeTokens = def.ChunkSizeTokens
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSizeTokens {
		s.ChunkOverlap = s.ChunkSizeTokens / 8
	}
	if s.EmbedBatchSize <= 0 {
		s.EmbedBatchSize = def.EmbedBatchSize
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = def.MaxAttempts
	}
	if s.TaskTimeout <= 0 {
		s.TaskTimeout = def.TaskTimeout
	}
	return s
}
