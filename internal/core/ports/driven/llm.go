package driven

import (
	"context"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

// LLMService provides generative model operations for answer synthesis,
// summarization and zero-shot classification.
//
// Implementations include:
//   - Ollama (local models)
//   - OpenAI (GPT-4 family)
type LLMService interface {
	// Generate produces a text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Classify scores a text against candidate labels and returns them
	// ranked by descending score.
	Classify(ctx context.Context, text string, labels []string) ([]domain.LabelScore, error)

	// ModelName returns the model identifier in use.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// System is an optional system prompt.
	System string
}
