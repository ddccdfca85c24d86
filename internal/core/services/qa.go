package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

const qaSystemPrompt = `You are a document question-answering assistant.
Answer strictly from the provided passages. Cite passages by copying their
reference tokens verbatim, e.g. [doc:1b4e28ba-2fa1-11d2-883f-0016d3cca427#3].
Never invent references.
Respond in exactly this format:
ANSWER: <the answer>
REASONING: <one short paragraph explaining how the passages support the answer>
CITATIONS: <the reference tokens used, space separated>`

// referenceTokenRe matches citation tokens. Tokens carry the document id,
// never the filename, so the pattern stays closed under arbitrary names.
var referenceTokenRe = regexp.MustCompile(`\[doc:[0-9a-fA-F-]{36}#\d+\]`)

// QAEngine synthesizes grounded answers: retrieve, prompt, parse, and
// cross-check citations against the retrieved set so a hallucinated
// citation is dropped rather than surfaced. Read-only and safe for
// concurrent queries against the same document.
type QAEngine struct {
	retriever *Retriever
	llm       driven.LLMService
	obs       driven.PipelineObserver
	now       func() time.Time
	log       zerolog.Logger
}

// NewQAEngine creates the QA synthesis engine.
func NewQAEngine(retriever *Retriever, llm driven.LLMService, log zerolog.Logger) *QAEngine {
	return &QAEngine{
		retriever: retriever,
		llm:       llm,
		obs:       driven.NopObserver{},
		now:       time.Now,
		log:       log.With().Str("component", "qa").Logger(),
	}
}

// SetObserver installs the instrumentation sink.
func (q *QAEngine) SetObserver(obs driven.PipelineObserver) {
	if obs != nil {
		q.obs = obs
	}
}

// Answer runs a qa_query event. Zero retrieved chunks yields an answer
// with confidence 0 and an explanatory reasoning, not an error.
func (q *QAEngine) Answer(ctx context.Context, eventID uuid.UUID, p *domain.QAQueryPayload, settings domain.Settings) (*domain.QAAnswer, error) {
	if q.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	topK := p.TopK
	if topK <= 0 {
		topK = settings.QATopK
	}
	results, _, err := q.retriever.Retrieve(ctx, p.Query, p.Filters, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &domain.QAAnswer{
			EventID:    eventID,
			Query:      p.Query,
			Answer:     "",
			Reasoning:  "no indexed content matched the query, so no grounded answer can be given",
			Confidence: 0,
			CreatedAt:  q.now(),
		}, nil
	}

	prompt, presented := buildGroundingPrompt(p.Query, results)
	raw, err := q.llm.Generate(ctx, prompt, driven.GenerateOptions{
		Temperature: 0.1,
		System:      qaSystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: synthesize answer: %v", domain.ErrProvider, err)
	}

	answer, reasoning, cited := parseQAResponse(raw)
	citations, refs := soundCitations(cited, presented, results)

	confidence := blendConfidence(results[0].Distance, answer, citations, results)

	q.obs.QAExecuted()
	q.log.Debug().
		Str("query", p.Query).
		Int("retrieved", len(results)).
		Int("citations", len(citations)).
		Float64("confidence", confidence).
		Msg("answer synthesized")

	return &domain.QAAnswer{
		EventID:         eventID,
		Query:           p.Query,
		Answer:          answer,
		Reasoning:       reasoning,
		Confidence:      confidence,
		Citations:       citations,
		ChunkReferences: refs,
		CreatedAt:       q.now(),
	}, nil
}

// buildGroundingPrompt embeds each retrieved chunk under its stable
// reference token and returns the token -> result index map used for
// citation cross-checking.
func buildGroundingPrompt(query string, results []domain.SearchResult) (string, map[string]int) {
	presented := make(map[string]int, len(results))
	var b strings.Builder
	b.WriteString("Passages:\n")
	for i, res := range results {
		token := res.Reference
		presented[token] = i
		b.WriteString(token)
		b.WriteString("\n")
		b.WriteString(res.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String(), presented
}

// parseQAResponse splits the model output into answer, reasoning and the
// raw citation token list. Unstructured output falls back to treating the
// whole response as the answer.
func parseQAResponse(raw string) (answer, reasoning string, cited []string) {
	answer = section(raw, "ANSWER:", "REASONING:")
	reasoning = section(raw, "REASONING:", "CITATIONS:")
	if answer == "" {
		answer = strings.TrimSpace(raw)
	}
	cited = referenceTokenRe.FindAllString(raw, -1)
	return answer, reasoning, cited
}

func section(raw, start, end string) string {
	i := strings.Index(raw, start)
	if i < 0 {
		return ""
	}
	rest := raw[i+len(start):]
	if j := strings.Index(rest, end); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

// soundCitations keeps only citations whose reference token was actually
// presented to the model, deduplicated in order of first appearance.
func soundCitations(cited []string, presented map[string]int, results []domain.SearchResult) ([]string, []domain.ChunkReference) {
	seen := make(map[string]bool, len(cited))
	var citations []string
	var refs []domain.ChunkReference
	for _, token := range cited {
		idx, ok := presented[token]
		if !ok || seen[token] {
			continue
		}
		seen[token] = true
		citations = append(citations, token)
		refs = append(refs, domain.ChunkReference{
			DocumentID: results[idx].DocumentID,
			Filename:   results[idx].Filename,
			ChunkIndex: results[idx].ChunkIndex,
		})
	}
	return citations, refs
}

// blendConfidence combines retrieval distance of the top result with the
// lexical overlap between the answer and the cited chunk texts. The result
// is clamped to [0, 1].
func blendConfidence(topDistance float64, answer string, citations []string, results []domain.SearchResult) float64 {
	relevance := 1 - clamp01(topDistance)

	cited := make(map[string]bool, len(citations))
	for _, c := range citations {
		cited[c] = true
	}
	var grounding strings.Builder
	for _, res := range results {
		if len(cited) == 0 || cited[res.Reference] {
			grounding.WriteString(strings.ToLower(res.Content))
			grounding.WriteString(" ")
		}
	}

	overlap := lexicalOverlap(answer, grounding.String())
	return clamp01(0.6*relevance + 0.4*overlap)
}

// lexicalOverlap is the fraction of answer words that occur in the
// grounding text.
func lexicalOverlap(answer, grounding string) float64 {
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(grounding, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
