package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

func TestQAEngine_AnswerCitesOnlyPresentedChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)

	env.embedder.vectors["what is the late fee"] = []float32{1, 0, 0}
	env.seedChunk(t, doc, 3, "The late fee is one hundred dollars.", []float32{1, 0, 0})

	presentedToken := domain.ChunkReference{DocumentID: doc.ID, ChunkIndex: 3}.Token()
	fabricatedToken := fmt.Sprintf("[doc:%s#42]", uuid.New())
	env.llm.response = fmt.Sprintf(
		"ANSWER: The late fee is one hundred dollars.\nREASONING: Stated directly in the passage.\nCITATIONS: %s %s",
		presentedToken, fabricatedToken,
	)

	answer, err := env.qa.Answer(ctx, uuid.New(), &domain.QAQueryPayload{Query: "what is the late fee"}, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, "The late fee is one hundred dollars.", answer.Answer)
	assert.Equal(t, "Stated directly in the passage.", answer.Reasoning)

	// The fabricated citation is dropped; only presented tokens survive.
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, presentedToken, answer.Citations[0])
	require.Len(t, answer.ChunkReferences, 1)
	assert.Equal(t, doc.ID, answer.ChunkReferences[0].DocumentID)
	assert.Equal(t, 3, answer.ChunkReferences[0].ChunkIndex)

	assert.Greater(t, answer.Confidence, 0.5)
	assert.LessOrEqual(t, answer.Confidence, 1.0)
}

func TestQAEngine_CitationsSurviveFilenamesWithSpaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)
	doc.Filename = "Master Service Agreement (signed).pdf"
	require.NoError(t, env.docs.SaveDocument(ctx, doc))

	env.embedder.vectors["notice period"] = []float32{1, 0, 0}
	env.seedChunk(t, doc, 0, "The notice period is thirty days.", []float32{1, 0, 0})

	token := domain.ChunkReference{DocumentID: doc.ID, ChunkIndex: 0}.Token()
	env.llm.response = fmt.Sprintf(
		"ANSWER: Thirty days.\nREASONING: Stated in the passage.\nCITATIONS: %s",
		token,
	)

	answer, err := env.qa.Answer(ctx, uuid.New(), &domain.QAQueryPayload{Query: "notice period"}, domain.DefaultSettings())

	require.NoError(t, err)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, token, answer.Citations[0])
	require.Len(t, answer.ChunkReferences, 1)
	assert.Equal(t, doc.Filename, answer.ChunkReferences[0].Filename)
}

func TestQAEngine_ZeroMatchesYieldsConfidenceZero(t *testing.T) {
	env := newTestEnv(t)

	answer, err := env.qa.Answer(context.Background(), uuid.New(), &domain.QAQueryPayload{Query: "anything"}, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Empty(t, answer.Answer)
	assert.Zero(t, answer.Confidence)
	assert.Empty(t, answer.Citations)
	assert.NotEmpty(t, answer.Reasoning)

	// The LLM is never consulted when nothing was retrieved.
	assert.Empty(t, env.llm.prompts)
}

func TestQAEngine_PromptContainsPassagesAndTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)
	env.seedChunk(t, doc, 0, "Alpha clause.", []float32{1, 0, 0})
	env.llm.response = "ANSWER: x\nREASONING: y\nCITATIONS:"

	_, err := env.qa.Answer(ctx, uuid.New(), &domain.QAQueryPayload{Query: "alpha"}, domain.DefaultSettings())
	require.NoError(t, err)

	require.Len(t, env.llm.prompts, 1)
	prompt := env.llm.prompts[0]
	assert.Contains(t, prompt, "Alpha clause.")
	assert.Contains(t, prompt, domain.ChunkReference{DocumentID: doc.ID, ChunkIndex: 0}.Token())
	assert.Contains(t, prompt, "Question: alpha")
}

func TestQAEngine_UnstructuredResponseBecomesAnswer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.seedDocument(t, domain.StatusReady)
	env.seedChunk(t, doc, 0, "The term is five years.", []float32{1, 0, 0})
	env.llm.response = "The term is five years."

	answer, err := env.qa.Answer(ctx, uuid.New(), &domain.QAQueryPayload{Query: "term"}, domain.DefaultSettings())

	require.NoError(t, err)
	assert.Equal(t, "The term is five years.", answer.Answer)
	assert.Empty(t, answer.Citations)
}

func TestQAEngine_AnswerFailsWithoutLLM(t *testing.T) {
	env := newTestEnv(t)
	env.qa.llm = nil

	_, err := env.qa.Answer(context.Background(), uuid.New(), &domain.QAQueryPayload{Query: "q"}, domain.DefaultSettings())
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestParseQAResponse(t *testing.T) {
	first := domain.ChunkReference{DocumentID: uuid.New(), ChunkIndex: 0}.Token()
	second := domain.ChunkReference{DocumentID: uuid.New(), ChunkIndex: 2}.Token()
	raw := fmt.Sprintf("ANSWER: Net 30.\nREASONING: Section 4 sets the terms.\nCITATIONS: %s %s %s", first, first, second)

	answer, reasoning, cited := parseQAResponse(raw)

	assert.Equal(t, "Net 30.", answer)
	assert.Equal(t, "Section 4 sets the terms.", reasoning)
	assert.Equal(t, []string{first, first, second}, cited)
}

func TestSoundCitations_DeduplicatesInOrder(t *testing.T) {
	results := []domain.SearchResult{
		{DocumentID: uuid.New(), Filename: "a.pdf", ChunkIndex: 0},
		{DocumentID: uuid.New(), Filename: "b.txt", ChunkIndex: 2},
	}
	first := domain.ChunkReference{DocumentID: results[0].DocumentID, ChunkIndex: 0}.Token()
	second := domain.ChunkReference{DocumentID: results[1].DocumentID, ChunkIndex: 2}.Token()
	unknown := domain.ChunkReference{DocumentID: uuid.New(), ChunkIndex: 9}.Token()
	presented := map[string]int{first: 0, second: 1}
	cited := []string{second, first, second, unknown}

	citations, refs := soundCitations(cited, presented, results)

	assert.Equal(t, []string{second, first}, citations)
	require.Len(t, refs, 2)
	assert.Equal(t, 2, refs[0].ChunkIndex)
	assert.Equal(t, 0, refs[1].ChunkIndex)
}

func TestLexicalOverlap(t *testing.T) {
	assert.Equal(t, 1.0, lexicalOverlap("payment due", "the payment is due in thirty days"))
	assert.Equal(t, 0.0, lexicalOverlap("zebra", "the payment is due"))
	assert.Equal(t, 0.0, lexicalOverlap("", "anything"))
	assert.InDelta(t, 0.5, lexicalOverlap("payment zebra", "payment terms"), 1e-9)
}
