// Package llm holds the provider-independent pieces of the LLM adapters:
// the zero-shot classification prompt and its response parser. Providers
// differ only in transport, so scoring lives here once.
package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/doculens-ai/doculens/internal/core/domain"
)

const classifyPromptTemplate = `You are a document classifier. Score how well each candidate label
describes the text, as a number between 0.0 and 1.0.

Candidate labels:
%s

Text:
%s

Respond with ONLY a JSON object mapping each candidate label to its score,
for example: {"invoice": 0.91, "contract": 0.12}. Include every candidate.`

// ClassifyPrompt renders the zero-shot scoring prompt for a text against
// candidate labels.
func ClassifyPrompt(text string, labels []string) string {
	var list strings.Builder
	for _, label := range labels {
		list.WriteString("- ")
		list.WriteString(label)
		list.WriteString("\n")
	}
	return fmt.Sprintf(classifyPromptTemplate, list.String(), text)
}

// ParseLabelScores parses a model's scoring response against the candidate
// set. Scores for unknown labels are dropped, missing candidates default to
// zero, and the result is ranked by descending score with name order
// breaking ties so ranking stays deterministic.
func ParseLabelScores(raw string, labels []string) ([]domain.LabelScore, error) {
	cleaned := stripCodeFence(raw)

	// Models sometimes wrap the object in prose; take the outermost braces.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in classification response")
	}

	var parsed map[string]float64
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode classification scores: %w", err)
	}

	scores := make([]domain.LabelScore, 0, len(labels))
	for _, label := range labels {
		score := parsed[label]
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores = append(scores, domain.LabelScore{Label: label, Score: score})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Label < scores[j].Label
	})
	return scores, nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
