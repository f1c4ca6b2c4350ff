package answer

import (
	"context"
	"strings"

	"github.com/knowledge-assistant/backend/internal/vector/qdrant"
)

// Refusal is the fixed answer when retrieval finds nothing usable.
const Refusal = "I cannot answer this question based on the available internal documents."

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceNone   = "none"
)

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Result struct {
	Answer     string
	Sources    []string
	Confidence string
	Usage      Usage
}

// Composer produces an answer from a question and ranked retrieval
// hits. Implementations must not mutate the hit slice.
type Composer interface {
	Compose(ctx context.Context, question string, hits []qdrant.RetrievalHit) (*Result, error)
}

// ConfidenceForScore maps the top hit's cosine similarity onto a coarse
// label. Boundaries are strict: 0.70 is medium, 0.50 is low.
func ConfidenceForScore(score float32) string {
	switch {
	case score > 0.7:
		return ConfidenceHigh
	case score > 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SourceTitles returns the distinct document titles among the first
// limit hits, first-seen order preserved.
func SourceTitles(hits []qdrant.RetrievalHit, limit int) []string {
	if limit > len(hits) {
		limit = len(hits)
	}

	titles := make([]string, 0, limit)
	seen := make(map[string]bool, limit)
	for _, hit := range hits[:limit] {
		title := hit.DocumentTitle
		if title == "" {
			title = "Internal Document"
		}
		if seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}

	return titles
}

// StubComposer is the deterministic strategy: the answer is the first
// sentence of the best-matching chunk, confidence comes straight from
// its similarity score, and token accounting is derived from sizes.
type StubComposer struct{}

func NewStubComposer() *StubComposer {
	return &StubComposer{}
}

func (s *StubComposer) Compose(_ context.Context, _ string, hits []qdrant.RetrievalHit) (*Result, error) {
	if len(hits) == 0 {
		return &Result{
			Answer:     Refusal,
			Sources:    []string{},
			Confidence: ConfidenceNone,
			Usage: Usage{
				PromptTokens:     50,
				CompletionTokens: 20,
				TotalTokens:      70,
			},
		}, nil
	}

	top := hits[0]
	answer := firstSentence(top.Content)

	return &Result{
		Answer:     answer,
		Sources:    SourceTitles(hits, 3),
		Confidence: ConfidenceForScore(top.Score),
		Usage: Usage{
			PromptTokens:     150 + len(top.Content)/4,
			CompletionTokens: 50,
			TotalTokens:      200 + len(top.Content)/4,
		},
	}, nil
}

func firstSentence(content string) string {
	sentence, _, _ := strings.Cut(content, ".")
	return strings.TrimSpace(sentence) + "."
}
