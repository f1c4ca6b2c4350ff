package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-assistant/backend/internal/vector/qdrant"
)

func TestParseModelResponseCleanJSON(t *testing.T) {
	result, err := parseModelResponse(`{"answer": "Use the VPN portal.", "sources": ["VPN Guide"], "confidence": "high"}`)

	require.NoError(t, err)
	assert.Equal(t, "Use the VPN portal.", result.Answer)
	assert.Equal(t, []string{"VPN Guide"}, result.Sources)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestParseModelResponseFencedJSON(t *testing.T) {
	content := "Here is my answer:\n```json\n{\"answer\": \"Yes.\", \"sources\": [], \"confidence\": \"medium\"}\n```"

	result, err := parseModelResponse(content)

	require.NoError(t, err)
	assert.Equal(t, "Yes.", result.Answer)
	assert.Equal(t, ConfidenceMedium, result.Confidence)
}

func TestParseModelResponseDefaults(t *testing.T) {
	result, err := parseModelResponse(`{"answer": "Maybe.", "confidence": "certain"}`)

	require.NoError(t, err)
	assert.NotNil(t, result.Sources)
	assert.Empty(t, result.Sources)
	assert.Equal(t, ConfidenceLow, result.Confidence)
}

func TestParseModelResponseNoJSON(t *testing.T) {
	_, err := parseModelResponse("I cannot produce structured output.")
	assert.Error(t, err)
}

func TestBuildUserPromptIncludesContextAndQuestion(t *testing.T) {
	hits := []qdrant.RetrievalHit{
		{DocumentTitle: "VPN Guide", Content: "The VPN requires MFA."},
		{DocumentTitle: "", Content: "Untitled chunk."},
	}

	prompt := buildUserPrompt("How do I connect?", hits)

	assert.Contains(t, prompt, "[Document: VPN Guide]")
	assert.Contains(t, prompt, "The VPN requires MFA.")
	assert.Contains(t, prompt, "[Document: Unknown]")
	assert.Contains(t, prompt, "Question: How do I connect?")
	assert.Contains(t, prompt, `"confidence"`)
}
