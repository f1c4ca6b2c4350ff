package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyContent(t *testing.T) {
	s := New(500, 50)

	assert.Empty(t, s.Split("", "Doc"))
	assert.Empty(t, s.Split("   \n\n  ", "Doc"))
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	s := New(500, 50)

	chunks := s.Split("The VPN requires MFA. Tokens rotate every 30 days.", "VPN Guide")

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "The VPN requires MFA. Tokens rotate every 30 days.", chunks[0].Content)
	assert.Equal(t, "VPN Guide", chunks[0].DocumentTitle)
}

func TestSplitNoPeriodGetsOne(t *testing.T) {
	s := New(500, 50)

	chunks := s.Split("Remote work is allowed on Fridays", "Policy")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Remote work is allowed on Fridays.", chunks[0].Content)
}

func TestSplitNewlinesBecomeSpaces(t *testing.T) {
	s := New(500, 50)

	chunks := s.Split("First line\r\nsecond line.\nThird line.", "Doc")

	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0].Content, "\n")
	assert.Equal(t, "First line second line. Third line.", chunks[0].Content)
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	s := New(80, 3)

	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("Expense reports are due on the fifth business day. ")
	}

	chunks := s.Split(b.String(), "Finance")

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Content)
	}

	// Each later chunk starts with the last overlapWords words of its
	// predecessor.
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1].Content)
		tail := strings.Join(prevWords[len(prevWords)-3:], " ")
		assert.True(t, strings.HasPrefix(chunks[i].Content, tail),
			"chunk %d should start with %q", i, tail)
	}
}

func TestSplitOversizedSentenceEmittedWhole(t *testing.T) {
	s := New(40, 5)

	sentence := "This single sentence is far longer than the configured chunk size limit and has no internal period"
	chunks := s.Split(sentence, "Doc")

	require.Len(t, chunks, 1)
	assert.Equal(t, sentence+".", chunks[0].Content)
}

func TestSplitSequentialIndexes(t *testing.T) {
	s := New(60, 2)

	content := strings.Repeat("Security training is mandatory for all new hires. ", 8)
	chunks := s.Split(content, "Onboarding")

	require.Greater(t, len(chunks), 2)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, "Onboarding", chunk.DocumentTitle)
	}
}
