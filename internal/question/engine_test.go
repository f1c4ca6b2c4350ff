package question

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-assistant/backend/internal/answer"
	"github.com/knowledge-assistant/backend/internal/cache/redis"
	"github.com/knowledge-assistant/backend/internal/storage/models"
	"github.com/knowledge-assistant/backend/internal/vector/qdrant"
	"github.com/knowledge-assistant/backend/pkg/apperrors"
)

type fakeStore struct {
	tenantMissing bool
	requests      []*models.AIRequest
	results       []*models.AIResult
	audits        []*models.AuditLog
}

func (f *fakeStore) GetTenant(_ context.Context, tenantID int64) (*models.Tenant, error) {
	if f.tenantMissing {
		return nil, fmt.Errorf("tenant %d: %w", tenantID, apperrors.ErrNotFound)
	}
	return &models.Tenant{ID: tenantID, Name: "Acme", Slug: "acme"}, nil
}

func (f *fakeStore) InsertRequest(_ context.Context, req *models.AIRequest) error {
	req.ID = int64(len(f.requests) + 1)
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeStore) InsertResult(_ context.Context, result *models.AIResult) error {
	f.results = append(f.results, result)
	return nil
}

func (f *fakeStore) InsertAudit(_ context.Context, audit *models.AuditLog) error {
	f.audits = append(f.audits, audit)
	return nil
}

type fakeCache struct {
	entry *redis.CachedAnswer
	puts  []*redis.CachedAnswer
}

func (f *fakeCache) GetAnswer(_ context.Context, _ int64, _ string) (*redis.CachedAnswer, bool) {
	if f.entry == nil {
		return nil, false
	}
	return f.entry, true
}

func (f *fakeCache) PutAnswer(_ context.Context, _ int64, _ string, a *redis.CachedAnswer) {
	f.puts = append(f.puts, a)
}

type fakeLimiter struct {
	deny bool
}

func (f *fakeLimiter) Allow(_ context.Context, _ int64) bool {
	return !f.deny
}

type fakeSearcher struct {
	hits  []qdrant.RetrievalHit
	err   error
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, _ int64, _ string, _ int, _ float32) ([]qdrant.RetrievalHit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func newTestEngine(store *fakeStore, cache *fakeCache, limiter *fakeLimiter, searcher *fakeSearcher) *Engine {
	return NewEngine(store, cache, limiter, searcher, answer.NewStubComposer(), Config{})
}

func TestAskRejectsShortAndLongQuestions(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeCache{}, &fakeLimiter{}, &fakeSearcher{})

	_, err := engine.Ask(context.Background(), 1, "hi")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = engine.Ask(context.Background(), 1, strings.Repeat("x", 1001))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Length is counted in runes, not bytes.
	_, err = engine.Ask(context.Background(), 1, strings.Repeat("あ", 1001))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAskAcceptsBoundaryLengths(t *testing.T) {
	for _, questionText := range []string{"abc", strings.Repeat("y", 1000), strings.Repeat("あ", 1000)} {
		store := &fakeStore{}
		engine := newTestEngine(store, &fakeCache{}, &fakeLimiter{}, &fakeSearcher{})

		resp, err := engine.Ask(context.Background(), 1, questionText)

		require.NoError(t, err, "length %d", len([]rune(questionText)))
		assert.NotEmpty(t, resp.RequestID)
		require.Len(t, store.requests, 1)
		assert.Equal(t, questionText, store.requests[0].Question)
		require.Len(t, store.results, 1)
		require.Len(t, store.audits, 1)
	}
}

func TestAskUnknownTenant(t *testing.T) {
	engine := newTestEngine(&fakeStore{tenantMissing: true}, &fakeCache{}, &fakeLimiter{}, &fakeSearcher{})

	_, err := engine.Ask(context.Background(), 42, "What is the VPN policy?")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAskRateLimited(t *testing.T) {
	searcher := &fakeSearcher{}
	engine := newTestEngine(&fakeStore{}, &fakeCache{}, &fakeLimiter{deny: true}, searcher)

	_, err := engine.Ask(context.Background(), 1, "What is the VPN policy?")

	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Zero(t, searcher.calls)
}

func TestAskCacheHitSkipsRetrieval(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{entry: &redis.CachedAnswer{
		Answer:     "Use the VPN portal.",
		Sources:    []string{"VPN Guide"},
		Confidence: answer.ConfidenceHigh,
	}}
	searcher := &fakeSearcher{}
	engine := newTestEngine(store, cache, &fakeLimiter{}, searcher)

	resp, err := engine.Ask(context.Background(), 1, "How do I connect to the VPN?")

	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, "Use the VPN portal.", resp.Answer)
	assert.Equal(t, answer.ConfidenceHigh, resp.Confidence)
	assert.Zero(t, searcher.calls)
	assert.Empty(t, cache.puts)

	// Cached entries keep titles only.
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "VPN Guide", resp.Sources[0].Document)
	assert.Empty(t, resp.Sources[0].Chunk)

	// The request is still persisted and audited.
	require.Len(t, store.requests, 1)
	require.Len(t, store.results, 1)
	assert.True(t, store.results[0].WasCached)
	require.Len(t, store.audits, 1)
	assert.Equal(t, true, store.audits[0].Details["cached"])
}

func TestAskFullPipeline(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{}
	searcher := &fakeSearcher{hits: []qdrant.RetrievalHit{
		{
			Content:       "The VPN requires MFA enrollment. Tokens rotate monthly.",
			DocumentID:    7,
			DocumentTitle: "VPN Guide",
			ChunkIndex:    0,
			Score:         0.83,
		},
		{
			Content:       "All laptops are encrypted.",
			DocumentID:    9,
			DocumentTitle: "Device Policy",
			ChunkIndex:    2,
			Score:         0.6,
		},
	}}
	engine := newTestEngine(store, cache, &fakeLimiter{}, searcher)

	resp, err := engine.Ask(context.Background(), 1, "How do I connect to the VPN?")

	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, "The VPN requires MFA enrollment.", resp.Answer)
	assert.Equal(t, answer.ConfidenceHigh, resp.Confidence)
	assert.NotEmpty(t, resp.RequestID)

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "VPN Guide", resp.Sources[0].Document)
	assert.Equal(t, "The VPN requires MFA enrollment. Tokens rotate monthly.", resp.Sources[0].Chunk)
	assert.Equal(t, "Device Policy", resp.Sources[1].Document)

	require.Len(t, store.requests, 1)
	assert.Equal(t, resp.RequestID, store.requests[0].RequestID)
	assert.Len(t, store.requests[0].ContextChunks, 2)

	require.Len(t, store.results, 1)
	assert.False(t, store.results[0].WasCached)
	assert.Equal(t, resp.Answer, store.results[0].Answer)

	require.Len(t, store.audits, 1)
	assert.Equal(t, "question_answered", store.audits[0].Action)

	require.Len(t, cache.puts, 1)
	assert.Equal(t, resp.Answer, cache.puts[0].Answer)
}

func TestAskSearchFailureDegradesToRefusal(t *testing.T) {
	store := &fakeStore{}
	searcher := &fakeSearcher{err: errors.New("qdrant unreachable")}
	engine := newTestEngine(store, &fakeCache{}, &fakeLimiter{}, searcher)

	resp, err := engine.Ask(context.Background(), 1, "What is the parental leave policy?")

	require.NoError(t, err)
	assert.Equal(t, answer.Refusal, resp.Answer)
	assert.Equal(t, answer.ConfidenceNone, resp.Confidence)
	assert.Empty(t, resp.Sources)
	require.Len(t, store.results, 1)
}

func TestAskEmptyCorpusRefuses(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeCache{}, &fakeLimiter{}, &fakeSearcher{})

	resp, err := engine.Ask(context.Background(), 1, "Anything at all?")

	require.NoError(t, err)
	assert.Equal(t, answer.Refusal, resp.Answer)
	assert.Equal(t, answer.ConfidenceNone, resp.Confidence)
	assert.Empty(t, resp.Sources)
}

func TestBuildSourcesDedupAndPreview(t *testing.T) {
	long := strings.Repeat("a", 250)
	hits := []qdrant.RetrievalHit{
		{Content: long, DocumentTitle: "Long Doc"},
		{Content: "short", DocumentTitle: "Long Doc"},
		{Content: "other", DocumentTitle: ""},
	}

	sources := buildSources(hits)

	require.Len(t, sources, 2)
	assert.Equal(t, "Long Doc", sources[0].Document)
	assert.Len(t, sources[0].Chunk, 203)
	assert.True(t, strings.HasSuffix(sources[0].Chunk, "..."))
	assert.Equal(t, "Internal Document", sources[1].Document)
	assert.Equal(t, "other", sources[1].Chunk)
}

func TestTruncatePreviewExactLimitUntouched(t *testing.T) {
	exact := strings.Repeat("b", 200)
	assert.Equal(t, exact, truncatePreview(exact))
}

func TestTruncatePreviewCountsRunes(t *testing.T) {
	// 100 characters but 300 bytes: under the character limit, so no
	// truncation.
	short := strings.Repeat("あ", 100)
	assert.Equal(t, short, truncatePreview(short))

	long := truncatePreview(strings.Repeat("あ", 250))
	assert.True(t, utf8.ValidString(long))
	assert.Equal(t, 203, utf8.RuneCountInString(long))
	assert.Equal(t, strings.Repeat("あ", 200)+"...", long)
}
