package question

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/internal/answer"
	"github.com/knowledge-assistant/backend/internal/cache/redis"
	"github.com/knowledge-assistant/backend/internal/metrics"
	"github.com/knowledge-assistant/backend/internal/storage/models"
	"github.com/knowledge-assistant/backend/internal/vector/qdrant"
	"github.com/knowledge-assistant/backend/pkg/apperrors"
	"github.com/knowledge-assistant/backend/pkg/logger"
)

const (
	minQuestionLen = 3
	maxQuestionLen = 1000
	previewLimit   = 200
)

// Store is the relational persistence the engine needs: tenant lookup
// plus the durable request/result/audit trail.
type Store interface {
	GetTenant(ctx context.Context, tenantID int64) (*models.Tenant, error)
	InsertRequest(ctx context.Context, req *models.AIRequest) error
	InsertResult(ctx context.Context, result *models.AIResult) error
	InsertAudit(ctx context.Context, audit *models.AuditLog) error
}

type Cache interface {
	GetAnswer(ctx context.Context, tenantID int64, question string) (*redis.CachedAnswer, bool)
	PutAnswer(ctx context.Context, tenantID int64, question string, a *redis.CachedAnswer)
}

type Limiter interface {
	Allow(ctx context.Context, tenantID int64) bool
}

type Searcher interface {
	Search(ctx context.Context, tenantID int64, query string, topK int, scoreThreshold float32) ([]qdrant.RetrievalHit, error)
}

type Engine struct {
	store          Store
	cache          Cache
	limiter        Limiter
	searcher       Searcher
	composer       answer.Composer
	topK           int
	scoreThreshold float32
}

type Config struct {
	TopK           int
	ScoreThreshold float32
}

type SourceInfo struct {
	Document string `json:"document"`
	Chunk    string `json:"chunk"`
}

type Response struct {
	Answer     string       `json:"answer"`
	Sources    []SourceInfo `json:"sources"`
	Confidence string       `json:"confidence"`
	RequestID  string       `json:"request_id"`
	LatencyMS  int          `json:"latency_ms"`
	Cached     bool         `json:"cached"`
}

func NewEngine(store Store, cache Cache, limiter Limiter, searcher Searcher, composer answer.Composer, cfg Config) *Engine {
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = 0.3
	}

	return &Engine{
		store:          store,
		cache:          cache,
		limiter:        limiter,
		searcher:       searcher,
		composer:       composer,
		topK:           cfg.TopK,
		scoreThreshold: cfg.ScoreThreshold,
	}
}

// Ask runs the question-answering transaction: validate, rate limit,
// cache lookup, retrieve, compose, persist, cache. The answer record is
// persisted before the best-effort cache write, and a cache failure is
// never surfaced.
func (e *Engine) Ask(ctx context.Context, tenantID int64, questionText string) (*Response, error) {
	start := time.Now()

	if n := utf8.RuneCountInString(questionText); n < minQuestionLen || n > maxQuestionLen {
		return nil, fmt.Errorf("question length %d outside [%d, %d]: %w",
			n, minQuestionLen, maxQuestionLen, apperrors.ErrValidation)
	}

	if _, err := e.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	if !e.limiter.Allow(ctx, tenantID) {
		metrics.RateLimited.Inc()
		return nil, fmt.Errorf("tenant %d: %w", tenantID, apperrors.ErrRateLimited)
	}

	requestID := uuid.New().String()

	if cached, ok := e.cache.GetAnswer(ctx, tenantID, questionText); ok {
		metrics.CacheHits.Inc()
		return e.respondFromCache(ctx, tenantID, requestID, questionText, cached, start)
	}
	metrics.CacheMisses.Inc()

	hits, err := e.searcher.Search(ctx, tenantID, questionText, e.topK, e.scoreThreshold)
	if err != nil {
		// Retrieval degradation: answer with "nothing found" rather
		// than failing the request.
		logger.Warn("Vector search failed, degrading to zero hits",
			zap.Int64("tenant_id", tenantID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		hits = nil
	}
	metrics.RetrievalHits.Observe(float64(len(hits)))

	composed, err := e.composer.Compose(ctx, questionText, hits)
	if err != nil {
		return nil, fmt.Errorf("failed to compose answer: %w", err)
	}

	latency := int(time.Since(start).Milliseconds())

	contextChunks := make([]string, len(hits))
	for i, hit := range hits {
		contextChunks[i] = hit.Content
	}

	req := &models.AIRequest{
		TenantID:      tenantID,
		RequestID:     requestID,
		Question:      questionText,
		ContextChunks: contextChunks,
		PromptTokens:  composed.Usage.PromptTokens,
	}
	if err := e.store.InsertRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to persist request: %w", err)
	}

	result := &models.AIResult{
		RequestID:        requestID,
		TenantID:         tenantID,
		Answer:           composed.Answer,
		Sources:          composed.Sources,
		Confidence:       composed.Confidence,
		CompletionTokens: composed.Usage.CompletionTokens,
		TotalTokens:      composed.Usage.TotalTokens,
		LatencyMS:        latency,
		WasCached:        false,
	}
	if err := e.store.InsertResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist result: %w", err)
	}

	if err := e.store.InsertAudit(ctx, &models.AuditLog{
		TenantID:   tenantID,
		Action:     "question_answered",
		EntityType: "ai_request",
		EntityID:   req.ID,
		Details: map[string]interface{}{
			"question_length": utf8.RuneCountInString(questionText),
			"context_count":   len(hits),
			"confidence":      composed.Confidence,
			"latency_ms":      latency,
			"cached":          false,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to persist audit event: %w", err)
	}

	// Cache write is best effort and must come after persistence.
	e.cache.PutAnswer(ctx, tenantID, questionText, &redis.CachedAnswer{
		Answer:     composed.Answer,
		Sources:    composed.Sources,
		Confidence: composed.Confidence,
	})

	metrics.ConfidenceTotal.WithLabelValues(composed.Confidence).Inc()
	metrics.TokensUsed.WithLabelValues("prompt").Add(float64(composed.Usage.PromptTokens))
	metrics.TokensUsed.WithLabelValues("completion").Add(float64(composed.Usage.CompletionTokens))
	metrics.QuestionTotal.WithLabelValues("answered").Inc()
	metrics.QuestionDuration.WithLabelValues("answered").Observe(time.Since(start).Seconds())

	logger.Info("Question answered",
		zap.Int64("tenant_id", tenantID),
		zap.String("request_id", requestID),
		zap.String("confidence", composed.Confidence),
		zap.Int("hits", len(hits)),
		zap.Int("latency_ms", latency),
	)

	return &Response{
		Answer:     composed.Answer,
		Sources:    buildSources(hits),
		Confidence: composed.Confidence,
		RequestID:  requestID,
		LatencyMS:  latency,
		Cached:     false,
	}, nil
}

// respondFromCache answers from the cached entry. Cached entries keep
// titles only, so sources carry no chunk previews on this path.
func (e *Engine) respondFromCache(ctx context.Context, tenantID int64, requestID, questionText string, cached *redis.CachedAnswer, start time.Time) (*Response, error) {
	latency := int(time.Since(start).Milliseconds())

	req := &models.AIRequest{
		TenantID:      tenantID,
		RequestID:     requestID,
		Question:      questionText,
		ContextChunks: []string{},
	}
	if err := e.store.InsertRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to persist request: %w", err)
	}

	if err := e.store.InsertResult(ctx, &models.AIResult{
		RequestID:  requestID,
		TenantID:   tenantID,
		Answer:     cached.Answer,
		Sources:    cached.Sources,
		Confidence: cached.Confidence,
		LatencyMS:  latency,
		WasCached:  true,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist result: %w", err)
	}

	if err := e.store.InsertAudit(ctx, &models.AuditLog{
		TenantID:   tenantID,
		Action:     "question_answered",
		EntityType: "ai_request",
		EntityID:   req.ID,
		Details: map[string]interface{}{
			"question_length": utf8.RuneCountInString(questionText),
			"confidence":      cached.Confidence,
			"latency_ms":      latency,
			"cached":          true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to persist audit event: %w", err)
	}

	metrics.QuestionTotal.WithLabelValues("cached").Inc()
	metrics.QuestionDuration.WithLabelValues("cached").Observe(time.Since(start).Seconds())

	logger.Info("Question answered from cache",
		zap.Int64("tenant_id", tenantID),
		zap.String("request_id", requestID),
	)

	sources := make([]SourceInfo, 0, len(cached.Sources))
	for _, title := range cached.Sources {
		sources = append(sources, SourceInfo{Document: title})
	}

	return &Response{
		Answer:     cached.Answer,
		Sources:    sources,
		Confidence: cached.Confidence,
		RequestID:  requestID,
		LatencyMS:  latency,
		Cached:     true,
	}, nil
}

// buildSources deduplicates hits by document title in first-seen order,
// each entry keeping a preview of the chunk that ranked it.
func buildSources(hits []qdrant.RetrievalHit) []SourceInfo {
	sources := make([]SourceInfo, 0, len(hits))
	seen := make(map[string]bool, len(hits))

	for _, hit := range hits {
		title := hit.DocumentTitle
		if title == "" {
			title = "Internal Document"
		}
		if seen[title] {
			continue
		}
		seen[title] = true
		sources = append(sources, SourceInfo{
			Document: title,
			Chunk:    truncatePreview(hit.Content),
		})
	}

	return sources
}

// truncatePreview caps a chunk preview at previewLimit characters,
// cutting on a rune boundary so multibyte content stays valid UTF-8.
func truncatePreview(content string) string {
	if utf8.RuneCountInString(content) <= previewLimit {
		return content
	}
	return string([]rune(content)[:previewLimit]) + "..."
}
