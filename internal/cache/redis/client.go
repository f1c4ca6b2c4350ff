package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/pkg/logger"
	"github.com/knowledge-assistant/backend/pkg/utils"
)

// CachedAnswer is the value stored under a qa: key. Sources carry
// document titles only; chunk text is not cached.
type CachedAnswer struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence string   `json:"confidence"`
}

type Client struct {
	client         *redis.Client
	answerTTL      time.Duration
	idempotencyTTL time.Duration
	ratePerMinute  int
}

type Config struct {
	Host           string
	Port           int
	Password       string
	DB             int
	AnswerTTL      time.Duration
	IdempotencyTTL time.Duration
	RatePerMinute  int
}

func NewClient(cfg Config) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)))

	return &Client{
		client:         client,
		answerTTL:      cfg.AnswerTTL,
		idempotencyTTL: cfg.IdempotencyTTL,
		ratePerMinute:  cfg.RatePerMinute,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// answerKey derives the cache key for a question. Normalization must
// match between reads and writes or the hit rate silently collapses.
func answerKey(tenantID int64, question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	return fmt.Sprintf("qa:%d:%s", tenantID, utils.HashString(normalized))
}

func rateKey(tenantID int64) string {
	return fmt.Sprintf("rate:%d", tenantID)
}

func idempotencyKey(requestID string) string {
	return fmt.Sprintf("idem:%s", requestID)
}

// GetAnswer treats every backend failure as a miss. The answer pipeline
// must keep working when the cache is down.
func (c *Client) GetAnswer(ctx context.Context, tenantID int64, question string) (*CachedAnswer, bool) {
	data, err := c.client.Get(ctx, answerKey(tenantID, question)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Error("Cache get failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return nil, false
	}

	var cached CachedAnswer
	if err := json.Unmarshal(data, &cached); err != nil {
		logger.Error("Cache entry unmarshal failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return nil, false
	}

	logger.Debug("Cache hit", zap.Int64("tenant_id", tenantID))
	return &cached, true
}

// PutAnswer overwrites any existing entry for the key. Failures are
// logged and swallowed.
func (c *Client) PutAnswer(ctx context.Context, tenantID int64, question string, answer *CachedAnswer) {
	data, err := json.Marshal(answer)
	if err != nil {
		logger.Error("Cache entry marshal failed", zap.Error(err))
		return
	}

	err = c.client.Set(ctx, answerKey(tenantID, question), data, c.answerTTL).Err()
	if err != nil {
		logger.Error("Cache put failed", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return
	}

	logger.Debug("Answer cached", zap.Int64("tenant_id", tenantID), zap.Duration("ttl", c.answerTTL))
}

// Allow implements a fixed 60-second window per tenant. The first call
// opens the window with SETNX; later calls increment until the limit.
// Any Redis failure fails open.
func (c *Client) Allow(ctx context.Context, tenantID int64) bool {
	key := rateKey(tenantID)

	created, err := c.client.SetNX(ctx, key, 1, 60*time.Second).Result()
	if err != nil {
		logger.Error("Rate limit check failed, failing open", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return true
	}
	if created {
		return true
	}

	current, err := c.client.Get(ctx, key).Int()
	if err != nil {
		logger.Error("Rate limit read failed, failing open", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return true
	}

	if current >= c.ratePerMinute {
		logger.Warn("Rate limit exceeded", zap.Int64("tenant_id", tenantID), zap.Int("count", current))
		return false
	}

	if err := c.client.Incr(ctx, key).Err(); err != nil {
		logger.Error("Rate limit increment failed, failing open", zap.Int64("tenant_id", tenantID), zap.Error(err))
	}
	return true
}

// Claim returns true only for the first caller of a request id within
// the marker TTL. Failure yields true: duplicate processing beats total
// unavailability for this best-effort mechanism.
func (c *Client) Claim(ctx context.Context, requestID string) bool {
	claimed, err := c.client.SetNX(ctx, idempotencyKey(requestID), "1", c.idempotencyTTL).Result()
	if err != nil {
		logger.Error("Idempotency claim failed, failing open", zap.String("request_id", requestID), zap.Error(err))
		return true
	}
	return claimed
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}
