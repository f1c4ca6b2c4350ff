package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/internal/vector/qdrant"
	"github.com/knowledge-assistant/backend/pkg/circuitbreaker"
	"github.com/knowledge-assistant/backend/pkg/logger"
	"github.com/knowledge-assistant/backend/pkg/retry"
)

const systemPrompt = `You are an internal knowledge assistant. Your role is to answer employee questions based ONLY on the provided context documents.

Rules:
1. Only use information from the provided context
2. If the context does not contain relevant information, say "I cannot answer this based on available documents"
3. Always cite which document(s) you used
4. Be concise and direct
5. Never make up information

Output format: JSON with fields: answer, sources, confidence`

// ModelComposer asks a chat model for the answer, constrained to the
// retrieved context and a fixed response schema. Same inputs and output
// shape as the stub strategy.
type ModelComposer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type ModelConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func NewModelComposer(cfg ModelConfig) *ModelComposer {
	cb := circuitbreaker.New("composer", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Model composer initialized", zap.String("model", cfg.Model))

	return &ModelComposer{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (m *ModelComposer) Compose(ctx context.Context, question string, hits []qdrant.RetrievalHit) (*Result, error) {
	if len(hits) == 0 {
		// Nothing to ground an answer on; don't spend a model call.
		return NewStubComposer().Compose(ctx, question, hits)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var result *Result

	err := m.cb.Execute(ctx, func() error {
		return retry.Do(ctx, m.retryConfig, func() error {
			resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: m.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(question, hits)},
				},
				Temperature: m.temperature,
				MaxTokens:   m.maxTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			parsed, err := parseModelResponse(resp.Choices[0].Message.Content)
			if err != nil {
				return err
			}

			parsed.Usage = Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
			result = parsed

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func buildUserPrompt(question string, hits []qdrant.RetrievalHit) string {
	var builder strings.Builder

	builder.WriteString("Context documents:\n")
	for _, hit := range hits {
		title := hit.DocumentTitle
		if title == "" {
			title = "Unknown"
		}
		builder.WriteString(fmt.Sprintf("[Document: %s]\n%s\n\n", title, hit.Content))
	}

	builder.WriteString(fmt.Sprintf(`Question: %s

Respond in JSON format:
{
  "answer": "your answer here",
  "sources": ["document title 1", "document title 2"],
  "confidence": "high|medium|low|none"
}`, question))

	return builder.String()
}

func parseModelResponse(content string) (*Result, error) {
	// Models wrap JSON in prose or code fences often enough that we cut
	// to the outermost braces before unmarshalling.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var parsed struct {
		Answer     string   `json:"answer"`
		Sources    []string `json:"sources"`
		Confidence string   `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	if parsed.Sources == nil {
		parsed.Sources = []string{}
	}
	switch parsed.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceNone:
	default:
		parsed.Confidence = ConfidenceLow
	}

	return &Result{
		Answer:     parsed.Answer,
		Sources:    parsed.Sources,
		Confidence: parsed.Confidence,
	}, nil
}
