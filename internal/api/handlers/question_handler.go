package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/internal/middleware/tenancy"
	"github.com/knowledge-assistant/backend/internal/question"
	"github.com/knowledge-assistant/backend/pkg/logger"
)

type QuestionHandler struct {
	engine *question.Engine
}

func NewQuestionHandler(engine *question.Engine) *QuestionHandler {
	return &QuestionHandler{
		engine: engine,
	}
}

func (h *QuestionHandler) HandleQuestion(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	tenantID := tenancy.TenantID(c)

	response, err := h.engine.Ask(c.Context(), tenantID, req.Question)
	if err != nil {
		logger.Error("Failed to answer question",
			zap.Int64("tenant_id", tenantID),
			zap.Error(err),
		)
		return respondError(c, err, "Failed to answer question")
	}

	return c.JSON(fiber.Map{
		"answer":     response.Answer,
		"sources":    response.Sources,
		"confidence": response.Confidence,
		"request_id": response.RequestID,
		"latency_ms": response.LatencyMS,
		"cached":     response.Cached,
	})
}
