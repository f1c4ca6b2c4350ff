package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/internal/ingestion"
	"github.com/knowledge-assistant/backend/internal/middleware/tenancy"
	"github.com/knowledge-assistant/backend/pkg/logger"
)

// HeaderRequestID lets clients retry document uploads safely: a replay
// of an already-claimed id is rejected instead of re-ingested.
const HeaderRequestID = "X-Request-ID"

// IdempotencyGuard reports whether a client request id is seen for the
// first time.
type IdempotencyGuard interface {
	Claim(ctx context.Context, requestID string) bool
}

type DocumentHandler struct {
	processor *ingestion.Processor
	guard     IdempotencyGuard
}

func NewDocumentHandler(processor *ingestion.Processor, guard IdempotencyGuard) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		guard:     guard,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Content     string `json:"content"`
		Source      string `json:"source"`
		ContentType string `json:"content_type"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	tenantID := tenancy.TenantID(c)

	if requestID := c.Get(HeaderRequestID); requestID != "" {
		if !h.guard.Claim(c.Context(), requestID) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":      "Request already processed",
				"request_id": requestID,
			})
		}
	}

	doc, err := h.processor.Ingest(c.Context(), tenantID, ingestion.IngestRequest{
		Title:       req.Title,
		Content:     req.Content,
		Source:      req.Source,
		ContentType: req.ContentType,
	})
	if err != nil {
		logger.Error("Failed to ingest document",
			zap.Int64("tenant_id", tenantID),
			zap.Error(err),
		)
		return respondError(c, err, "Failed to ingest document")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          doc.ID,
		"title":       doc.Title,
		"chunk_count": doc.ChunkCount,
		"created_at":  doc.CreatedAt,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	tenantID := tenancy.TenantID(c)

	docs, err := h.processor.List(c.Context(), tenantID)
	if err != nil {
		logger.Error("Failed to list documents",
			zap.Int64("tenant_id", tenantID),
			zap.Error(err),
		)
		return respondError(c, err, "Failed to list documents")
	}

	items := make([]fiber.Map, 0, len(docs))
	for _, doc := range docs {
		items = append(items, fiber.Map{
			"id":          doc.ID,
			"title":       doc.Title,
			"source":      doc.Source,
			"chunk_count": doc.ChunkCount,
			"created_at":  doc.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"documents": items,
	})
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	documentID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || documentID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document id must be a positive integer",
		})
	}

	tenantID := tenancy.TenantID(c)

	if err := h.processor.Delete(c.Context(), tenantID, documentID); err != nil {
		logger.Error("Failed to delete document",
			zap.Int64("tenant_id", tenantID),
			zap.Int64("document_id", documentID),
			zap.Error(err),
		)
		return respondError(c, err, "Failed to delete document")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
