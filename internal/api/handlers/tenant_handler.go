package handlers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/knowledge-assistant/backend/internal/storage/models"
	"github.com/knowledge-assistant/backend/internal/storage/sqlite"
	"github.com/knowledge-assistant/backend/pkg/logger"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type TenantHandler struct {
	store *sqlite.Client
}

func NewTenantHandler(store *sqlite.Client) *TenantHandler {
	return &TenantHandler{
		store: store,
	}
}

func (h *TenantHandler) CreateTenant(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.TrimSpace(req.Slug)

	if req.Name == "" || req.Slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name and slug are required",
		})
	}
	if !slugPattern.MatchString(req.Slug) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Slug must be lowercase letters, digits and hyphens",
		})
	}

	tenant, err := h.store.CreateTenant(c.Context(), req.Name, req.Slug)
	if err != nil {
		logger.Error("Failed to create tenant",
			zap.String("slug", req.Slug),
			zap.Error(err),
		)
		return respondError(c, err, "Failed to create tenant")
	}

	if err := h.store.InsertAudit(c.Context(), &models.AuditLog{
		TenantID:   tenant.ID,
		Action:     "tenant_created",
		EntityType: "tenant",
		EntityID:   tenant.ID,
		Details: map[string]interface{}{
			"slug": tenant.Slug,
		},
	}); err != nil {
		logger.Warn("Failed to record tenant audit entry",
			zap.Int64("tenant_id", tenant.ID),
			zap.Error(err),
		)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         tenant.ID,
		"name":       tenant.Name,
		"slug":       tenant.Slug,
		"created_at": tenant.CreatedAt,
	})
}

func (h *TenantHandler) ListTenants(c *fiber.Ctx) error {
	tenants, err := h.store.ListTenants(c.Context())
	if err != nil {
		logger.Error("Failed to list tenants", zap.Error(err))
		return respondError(c, err, "Failed to list tenants")
	}

	items := make([]fiber.Map, 0, len(tenants))
	for _, tenant := range tenants {
		items = append(items, fiber.Map{
			"id":         tenant.ID,
			"name":       tenant.Name,
			"slug":       tenant.Slug,
			"created_at": tenant.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"tenants": items,
	})
}

func (h *TenantHandler) GetTenant(c *fiber.Ctx) error {
	tenantID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || tenantID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tenant id must be a positive integer",
		})
	}

	tenant, err := h.store.GetTenant(c.Context(), tenantID)
	if err != nil {
		return respondError(c, err, "Failed to fetch tenant")
	}

	return c.JSON(fiber.Map{
		"id":         tenant.ID,
		"name":       tenant.Name,
		"slug":       tenant.Slug,
		"created_at": tenant.CreatedAt,
	})
}
