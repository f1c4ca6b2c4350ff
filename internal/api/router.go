package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/knowledge-assistant/backend/internal/api/handlers"
	"github.com/knowledge-assistant/backend/internal/middleware/tenancy"
)

// Deps carries the wired handlers for route registration.
type Deps struct {
	Questions *handlers.QuestionHandler
	Documents *handlers.DocumentHandler
	Tenants   *handlers.TenantHandler
	Health    *handlers.HealthHandler
	Metrics   fiber.Handler
}

// RegisterRoutes mounts the versioned API. The tenancy middleware is
// attached per route: health, tenant management and /metrics must stay
// reachable without an X-Tenant-ID header.
func RegisterRoutes(app *fiber.App, deps Deps) {
	api := app.Group("/api/v1")

	api.Post("/tenants", deps.Tenants.CreateTenant)
	api.Get("/tenants", deps.Tenants.ListTenants)
	api.Get("/tenants/:id", deps.Tenants.GetTenant)

	api.Get("/health", deps.Health.HandleHealth)

	tenant := tenancy.Middleware()
	api.Post("/questions", tenant, deps.Questions.HandleQuestion)
	api.Post("/documents", tenant, deps.Documents.UploadDocument)
	api.Get("/documents", tenant, deps.Documents.ListDocuments)
	api.Delete("/documents/:id", tenant, deps.Documents.DeleteDocument)

	app.Get("/metrics", deps.Metrics)
}
