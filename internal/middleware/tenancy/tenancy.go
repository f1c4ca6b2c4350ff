package tenancy

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	// HeaderTenantID carries the caller's tenant on every API request.
	HeaderTenantID = "X-Tenant-ID"

	localsKey = "tenant_id"
)

// Middleware parses the tenant header and stashes the id in request
// locals. Requests without a valid positive integer tenant are rejected
// before reaching any handler.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(HeaderTenantID)
		if raw == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "X-Tenant-ID header is required",
			})
		}

		tenantID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || tenantID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "X-Tenant-ID must be a positive integer",
			})
		}

		c.Locals(localsKey, tenantID)
		return c.Next()
	}
}

// TenantID returns the tenant id stored by Middleware. Handlers behind
// the middleware can rely on it being set.
func TenantID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(localsKey).(int64)
	return id
}
