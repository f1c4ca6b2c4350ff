package tenancy

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/check", Middleware(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"tenant_id": TenantID(c)})
	})
	return app
}

func TestMiddlewareRequiresHeader(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/check", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMiddlewareRejectsBadValues(t *testing.T) {
	app := newTestApp()

	for _, value := range []string{"abc", "-1", "0", "1.5", "9999999999999999999999"} {
		req := httptest.NewRequest("GET", "/check", nil)
		req.Header.Set(HeaderTenantID, value)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "value %q", value)
	}
}

func TestMiddlewarePassesValidTenant(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/check", nil)
	req.Header.Set(HeaderTenantID, "42")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
