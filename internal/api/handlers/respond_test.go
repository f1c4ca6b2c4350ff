package handlers

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-assistant/backend/pkg/apperrors"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("bad input: %w", apperrors.ErrValidation), fiber.StatusBadRequest},
		{fmt.Errorf("missing: %w", apperrors.ErrNotFound), fiber.StatusNotFound},
		{fmt.Errorf("duplicate: %w", apperrors.ErrConflict), fiber.StatusConflict},
		{fmt.Errorf("slow down: %w", apperrors.ErrRateLimited), fiber.StatusTooManyRequests},
		{errors.New("database exploded"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		app := fiber.New()
		app.Get("/check", func(c *fiber.Ctx) error {
			return respondError(c, tc.err, "Something went wrong")
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/check", nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, "error %v", tc.err)
	}
}
