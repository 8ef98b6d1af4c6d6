package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/embygate/embygate/internal/logging"
)

func TestCommandRateLimitPerCaller(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Use(CallerAuth(testSecret))
	app.Use(CommandRateLimit(cache, 2, logging.Discard()))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	get := func(caller int64) int {
		tok, err := SignCaller(testSecret, caller, "", time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusNoContent, get(1))
	require.Equal(t, fiber.StatusNoContent, get(1))
	require.Equal(t, fiber.StatusTooManyRequests, get(1))
	require.Equal(t, fiber.StatusNoContent, get(2))
}

func TestCommandRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	mr.Close()

	app := fiber.New()
	app.Use(CallerAuth(testSecret))
	app.Use(CommandRateLimit(cache, 1, logging.Discard()))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	tok, err := SignCaller(testSecret, 1, "", time.Minute)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
		resp, err := app.Test(req, 5000)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
}
