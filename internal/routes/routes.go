package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/embygate/embygate/internal/config"
	"github.com/embygate/embygate/internal/grant"
	"github.com/embygate/embygate/internal/metrics"
	"github.com/embygate/embygate/internal/middleware"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	Grant   *grant.Service
	Store   Pinger
	Cache   redis.Cmdable
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Grant == nil {
		return fmt.Errorf("grant service is required")
	}
	if d.Cache == nil && !d.Cfg.IsDev() {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Metrics != nil {
		app.Use(d.Metrics.Middleware())
	}
	app.Use(middleware.Audit(d.Logger))
	app.Use(RenderErrors(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1", middleware.CallerAuth([]byte(d.Cfg.GatewaySecret)))
	if d.Cache != nil {
		api.Use(middleware.CommandRateLimit(d.Cache, d.Cfg.CommandsPerMinute, d.Logger))
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAccountRoutes(api, d.Grant)
	RegisterIdentityRoutes(api, d.Grant)
	RegisterTokenRoutes(api, d.Grant)
	RegisterModerationRoutes(api, d.Grant)
	RegisterQuotaRoutes(api, d.Grant)
	RegisterCatalogRoutes(api, d.Grant, d.Cache, d.Cfg.CatalogCacheTTL, d.Logger)
	RegisterLineRoutes(api, d.Grant)
	RegisterEventRoutes(api, d.Grant)

	return nil
}
