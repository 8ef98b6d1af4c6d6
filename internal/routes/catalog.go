package routes

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/embygate/embygate/internal/cache"
	"github.com/embygate/embygate/internal/emby"
	"github.com/embygate/embygate/internal/grant"
)

// RegisterCatalogRoutes wires the cached catalog summary.
func RegisterCatalogRoutes(r fiber.Router, svc *grant.Service, redisClient redis.Cmdable, ttl time.Duration, logger *slog.Logger) {
	r.Get("/catalog/counts", func(c *fiber.Ctx) error {
		counts, err := cache.Remember(c.UserContext(), redisClient, logger, cache.CatalogKey, ttl, func(ctx context.Context) (emby.Counts, error) {
			return svc.CatalogCounts(ctx)
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"movies":   counts.MovieCount,
			"series":   counts.SeriesCount,
			"episodes": counts.EpisodeCount,
		})
	})
}
