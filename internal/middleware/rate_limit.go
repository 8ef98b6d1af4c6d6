package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rl:cmd:"

// CommandRateLimit caps commands per caller per minute with a Redis fixed
// window. It fails open when Redis is unavailable; perMinute <= 0 disables it.
func CommandRateLimit(cache redis.Cmdable, perMinute int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || perMinute <= 0 {
			return c.Next()
		}
		caller, ok := CallerFrom(c)
		if !ok {
			return c.Next()
		}

		window := time.Now().Unix() / 60
		key := rateLimitPrefix + strconv.FormatInt(caller.ExternalID, 10) + ":" + strconv.FormatInt(window, 10)

		ctx := c.UserContext()
		pipe := cache.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("rate limit unavailable", slog.Any("error", err))
			return c.Next()
		}

		count := incr.Val()
		remaining := int64(perMinute) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count > int64(perMinute) {
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(60-time.Now().Unix()%60, 10))
			return fiber.NewError(http.StatusTooManyRequests, "too many commands, try again later")
		}
		return c.Next()
	}
}
