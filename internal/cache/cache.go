// Package cache keeps short-lived copies of Account Provider data in Redis.
// Only provider data is cached; identities and quota are always read from the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/embygate/embygate/internal/emby"
	"github.com/embygate/embygate/internal/grant"
)

const (
	keyPrefix      = "embygate:cache:v1:"
	CatalogKey     = keyPrefix + "catalog_counts"
	LinesKey       = keyPrefix + "lines"
	cacheOpTimeout = 2 * time.Second
)

// Remember returns the cached value under key or computes it with fn and
// stores it for ttl. Redis failures fall through to fn; errors from fn are
// never cached.
func Remember[T any](ctx context.Context, cache redis.Cmdable, logger *slog.Logger, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if cache == nil || ttl <= 0 {
		return fn(ctx)
	}

	getCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	raw, err := cache.Get(getCtx, key).Bytes()
	cancel()
	switch {
	case err == nil:
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		logger.Warn("discarding undecodable cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		logger.Warn("cache lookup failed", slog.String("key", key), slog.Any("error", err))
	}

	value, err := fn(ctx)
	if err != nil {
		return value, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		logger.Warn("cache encode failed", slog.String("key", key), slog.Any("error", err))
		return value, nil
	}
	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	if err := cache.Set(setCtx, key, payload, ttl).Err(); err != nil {
		logger.Warn("cache store failed", slog.String("key", key), slog.Any("error", err))
	}
	return value, nil
}

// LineCache is a LineRouter whose line list is served from Redis. Per-account
// lookups and selections always reach the router.
type LineCache struct {
	grant.LineRouter
	cache  redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ grant.LineRouter = (*LineCache)(nil)

// NewLineCache wraps router.
func NewLineCache(router grant.LineRouter, cache redis.Cmdable, ttl time.Duration, logger *slog.Logger) *LineCache {
	return &LineCache{LineRouter: router, cache: cache, ttl: ttl, logger: logger}
}

// Lines returns the cached line list.
func (l *LineCache) Lines(ctx context.Context) ([]emby.Line, error) {
	return Remember(ctx, l.cache, l.logger, LinesKey, l.ttl, l.LineRouter.Lines)
}
