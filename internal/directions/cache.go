package directions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"route-editor/internal/logging"
	"route-editor/internal/models"
)

// Cache stores computed routes keyed by CacheKey
type Cache interface {
	Get(ctx context.Context, key string) (*models.RouteCacheEntry, error)
	Set(ctx context.Context, entry *models.RouteCacheEntry) error
}

type cachedClient struct {
	inner  Client
	cache  Cache
	logger *zap.Logger
}

// NewCachedClient wraps inner with a read-through cache. Cache errors are
// logged and never fail a route computation.
func NewCachedClient(inner Client, cache Cache, logger *zap.Logger) Client {
	return &cachedClient{
		inner:  inner,
		cache:  cache,
		logger: logging.OrNop(logger).Named("route_cache"),
	}
}

func (c *cachedClient) ComputeRoute(ctx context.Context, origin, destination models.Coordinates, waypoints []models.Coordinates) (*Route, error) {
	key := CacheKey(origin, destination, waypoints)

	cached, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Route cache read failed", zap.Error(err))
	} else if cached != nil {
		return &Route{
			LegDurations: append([]float64(nil), cached.LegDurations...),
			Geometry:     cached.Geometry,
		}, nil
	}

	c.logger.Debug("Route cache miss", zap.Int("waypoints", len(waypoints)))
	route, err := c.inner.ComputeRoute(ctx, origin, destination, waypoints)
	if err != nil {
		return nil, err
	}

	entry := &models.RouteCacheEntry{
		Key:          key,
		LegDurations: route.LegDurations,
		Geometry:     route.Geometry,
		CreatedAt:    time.Now(),
	}
	if err := c.cache.Set(ctx, entry); err != nil {
		c.logger.Warn("Route cache write failed", zap.Error(err))
	}
	return route, nil
}
