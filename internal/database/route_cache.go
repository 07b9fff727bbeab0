package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"route-editor/internal/models"
)

// RouteCache stores directions results keyed by waypoint sequence
type RouteCache struct {
	db  *DB
	ttl time.Duration
}

func (c *RouteCache) Get(ctx context.Context, key string) (*models.RouteCacheEntry, error) {
	query := c.db.rebind(`
		SELECT cache_key, leg_durations, geometry, created_at
		FROM route_cache
		WHERE cache_key = ?
	`)

	var entry models.RouteCacheEntry
	var legs []byte
	err := c.db.conn.QueryRowContext(ctx, query, key).Scan(&entry.Key, &legs, &entry.Geometry, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached route: %w", err)
	}

	if c.ttl > 0 && time.Since(entry.CreatedAt) > c.ttl {
		return nil, nil
	}
	if err := json.Unmarshal(legs, &entry.LegDurations); err != nil {
		return nil, fmt.Errorf("failed to decode cached route: %w", err)
	}
	return &entry, nil
}

func (c *RouteCache) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	legs, err := json.Marshal(entry.LegDurations)
	if err != nil {
		return fmt.Errorf("failed to encode cached route: %w", err)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := c.db.rebind(`
		INSERT INTO route_cache (cache_key, leg_durations, geometry, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			leg_durations = excluded.leg_durations,
			geometry = excluded.geometry,
			created_at = excluded.created_at
	`)
	if _, err := c.db.conn.ExecContext(ctx, query, entry.Key, legs, entry.Geometry, createdAt.UTC()); err != nil {
		return fmt.Errorf("failed to set cached route: %w", err)
	}
	return nil
}

// Prune deletes entries older than the TTL and returns how many were removed
func (c *RouteCache) Prune(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	query := c.db.rebind(`DELETE FROM route_cache WHERE created_at < ?`)
	res, err := c.db.conn.ExecContext(ctx, query, time.Now().Add(-c.ttl).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune route cache: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every cached route
func (c *RouteCache) Clear(ctx context.Context) error {
	if _, err := c.db.conn.ExecContext(ctx, "DELETE FROM route_cache"); err != nil {
		return fmt.Errorf("failed to clear route cache: %w", err)
	}
	return nil
}
