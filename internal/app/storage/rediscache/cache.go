// Package rediscache provides a Redis-backed read-through cache for movie
// lookups. Failures degrade to cache misses; Redis being down never breaks a
// request.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/filmbay/rental-service/internal/app/domain/movie"
	"github.com/filmbay/rental-service/pkg/logger"
)

// MovieCache caches individual movies by id.
type MovieCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// New creates a cache around the given client.
func New(client *redis.Client, ttl time.Duration, log *logger.Logger) *MovieCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logger.NewDefault("movie-cache")
	}
	return &MovieCache{client: client, ttl: ttl, log: log}
}

func movieKey(id int64) string {
	return fmt.Sprintf("movie:%d", id)
}

// GetMovie returns a cached movie when present.
func (c *MovieCache) GetMovie(ctx context.Context, id int64) (movie.Movie, bool) {
	raw, err := c.client.Get(ctx, movieKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("cache get failed")
		}
		return movie.Movie{}, false
	}

	var m movie.Movie
	if err := json.Unmarshal(raw, &m); err != nil {
		return movie.Movie{}, false
	}
	return m, true
}

// SetMovie stores a movie with the configured TTL.
func (c *MovieCache) SetMovie(ctx context.Context, m movie.Movie) {
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, movieKey(m.ID), raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("cache set failed")
	}
}

// InvalidateMovie drops a movie from the cache.
func (c *MovieCache) InvalidateMovie(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, movieKey(id)).Err(); err != nil {
		c.log.WithError(err).Debug("cache invalidate failed")
	}
}
