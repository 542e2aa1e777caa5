package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/routemate/bus-booking-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// EntityCache memoizes reference entities (schedules, buses, routes,
// companies) by id so a batch of bookings resolves each distinct entity at
// most once. Entries carry a TTL, but schedule entries are additionally
// invalidated explicitly whenever the lifecycle engine mutates that
// schedule's inventory, so a customer never reads stale seat counts after
// their own cancellation.
type EntityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewEntityCache creates a cache backed by the given Redis client
func NewEntityCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *EntityCache {
	return &EntityCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewRedisClient builds a Redis client from configuration
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Key builds the cache key for an entity type and id
func Key(entityType, id string) string {
	return fmt.Sprintf("entity:%s:%s", entityType, id)
}

// Get loads a cached entity into dest. Returns false on a miss; a broken
// Redis connection is treated as a miss so lookups degrade to the database.
func (c *EntityCache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Warn("Entity cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Entity cache entry corrupt, dropping")
		c.client.Del(ctx, key)
		return false
	}

	return true
}

// Set stores an entity under the given key with the configured TTL
func (c *EntityCache) Set(ctx context.Context, key string, entity interface{}) {
	data, err := json.Marshal(entity)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to marshal cache entry")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Entity cache write failed")
	}
}

// Invalidate removes keys from the cache. Called by the lifecycle engine
// after any committed inventory mutation.
func (c *EntityCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).Warn("Entity cache invalidation failed")
	}
}
