package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/notdp/franxx-store-sub000/internal/config"
	"github.com/notdp/franxx-store-sub000/internal/logger"
)

// RoleKeyPrefix prefixes cached user roles in Redis.
const RoleKeyPrefix = "user_role:"

// ConnectRedis opens the shared Redis client and tests the connection.
func ConnectRedis(cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", cfg.Addr, err))
		client.Close()
		return nil, err
	}

	log.Info("REDIS", fmt.Sprintf("Successfully connected to Redis at %s", cfg.Addr))
	return client, nil
}

// RoleStore is the source of truth for user roles.
type RoleStore interface {
	GetUserRole(ctx context.Context, userID string) (string, error)
}

// RoleCache caches user roles in Redis in front of a RoleStore. A nil Client
// disables caching.
type RoleCache struct {
	Client *redis.Client
	Store  RoleStore
	TTL    time.Duration
	log    *logger.Logger
}

func NewRoleCache(client *redis.Client, store RoleStore, ttl time.Duration, log *logger.Logger) *RoleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RoleCache{Client: client, Store: store, TTL: ttl, log: log}
}

// Role returns the cached role, loading and caching it on a miss. Redis errors
// fall through to the store.
func (c *RoleCache) Role(ctx context.Context, userID string) (string, error) {
	key := RoleKeyPrefix + userID

	if c.Client != nil {
		role, err := c.Client.Get(ctx, key).Result()
		switch {
		case err == nil && role != "":
			return role, nil
		case err != nil && err != redis.Nil:
			c.log.Warn("REDIS", fmt.Sprintf("Role cache read failed for %s: %v", userID, err))
		}
	}

	role, err := c.Store.GetUserRole(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load role for %s: %w", userID, err)
	}

	if c.Client != nil {
		if err := c.Client.Set(ctx, key, role, c.TTL).Err(); err != nil {
			c.log.Warn("REDIS", fmt.Sprintf("Role cache write failed for %s: %v", userID, err))
		}
	}
	return role, nil
}

// Invalidate drops the cached role so the next lookup hits the store.
func (c *RoleCache) Invalidate(ctx context.Context, userID string) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Del(ctx, RoleKeyPrefix+userID).Err()
}
