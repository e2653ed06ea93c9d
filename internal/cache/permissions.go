// Package cache provides a short-TTL Redis cache for resolved permission
// sets. Permission reads tolerate staleness (a check racing a role edit is
// an accepted consistency window), so entries are TTL-bounded and
// invalidation after a role mutation is best-effort.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ntarasov/bastion/internal/permissions"
)

const (
	permKeyPrefix = "perms:"
	permTTL       = 30 * time.Second
)

// PermissionCache stores resolved permission sets keyed by (guild, user).
type PermissionCache struct {
	rdb *goredis.Client
}

// New creates a PermissionCache from a Redis URL and verifies the connection.
func New(redisURL string) (*PermissionCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &PermissionCache{rdb: rdb}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(rdb *goredis.Client) *PermissionCache {
	return &PermissionCache{rdb: rdb}
}

// Close closes the Redis connection.
func (c *PermissionCache) Close() error {
	return c.rdb.Close()
}

// Get returns the cached permission set for the user in the guild.
// The second result is false on a miss.
func (c *PermissionCache) Get(ctx context.Context, guildID, userID int64) (permissions.Permission, bool, error) {
	val, err := c.rdb.Get(ctx, permKey(guildID, userID)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting cached permissions: %w", err)
	}

	bits, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing cached permissions: %w", err)
	}
	return permissions.Permission(bits), true, nil
}

// Set stores the resolved permission set with the cache TTL.
func (c *PermissionCache) Set(ctx context.Context, guildID, userID int64, perms permissions.Permission) error {
	return c.rdb.Set(ctx, permKey(guildID, userID), int64(perms), permTTL).Err()
}

// InvalidateGuild drops every cached entry for a guild. Called after role
// mutations; failures are reported but callers treat them as advisory.
func (c *PermissionCache) InvalidateGuild(ctx context.Context, guildID int64) error {
	pattern := permKeyPrefix + strconv.FormatInt(guildID, 10) + ":*"

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scanning permission keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("deleting permission keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// InvalidateUser drops the cached entry for one member.
func (c *PermissionCache) InvalidateUser(ctx context.Context, guildID, userID int64) error {
	return c.rdb.Del(ctx, permKey(guildID, userID)).Err()
}

func permKey(guildID, userID int64) string {
	return permKeyPrefix + strconv.FormatInt(guildID, 10) + ":" + strconv.FormatInt(userID, 10)
}
