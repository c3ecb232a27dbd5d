package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Ph4tZ4/social-main/internal/domain"
	"github.com/Ph4tZ4/social-main/internal/metrics"
)

const (
	followerCachePrefix = "follower_cache:"
	followerCacheTTL    = 30 * time.Second
)

// FollowerCache provides read-through follower list caching: Redis → source
// directory. Profile updates fan out to every follower, so the list is the
// hottest lookup in the dispatcher; a short TTL keeps fan-out targets fresh
// while absorbing bursts.
type FollowerCache struct {
	rdb    goredis.Cmdable
	source domain.FollowerDirectory
}

// NewFollowerCache creates a read-through follower cache over the given
// directory.
func NewFollowerCache(rdb goredis.Cmdable, source domain.FollowerDirectory) *FollowerCache {
	return &FollowerCache{rdb: rdb, source: source}
}

// ListFollowers implements domain.FollowerDirectory with read-through
// caching. Redis failures fall through to the source; cache population is
// best-effort.
func (c *FollowerCache) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	key := followerCachePrefix + userID

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var followers []string
		if err := json.Unmarshal(data, &followers); err != nil {
			slog.Warn("Failed to unmarshal cached follower list, falling through",
				"user_id", userID, "error", err)
		} else {
			metrics.FollowerCacheHits.Inc()
			return followers, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		slog.Warn("Redis follower cache GET failed, falling through",
			"user_id", userID, "error", err)
	}

	followers, err := c.source.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	metrics.FollowerCacheMisses.Inc()

	if encoded, err := json.Marshal(followers); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, followerCacheTTL).Err(); err != nil {
			slog.Warn("Failed to populate follower cache", "user_id", userID, "error", err)
		}
	}

	return followers, nil
}

// Invalidate drops the cached follower list for a user. Exposed to the API
// layer through the internal cache-invalidation endpoint, called when the
// follow graph changes.
func (c *FollowerCache) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, followerCachePrefix+userID).Err(); err != nil {
		slog.Warn("Failed to invalidate follower cache", "user_id", userID, "error", err)
	}
}
