package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"boardflow/domain"
)

// Cache wraps a Store with Redis-backed caching of board snapshots. A nil
// Redis client degrades to plain pass-through so single-binary deployments
// work without Redis.
type Cache struct {
	*Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Store wrapper using the provided Redis client and TTL.
func NewCache(base *Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Store: base, redis: client, ttl: ttl}
}

// BoardSnapshot loads a board snapshot through the cache.
func (c *Cache) BoardSnapshot(ctx context.Context, boardID string) (domain.BoardSnapshot, error) {
	if snap, ok := c.loadFromCache(ctx, boardID); ok {
		return snap, nil
	}

	snap, err := c.Store.BoardSnapshot(ctx, boardID)
	if err != nil {
		return domain.BoardSnapshot{}, err
	}

	c.store(ctx, boardID, snap)
	return snap, nil
}

// InvalidateBoard drops the cached snapshot for a board. Mutation handlers
// call it after every successful write so the next snapshot fetch is fresh.
func (c *Cache) InvalidateBoard(ctx context.Context, boardID string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, snapshotCacheKey(boardID)).Err()
}

func (c *Cache) loadFromCache(ctx context.Context, boardID string) (domain.BoardSnapshot, bool) {
	if c.redis == nil {
		return domain.BoardSnapshot{}, false
	}
	data, err := c.redis.Get(ctx, snapshotCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, snapshotCacheKey(boardID)).Err()
		}
		return domain.BoardSnapshot{}, false
	}
	var snap domain.BoardSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = c.redis.Del(ctx, snapshotCacheKey(boardID)).Err()
		return domain.BoardSnapshot{}, false
	}
	return snap, true
}

func (c *Cache) store(ctx context.Context, boardID string, snap domain.BoardSnapshot) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, snapshotCacheKey(boardID), data, c.ttl).Err()
}

func snapshotCacheKey(boardID string) string {
	return "board:" + boardID + ":snapshot"
}
