package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tradementor/capitalengine/internal/engine"
)

const snapshotKeyPrefix = "capital_snapshot:"

// SnapshotCache keeps recent reconciliation snapshots in Redis so dashboard
// refreshes within the TTL skip the resolve/aggregate round trips. A nil
// cache is inert: every call degrades to a miss, so the engine runs fine
// without Redis.
type SnapshotCache struct {
	redis *redis.Client
	ttl   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewSnapshotCache(redisClient *redis.Client, ttl time.Duration) *SnapshotCache {
	if redisClient == nil {
		return nil
	}
	return &SnapshotCache{redis: redisClient, ttl: ttl}
}

// Get returns the cached snapshot for the user, if any.
func (c *SnapshotCache) Get(ctx context.Context, userID string) (engine.Snapshot, bool) {
	var snap engine.Snapshot
	if c == nil {
		return snap, false
	}

	data, err := c.redis.Get(ctx, snapshotKeyPrefix+userID).Bytes()
	if err != nil {
		c.misses.Add(1)
		return snap, false
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		c.misses.Add(1)
		return snap, false
	}

	c.hits.Add(1)
	return snap, true
}

// Set stores the snapshot under the configured TTL.
func (c *SnapshotCache) Set(ctx context.Context, snap engine.Snapshot) {
	if c == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, snapshotKeyPrefix+snap.UserID, data, c.ttl).Err()
}

// Invalidate drops the user's snapshot. Called after any capital mutation:
// settlement, trade creation, soft deletion.
func (c *SnapshotCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}
	_ = c.redis.Del(ctx, snapshotKeyPrefix+userID).Err()
}

// Stats reports hit and miss counts since startup.
func (c *SnapshotCache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
