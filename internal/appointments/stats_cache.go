package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsCache memoizes CloserStats per closer. Every write that changes a
// closer's appointment set must call Invalidate.
//
// Fills are guarded by a per-closer generation: read Generation before
// computing, then Set only stores the stats if no Invalidate happened since.
type StatsCache interface {
	Get(ctx context.Context, closerID string) (*CloserStats, bool, error)
	Generation(ctx context.Context, closerID string) (int64, error)
	Set(ctx context.Context, stats CloserStats, generation int64) (bool, error)
	Invalidate(ctx context.Context, closerIDs ...string) error
}

// generationTTL only bounds how long idle counters linger.
const generationTTL = 24 * time.Hour

// setIfGeneration stores the stats only while the generation counter still
// holds the value read before they were computed.
var setIfGeneration = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisStatsCache stores CloserStats as JSON with a TTL.
type RedisStatsCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStatsCache returns nil when redisClient is nil so callers can skip caching.
func NewRedisStatsCache(redisClient *redis.Client, ttl time.Duration) *RedisStatsCache {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStatsCache{redis: redisClient, ttl: ttl}
}

func (c *RedisStatsCache) key(closerID string) string {
	return fmt.Sprintf("closer-stats:%s", closerID)
}

func (c *RedisStatsCache) generationKey(closerID string) string {
	return fmt.Sprintf("closer-stats-gen:%s", closerID)
}

func (c *RedisStatsCache) Get(ctx context.Context, closerID string) (*CloserStats, bool, error) {
	data, err := c.redis.Get(ctx, c.key(closerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("appointments: stats cache get: %w", err)
	}
	var stats CloserStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, fmt.Errorf("appointments: stats cache decode: %w", err)
	}
	return &stats, true, nil
}

func (c *RedisStatsCache) Generation(ctx context.Context, closerID string) (int64, error) {
	gen, err := c.redis.Get(ctx, c.generationKey(closerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("appointments: stats cache generation: %w", err)
	}
	return gen, nil
}

// Set reports false when the stats were dropped because the closer was
// invalidated after generation was read.
func (c *RedisStatsCache) Set(ctx context.Context, stats CloserStats, generation int64) (bool, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return false, fmt.Errorf("appointments: stats cache encode: %w", err)
	}
	stored, err := setIfGeneration.Run(ctx, c.redis,
		[]string{c.generationKey(stats.CloserID), c.key(stats.CloserID)},
		strconv.FormatInt(generation, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("appointments: stats cache set: %w", err)
	}
	return stored == 1, nil
}

// Invalidate bumps each closer's generation and drops the cached stats in one
// MULTI/EXEC so a fill computed before the write can no longer land.
func (c *RedisStatsCache) Invalidate(ctx context.Context, closerIDs ...string) error {
	ids := make([]string, 0, len(closerIDs))
	for _, id := range closerIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, c.generationKey(id))
			pipe.Expire(ctx, c.generationKey(id), generationTTL)
			pipe.Del(ctx, c.key(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appointments: stats cache invalidate: %w", err)
	}
	return nil
}

var _ StatsCache = (*RedisStatsCache)(nil)
