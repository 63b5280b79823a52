package assignment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BatchLock guards auto-assign so only one batch runs at a time.
type BatchLock interface {
	// TryLock returns ok=false without blocking when the lock is held elsewhere.
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// LocalLock is a process-local BatchLock.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) TryLock(ctx context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

const autoAssignLockKey = "leadops:auto-assign:lock"

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a BatchLock shared by every API instance. The TTL bounds how
// long a crashed holder can block later runs.
type RedisLock struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{redis: client, key: autoAssignLockKey, ttl: ttl}
}

func (l *RedisLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("assignment: acquire batch lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Release with a fresh context so a cancelled request still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.redis, []string{l.key}, token).Err()
	}
	return release, true, nil
}

var (
	_ BatchLock = (*LocalLock)(nil)
	_ BatchLock = (*RedisLock)(nil)
)
