package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"once/server/internal/interfaces"
)

// ErrTurnInFlight is returned when a turn is already being processed for
// the story. Callers should report busy rather than queue.
var ErrTurnInFlight = errors.New("a turn is already in flight for this story")

// unlockScript releases the lock only if we still hold it, so an expired
// lock taken over by another worker is never deleted from under them.
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// RedisLocker serializes turns per story with a SET NX PX lock.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Lock(ctx context.Context, storyID uint, ttl time.Duration) (interfaces.UnlockFunc, error) {
	key := fmt.Sprintf("%sturn:%d", l.prefix, storyID)
	val := fmt.Sprintf("%d", time.Now().UnixNano())

	ok, err := l.client.SetNX(ctx, key, val, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error acquiring turn lock: %w", err)
	}
	if !ok {
		return nil, ErrTurnInFlight
	}

	return func(ctx context.Context) error {
		return l.client.Eval(ctx, unlockScript, []string{key}, val).Err()
	}, nil
}

// LocalLocker is the in-process fallback used when redis is unavailable.
// It serializes turns within a single instance only.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[uint]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[uint]struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, storyID uint, ttl time.Duration) (interfaces.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[storyID]; ok {
		return nil, ErrTurnInFlight
	}
	l.held[storyID] = struct{}{}

	return func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, storyID)
		return nil
	}, nil
}
