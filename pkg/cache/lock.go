package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// GenerationLockKey is the Redis key every process takes before a generation run.
const GenerationLockKey = "ttms:lock:generation"

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another holder")

// Locker serializes critical sections. Release must be called exactly once per
// successful Acquire.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalLock is a process-wide mutex honouring context cancellation while waiting.
type LocalLock struct {
	ch chan struct{}
}

// NewLocalLock builds an unlocked LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free or ctx is done.
func (l *LocalLock) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-l.ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLock is a single-key SET NX PX lock shared by every API replica. The key
// expires after ttl so a crashed holder cannot block generation forever.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLock builds a lock on key.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLock{client: client, key: key, ttl: ttl, retry: 100 * time.Millisecond}
}

// NewGenerationLock returns the lock guarding timetable generation. With a Redis
// client it is shared by the API and the CLI; without one it only covers this process.
func NewGenerationLock(client *redis.Client, ttl time.Duration) Locker {
	if client == nil {
		return NewLocalLock()
	}
	return NewRedisLock(client, GenerationLockKey, ttl)
}

// Acquire polls until the key is claimed or ctx is done.
func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// Release on a fresh context so a cancelled request still frees the key.
					releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
				})
			}, nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockHeld, l.key, ctx.Err())
		case <-timer.C:
		}
	}
}
