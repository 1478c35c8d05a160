package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of redis.Cmdable the locker uses.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker holds a key set with NX and a lease expiry.
type RedisLocker struct {
	client        RedisClient
	key           string
	lease         time.Duration
	retryInterval time.Duration
	nowFunc       func() time.Time

	mu    sync.Mutex
	token string
}

// NewRedisLocker returns a locker on key.
func NewRedisLocker(client RedisClient, key string, lease time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		key:           key,
		lease:         lease,
		retryInterval: defaultRetryInterval,
		nowFunc:       time.Now,
	}
}

// TryAcquire implements Locker.
func (l *RedisLocker) TryAcquire(ctx context.Context, timeout time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return false, nil
	}
	token := uuid.NewString()
	ok, err := retry(ctx, timeout, l.retryInterval, l.nowFunc, func() (bool, error) {
		set, err := l.client.SetNX(ctx, l.key, token, l.lease).Result()
		if err != nil {
			return false, fmt.Errorf("setnx %s: %w", l.key, err)
		}
		return set, nil
	})
	if ok {
		l.token = token
	}
	return ok, err
}

// Release implements Locker.
func (l *RedisLocker) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return ErrNotHeld
	}
	token := l.token
	l.token = ""

	n, err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
