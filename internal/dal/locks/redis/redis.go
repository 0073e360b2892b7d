package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Both scripts act only while the key still holds our token, so a lock
// that expired and was taken over by another instance is left alone.
const (
	releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`
	extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`
)

type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *goredis.Cmd
}

// Locker is a cross-process lock built on SET NX PX.
// The TTL bounds how long a crashed holder can block other instances;
// a live holder keeps the lease with Extend.
type Locker struct {
	rdb client
	key string
	ttl time.Duration

	mu    sync.Mutex
	token string
}

func NewLocker(rdb client, key string, ttl time.Duration) *Locker {
	return &Locker{
		rdb: rdb,
		key: key,
		ttl: ttl,
	}
}

// TTL is the lease length granted by TryAcquire and Extend.
func (l *Locker) TTL() time.Duration {
	return l.ttl
}

func (l *Locker) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != "" {
		return false, nil
	}

	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", l.key, err)
	}
	if ok {
		l.token = token
	}

	return ok, nil
}

// Extend renews the lease for another TTL. It reports false once the lease
// has expired or belongs to someone else; the holder must stop working then.
func (l *Locker) Extend(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return false, nil
	}

	n, err := l.rdb.Eval(ctx, extendScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to extend lock %q: %w", l.key, err)
	}
	if n == 0 {
		l.token = ""

		return false, nil
	}

	return true, nil
}

func (l *Locker) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return nil
	}

	token := l.token
	l.token = ""
	if err := l.rdb.Eval(ctx, releaseScript, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %q: %w", l.key, err)
	}

	return nil
}
