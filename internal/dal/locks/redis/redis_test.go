package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// fakeRedis honours key expiry and understands the two lock scripts.
type fakeRedis struct {
	mu      sync.Mutex
	keys    map[string]entry
	failing error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]entry{}}
}

func (f *fakeRedis) get(key string) (entry, bool) {
	e, ok := f.keys[key]
	if ok && time.Now().After(e.expiresAt) {
		delete(f.keys, key)

		return entry{}, false
	}

	return e, ok
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing != nil {
		return goredis.NewBoolResult(false, f.failing)
	}
	if _, ok := f.get(key); ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.keys[key] = entry{value: value.(string), expiresAt: time.Now().Add(expiration)}

	return goredis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...any) *goredis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing != nil {
		return goredis.NewCmdResult(nil, f.failing)
	}

	e, ok := f.get(keys[0])
	if !ok || e.value != args[0].(string) {
		return goredis.NewCmdResult(int64(0), nil)
	}

	switch script {
	case releaseScript:
		delete(f.keys, keys[0])
	case extendScript:
		e.expiresAt = time.Now().Add(time.Duration(args[1].(int64)) * time.Millisecond)
		f.keys[keys[0]] = e
	default:
		return goredis.NewCmdResult(nil, errors.New("unknown script"))
	}

	return goredis.NewCmdResult(int64(1), nil)
}

func TestAcquireIsExclusiveAcrossLockers(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	first := NewLocker(rdb, "dispatch", time.Minute)
	second := NewLocker(rdb, "dispatch", time.Minute)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseLeavesForeignLeaseAlone(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	first := NewLocker(rdb, "dispatch", 20*time.Millisecond)
	second := NewLocker(rdb, "dispatch", time.Minute)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx))

	third := NewLocker(rdb, "dispatch", time.Minute)
	ok, err = third.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second instance still holds the lease")
}

func TestExtendKeepsLeaseAlive(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	holder := NewLocker(rdb, "dispatch", 60*time.Millisecond)
	other := NewLocker(rdb, "dispatch", time.Minute)

	ok, err := holder.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	for range 4 {
		time.Sleep(30 * time.Millisecond)

		extended, err := holder.Extend(ctx)
		require.NoError(t, err)
		require.True(t, extended)
	}

	ok, err = other.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtendFailsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	holder := NewLocker(rdb, "dispatch", 20*time.Millisecond)
	other := NewLocker(rdb, "dispatch", time.Minute)

	ok, err := holder.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	ok, err = other.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := holder.Extend(ctx)
	require.NoError(t, err)
	assert.False(t, extended)

	// The lost lease is forgotten, so the holder may compete again later.
	require.NoError(t, other.Release(ctx))
	ok, err = holder.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentUseOfOneLocker(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	locker := NewLocker(rdb, "dispatch", time.Minute)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, err := locker.TryAcquire(ctx)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)

	require.NoError(t, locker.Release(ctx))
	ok, err := NewLocker(rdb, "dispatch", time.Minute).TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireSurfacesRedisErrors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failing = errors.New("connection refused")

	ok, err := NewLocker(rdb, "dispatch", time.Minute).TryAcquire(context.Background())

	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
}
