package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type fakeRedis struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFake() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, d time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = d
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeRedis) Close() error { return nil }

func TestAllowWithinWindow(t *testing.T) {
	fake := newFake()
	w := newWindow(fake, Options{Limit: 3, Window: time.Minute})
	now := time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC)
	w.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.True(t, w.Allow(ctx, "10.0.0.1"), "request %d", i+1)
	}
	assert.False(t, w.Allow(ctx, "10.0.0.1"))
	assert.True(t, w.Allow(ctx, "10.0.0.2"), "other clients have their own window")

	assert.Len(t, fake.expires, 2)
	for _, d := range fake.expires {
		assert.Equal(t, time.Minute, d)
	}

	now = now.Add(time.Minute)
	assert.True(t, w.Allow(ctx, "10.0.0.1"), "next window starts fresh")
}

func TestAllowFailsOpen(t *testing.T) {
	fake := newFake()
	fake.err = errors.New("connection refused")
	w := newWindow(fake, Options{Limit: 1})
	for i := 0; i < 5; i++ {
		assert.True(t, w.Allow(context.Background(), "c"))
	}
	assert.Error(t, w.Ping(context.Background()))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{RedisURL: "::not a url"})
	assert.Error(t, err)
}
