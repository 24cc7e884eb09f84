package limiter

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// counter is the slice of the Redis client the limiter uses.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Window is a fixed-window request limiter shared across instances through
// Redis. Each key gets limit requests per window.
type Window struct {
	rdb    counter
	limit  int
	window time.Duration
	now    func() time.Time
}

type Options struct {
	RedisURL string
	Limit    int
	Window   time.Duration
}

func New(opts Options) (*Window, error) {
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(ro)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return newWindow(c, opts), nil
}

func newWindow(c counter, opts Options) *Window {
	if opts.Limit <= 0 {
		opts.Limit = 60
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	return &Window{rdb: c, limit: opts.Limit, window: opts.Window, now: time.Now}
}

func (w *Window) key(client string) string {
	slot := w.now().UnixNano() / int64(w.window)
	return fmt.Sprintf("rl:%s:%d", client, slot)
}

// Allow counts one request for client and reports whether it fits in the
// current window. Redis failures let the request through.
func (w *Window) Allow(ctx context.Context, client string) bool {
	k := w.key(client)
	n, err := w.rdb.Incr(ctx, k).Result()
	if err != nil {
		log.Warn().Err(err).Str("client", client).Msg("rate limiter unavailable, allowing request")
		return true
	}
	if n == 1 {
		// first hit of the window owns the expiry
		if err := w.rdb.Expire(ctx, k, w.window).Err(); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("rate limiter expire failed")
		}
	}
	return n <= int64(w.limit)
}

// Ping checks the Redis connection.
func (w *Window) Ping(ctx context.Context) error { return w.rdb.Ping(ctx).Err() }

func (w *Window) Close() error { return w.rdb.Close() }
