package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript counts requests per key in a fixed window. The count and
// its expiry are set in one atomic script, so concurrent requests can't
// leave a counter without a TTL.
var allowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

type Config struct {
	// Maximum requests per window per key
	Limit int

	// Window duration
	Window time.Duration

	// Key prefix, "ratelimit:" if not set
	Prefix string
}

// Limiter is a fixed-window rate limiter backed by redis, shared across
// instances of the service
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func New(rdb *redis.Client, cfg Config) (*Limiter, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client must not be nil")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}

	return &Limiter{
		rdb:    rdb,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: prefix,
	}, nil
}

// Allow reports whether one more request under the key fits the window
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := allowScript.Run(ctx, l.rdb, []string{l.prefix + key}, l.limit, l.window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit script error: %w", err)
	}

	return res == 1, nil
}
