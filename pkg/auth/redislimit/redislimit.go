// Package redislimit implements auth.RateLimiter on Redis so that several
// tutogate replicas share one per-identity request budget.
//
// Each identity gets a fixed one-minute window keyed by its id. The window
// counter is incremented and given its expiry atomically in a Lua script.
package redislimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/tutogate/pkg/auth"
)

// DefaultPrefix namespaces the window keys.
const DefaultPrefix = "tutogate:ratelimit:"

var fixedWindow = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Config holds the limits and key layout.
type Config struct {
	Tiers      map[auth.Role]auth.TierConfig
	DefaultRPM int

	// Prefix defaults to DefaultPrefix.
	Prefix string

	// Window defaults to one minute.
	Window time.Duration
}

// Limiter is a Redis-backed auth.RateLimiter.
type Limiter struct {
	client goredis.UniversalClient
	cfg    Config
}

var _ auth.RateLimiter = (*Limiter)(nil)

// New creates a Limiter using client.
func New(client goredis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{client: client, cfg: cfg}
}

// Allow counts the request against the identity's current window. Redis
// errors are returned as-is; auth.RateLimit lets the request through on
// anything that is not a rejection.
func (l *Limiter) Allow(ctx context.Context, identity auth.Identity) error {
	role, rpm := auth.LimitFor(l.cfg.Tiers, l.cfg.DefaultRPM, identity)
	if rpm <= 0 {
		return nil
	}

	n, err := fixedWindow.Run(ctx, l.client, []string{l.cfg.Prefix + identity.ID}, l.cfg.Window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redislimit: counting request for %q: %w", identity.ID, err)
	}
	if n > int64(rpm) {
		return &auth.RateLimitError{Role: role, Limit: rpm}
	}
	return nil
}

// Dial connects to Redis and verifies the connection with a PING.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redislimit: pinging %s: %w", addr, err)
	}
	return client, nil
}
