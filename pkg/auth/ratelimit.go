package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rhuss/tutogate/pkg/observability"
)

// ErrTooManyRequests is matched by every rate limit rejection.
var ErrTooManyRequests = errors.New("rate limit exceeded")

// RateLimitError reports which role's limit rejected the request.
type RateLimitError struct {
	Role  Role
	Limit int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per minute for role %s", e.Limit, e.Role)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrTooManyRequests
}

// RateLimiter checks whether a request should be allowed for an identity.
type RateLimiter interface {
	Allow(ctx context.Context, identity Identity) error
}

// TierConfig holds rate limit settings for a role.
type TierConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// DefaultTier labels the limit used when none of an identity's roles is
// configured.
const DefaultTier Role = "default"

// LimitFor returns the requests-per-minute limit that applies to identity:
// the highest configured limit among its roles, or defaultRPM when none of
// its roles is configured. A role configured with zero or less is unlimited
// and wins over any finite limit. The returned role names the limit's source.
func LimitFor(tiers map[Role]TierConfig, defaultRPM int, identity Identity) (Role, int) {
	role, rpm, found := DefaultTier, 0, false
	for _, r := range identity.Roles {
		tc, ok := tiers[r]
		if !ok {
			continue
		}
		if tc.RequestsPerMinute <= 0 {
			return r, 0
		}
		if !found || tc.RequestsPerMinute > rpm {
			role, rpm, found = r, tc.RequestsPerMinute, true
		}
	}
	if !found {
		return DefaultTier, defaultRPM
	}
	return role, rpm
}

// InProcessLimiter is a fixed-window rate limiter that tracks request
// counts per identity in memory.
type InProcessLimiter struct {
	tiers      map[Role]TierConfig
	defaultRPM int
	now        func() time.Time

	mu        sync.Mutex
	counters  map[string]*counter
	lastSweep time.Time
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a rate limiter with per-role configuration.
func NewInProcessLimiter(tiers map[Role]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		now:        time.Now,
		counters:   make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
func (l *InProcessLimiter) Allow(_ context.Context, identity Identity) error {
	role, rpm := LimitFor(l.tiers, l.defaultRPM, identity)
	if rpm <= 0 {
		return nil // no limit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= time.Minute {
		l.sweep(now)
	}

	c, ok := l.counters[identity.ID]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		l.counters[identity.ID] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > rpm {
		return &RateLimitError{Role: role, Limit: rpm}
	}
	return nil
}

// sweep drops counters whose window has closed. Callers hold l.mu.
func (l *InProcessLimiter) sweep(now time.Time) {
	for id, c := range l.counters {
		if now.Sub(c.windowAt) >= time.Minute {
			delete(l.counters, id)
		}
	}
	l.lastSweep = now
}

// RateLimit is Gates{}.RateLimit.
func RateLimit(limiter RateLimiter) func(http.Handler) http.Handler {
	return Gates{}.RateLimit(limiter)
}

// RateLimit returns middleware that enforces limiter for the bound identity.
// It must run after the authentication gate. Limiter faults other than a
// rejection let the request through.
func (g Gates) RateLimit(limiter RateLimiter) func(http.Handler) http.Handler {
	logger := loggerOrDefault(g.Logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				deny(w, r, logger, gateRateLimit, newDenial(KindCallerOrderingDefect, errNoIdentity))
				return
			}

			err := limiter.Allow(r.Context(), id)
			switch {
			case err == nil:
			case errors.Is(err, ErrTooManyRequests):
				role := DefaultTier
				var rle *RateLimitError
				if errors.As(err, &rle) {
					role = rle.Role
				}
				observability.RateLimitRejectedTotal.WithLabelValues(string(role)).Inc()
				deny(w, r, logger, gateRateLimit, newDenial(KindRateLimited, err), "subject", id.ID, "role", role)
				return
			default:
				logger.Warn("rate limiter unavailable, allowing request",
					"subject", id.ID,
					"error", err,
				)
			}

			recordDecision(gateRateLimit, nil)
			next.ServeHTTP(w, r)
		})
	}
}
