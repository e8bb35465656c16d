package middleware

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/gomcp/pkg/jsonrpc"
	"github.com/fyrsmithlabs/gomcp/pkg/mcperr"
	"github.com/fyrsmithlabs/gomcp/pkg/reqcontext"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// limiterSet hands out one rate.Limiter per client key, created lazily.
// A session-scoped runtime never sees enough distinct clients for this map
// to need eviction of its own -- sessions already expire via pkg/session,
// and the limiter entry they leave behind is a handful of bytes.
type limiterSet struct {
	mu       sync.Mutex
	cfg      RateLimitConfig
	limiters map[string]*rate.Limiter
}

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	return &limiterSet{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

func (ls *limiterSet) limiterFor(key string) *rate.Limiter {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l, ok := ls.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(ls.cfg.RequestsPerSecond), ls.cfg.Burst)
		ls.limiters[key] = l
	}
	return l
}

// RateLimit rejects requests once a client's session exceeds its token
// bucket, returning mcperr.RateLimited with a "retry_after" (seconds) data
// field computed from the bucket's own reservation, so the client knows
// how long to back off rather than just that it must. Notifications are
// never throttled: there is no response channel to carry the rejection
// back on.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 100
	}
	limiters := newLimiterSet(cfg)

	return func(next Handler) Handler {
		return func(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
			if req.IsNotification() {
				return next(ctx, req)
			}

			key := reqcontext.SessionIDFromContext(ctx)
			if key == "" {
				key = "anonymous"
			}

			now := time.Now()
			reservation := limiters.limiterFor(key).ReserveN(now, 1)
			if delay := reservation.DelayFrom(now); delay > 0 {
				reservation.CancelAt(now)
				retryAfter := int(math.Ceil(delay.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				rerr := mcperr.RateLimited("Rate limit exceeded").WithData(map[string]int{"retry_after": retryAfter})
				return jsonrpc.NewErrorResponse(req.ID, rerr)
			}

			return next(ctx, req)
		}
	}
}
