package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

// RateLimitConfig configures the per-actor token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// IdleTTL is how long a limiter may go unused before Run drops it.
	IdleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per authenticated actor. Manual rotations hit the
// remote providers directly, so a client that floods the API also floods them.
type RateLimiter struct {
	cfg   RateLimitConfig
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// NewRateLimiter creates a RateLimiter. A zero IdleTTL defaults to one hour.
func NewRateLimiter(cfg RateLimitConfig, clock clockwork.Clock) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = time.Hour
	}
	return &RateLimiter{cfg: cfg, clock: clock, entries: make(map[string]*limiterEntry)}
}

func (r *RateLimiter) limiterFor(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(r.cfg.RequestsPerSecond), r.cfg.Burst)}
		r.entries[key] = entry
	}
	entry.lastSeen = r.clock.Now()
	return entry.limiter
}

// sweep drops limiters idle for longer than IdleTTL and returns how many remain.
func (r *RateLimiter) sweep() int {
	threshold := r.clock.Now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.entries {
		if entry.lastSeen.Before(threshold) {
			delete(r.entries, key)
		}
	}
	return len(r.entries)
}

// Run sweeps idle limiters until ctx is cancelled.
func (r *RateLimiter) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.cfg.IdleTTL / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.sweep()
		}
	}
}

// Middleware enforces the limit. It must run after AuthenticationMiddleware; requests
// without an actor are rejected with 401.
//
// Rejected requests get 429 with a Retry-After header in whole seconds.
func (r *RateLimiter) Middleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := authDomain.ActorFromContext(c.Request.Context())
		if !ok {
			logger.Error("rate limit middleware: no authenticated actor in context")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authentication is required",
			})
			return
		}

		limiter := r.limiterFor(actor.String())
		if limiter.Allow() {
			c.Next()
			return
		}

		reservation := limiter.Reserve()
		retryAfter := int(reservation.Delay().Round(time.Second) / time.Second)
		reservation.Cancel()
		if retryAfter < 1 {
			retryAfter = 1
		}

		logger.Debug("rate limit exceeded",
			slog.String("actor", actor.String()),
			slog.Int("retry_after", retryAfter))

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate_limit_exceeded",
			"message": "Too many requests. Please retry after the specified delay.",
		})
	}
}
