// ABOUTME: Rate limiting middleware with fixed-window counters keyed by client IP
// ABOUTME: Write endpoints (compile, save, import) get a tighter budget than reads

package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// counter tracks requests within a fixed time window.
type counter struct {
	count     int
	expiresAt time.Time
}

// RateLimiter enforces a maximum number of requests per time window.
// Each client key gets an independent counter.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*counter
	limit   int
	window  time.Duration
	created int // windows created since the last sweep
	now     func() time.Time
}

// sweepEvery is how many new windows trigger a sweep of expired ones
const sweepEvery = 100

// NewRateLimiter creates a rate limiter that allows limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*counter),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether a request for key is within the limit. When it is
// not, the second value is the time until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, exists := rl.windows[key]

	// The boundary instant starts a new window
	if !exists || !now.Before(c.expiresAt) {
		rl.windows[key] = &counter{count: 1, expiresAt: now.Add(rl.window)}

		rl.created++
		if rl.created >= sweepEvery {
			rl.sweep(now)
			rl.created = 0
		}
		return true, 0
	}

	if c.count < rl.limit {
		c.count++
		return true, 0
	}
	return false, c.expiresAt.Sub(now)
}

// sweep removes expired windows. Must be called while holding rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, c := range rl.windows {
		if !now.Before(c.expiresAt) {
			delete(rl.windows, k)
		}
	}
}

// ClientIP extracts the client IP from X-Forwarded-For (leftmost) or RemoteAddr.
// X-Forwarded-For is trusted, which assumes a reverse proxy in front of the
// service that sets it.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		ip := strings.TrimSpace(parts[0])
		if ip != "" && net.ParseIP(ip) != nil {
			return "ip:" + ip
		}
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return "ip:" + host
}

// Limits holds the per-tier limiters. A nil *Limits disables rate limiting.
type Limits struct {
	Write   *RateLimiter
	Default *RateLimiter
}

// NewLimits creates per-minute limiters for the write and default tiers
func NewLimits(writePerMinute, defaultPerMinute int) *Limits {
	return &Limits{
		Write:   NewRateLimiter(writePerMinute, time.Minute),
		Default: NewRateLimiter(defaultPerMinute, time.Minute),
	}
}

// ForMethod picks the tier for an HTTP method: POST and PUT are writes
func (l *Limits) ForMethod(method string) *RateLimiter {
	if l == nil {
		return nil
	}
	switch method {
	case http.MethodPost, http.MethodPut:
		return l.Write
	default:
		return l.Default
	}
}

// RateLimit returns middleware that enforces limiter per keyFunc result.
// A nil limiter or keyFunc disables it; an empty key passes through.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || keyFunc == nil {
				next(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next(w, r)
				return
			}

			allowed, retryAfter := limiter.Allow(key)
			if allowed {
				next(w, r)
				return
			}

			retrySeconds := int(math.Ceil(retryAfter.Seconds()))
			slog.Warn("Rate limit exceeded", "key", key, "path", sanitizePath(r.URL.Path), "retry_after", retrySeconds)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retrySeconds))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":       "Rate limit exceeded",
				"code":        http.StatusTooManyRequests,
				"retry_after": retrySeconds,
			})
		}
	}
}
