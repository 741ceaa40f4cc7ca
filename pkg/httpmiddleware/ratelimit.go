package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RateLimitPolicy limits the requests selected by Match.
type RateLimitPolicy struct {
	// Name separates the counters of different policies for the same client.
	Name   string
	Max    int
	Window time.Duration
	Match  func(*http.Request) bool
}

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max and Window form the default policy.
	Max    int
	Window time.Duration
	// Policies are tried in order; the first match is used instead of the
	// default policy.
	Policies []RateLimitPolicy
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests, e.g. health probes.
	Skip func(*http.Request) bool
}

// slidingWindow approximates a sliding window by weighting the previous
// fixed window by its overlap with the current one.
type slidingWindow struct {
	size  time.Duration
	start time.Time
	prev  float64
	curr  float64
}

func (sw *slidingWindow) advance(now time.Time) {
	start := now.Truncate(sw.size)
	switch d := start.Sub(sw.start); {
	case d <= 0:
		return
	case d == sw.size:
		sw.prev = sw.curr
	default:
		sw.prev = 0
	}
	sw.curr = 0
	sw.start = start
}

// take counts one request if it fits into limit.
func (sw *slidingWindow) take(now time.Time, limit int) (remaining int, resetAt time.Time, ok bool) {
	sw.advance(now)

	overlap := 1 - float64(now.Sub(sw.start))/float64(sw.size)
	effective := sw.prev*overlap + sw.curr
	resetAt = sw.start.Add(sw.size)
	if effective >= float64(limit) {
		return 0, resetAt, false
	}

	sw.curr++
	return max(0, limit-int(math.Ceil(effective+1))), resetAt, true
}

// expired reports whether the window carries no weight at now.
func (sw *slidingWindow) expired(now time.Time) bool {
	return now.Sub(sw.start) >= 2*sw.size
}

type rateLimiter struct {
	def      RateLimitPolicy
	policies []RateLimitPolicy
	keyFunc  func(*http.Request) string
	skip     func(*http.Request) bool

	mu      sync.Mutex
	windows map[string]*slidingWindow
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		def:      RateLimitPolicy{Name: "default", Max: cfg.Max, Window: cfg.Window},
		policies: cfg.Policies,
		keyFunc:  cfg.KeyFunc,
		skip:     cfg.Skip,
		windows:  make(map[string]*slidingWindow),
	}
	if rl.keyFunc == nil {
		rl.keyFunc = clientIP
	}
	return rl
}

func (rl *rateLimiter) policy(r *http.Request) RateLimitPolicy {
	for _, p := range rl.policies {
		if p.Match != nil && p.Match(r) {
			return p
		}
	}
	return rl.def
}

func (rl *rateLimiter) allow(p RateLimitPolicy, client string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	key := p.Name + "|" + client

	rl.mu.Lock()
	defer rl.mu.Unlock()

	sw, found := rl.windows[key]
	if !found {
		sw = &slidingWindow{size: p.Window, start: now.Truncate(p.Window)}
		rl.windows[key] = sw
	}
	return sw.take(now, p.Max)
}

// cleanup drops windows that no longer affect any decision.
func (rl *rateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, sw := range rl.windows {
		if sw.expired(now) {
			delete(rl.windows, key)
		}
	}
}

func (rl *rateLimiter) cleanupInterval() time.Duration {
	interval := rl.def.Window
	for _, p := range rl.policies {
		interval = max(interval, p.Window)
	}
	return 2 * interval
}

func (rl *rateLimiter) startCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.cleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.cleanup(now)
			}
		}
	}()
}

// RateLimit enforces per-client sliding window limits. Rejected requests get
// 429 with the API error envelope and Retry-After. Every limited response
// carries X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset.
//
// Stale counters are never evicted; use RateLimitWithCleanup in servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newRateLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a background goroutine evicting
// stale counters until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	rl.startCleanup(ctx)
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.skip != nil && rl.skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		p := rl.policy(r)
		client := rl.keyFunc(r)
		remaining, resetAt, ok := rl.allow(p, client, time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(p.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !ok {
			retryAfter := max(0, time.Until(resetAt))
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			zctx.From(r.Context()).Debug("Rate limited",
				zap.String("policy", p.Name),
				zap.String("client", client),
			)
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// RemoteAddr host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
