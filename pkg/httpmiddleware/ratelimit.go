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
)

// RateLimitConfig configures RateLimit. Max or Window <= 0 turns limiting off.
type RateLimitConfig struct {
	// Max requests a single client may make per Window.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client; defaults to clientAddr.
	KeyFunc func(*http.Request) string
	// Skip lets matching requests through unchecked and without headers.
	Skip func(*http.Request) bool
}

func (c RateLimitConfig) enabled() bool { return c.Max > 0 && c.Window > 0 }

// counter approximates a sliding window with two fixed buckets: the hits of
// the bucket before start count in proportion to how much of it still falls
// inside the trailing window.
type counter struct {
	start   time.Time
	current float64
	prior   float64
}

// advance moves the counter into the bucket containing now.
func (c *counter) advance(now time.Time, window time.Duration) {
	bucket := now.Truncate(window)
	switch gap := bucket.Sub(c.start); {
	case gap <= 0:
		return
	case gap == window:
		c.prior = c.current
	default:
		c.prior = 0
	}
	c.current = 0
	c.start = bucket
}

func (c *counter) weight(now time.Time, window time.Duration) float64 {
	left := 1 - float64(now.Sub(c.start))/float64(window)
	return c.prior*math.Max(left, 0) + c.current
}

type limiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientAddr
	}
	return &limiter{cfg: cfg, clients: map[string]*counter{}}
}

// take records a hit for key when it fits under Max. It reports how many hits
// remain and when the current bucket ends.
func (l *limiter) take(key string, now time.Time) (left int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.clients[key]
	if c == nil {
		c = &counter{start: now.Truncate(l.cfg.Window)}
		l.clients[key] = c
	}
	c.advance(now, l.cfg.Window)

	reset = c.start.Add(l.cfg.Window)
	used := c.weight(now, l.cfg.Window)
	if used >= float64(l.cfg.Max) {
		return 0, reset, false
	}
	c.current++
	return max(l.cfg.Max-int(math.Ceil(used+1)), 0), reset, true
}

// evict forgets clients idle for two windows; their prior bucket is empty.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.clients {
		if now.Sub(c.start) >= 2*l.cfg.Window {
			delete(l.clients, key)
		}
	}
}

func (l *limiter) evictEvery(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.evict(now)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	if !l.cfg.enabled() {
		return next
	}
	limit := strconv.Itoa(l.cfg.Max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.Skip != nil && l.cfg.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		now := time.Now()
		left, reset, ok := l.take(l.cfg.KeyFunc(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := math.Ceil(max(reset.Sub(now), 0).Seconds())
			h.Set("Retry-After", strconv.Itoa(int(wait)))
			writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits each client to cfg.Max requests per cfg.Window and answers
// 429 {"detail": "rate limit exceeded"} with Retry-After beyond that. Checked
// responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Idle clients are never evicted; long-running servers
// want RateLimitWithCleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit plus a goroutine, bound to ctx, that
// drops idle clients every two windows.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	if cfg.enabled() {
		go l.evictEvery(ctx, 2*cfg.Window)
	}
	return l.middleware
}

// clientAddr keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the host part of RemoteAddr.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
