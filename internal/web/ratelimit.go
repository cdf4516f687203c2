package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/ispcrm/internal/core"
)

// rateLimiter is a fixed-window limiter per client IP. Import requests draw
// from a second, smaller window so a burst of uploads cannot starve reads.
type rateLimiter struct {
	mu       sync.Mutex
	general  map[string]*window
	imports  map[string]*window
	rate     int
	importN  int
	interval time.Duration
	now      func() time.Time
}

type window struct {
	tokens int
	start  time.Time
}

// newRateLimiter allows rate requests and importRate imports per interval.
// Stale entries are dropped until ctx is cancelled.
func newRateLimiter(ctx context.Context, rate, importRate int, interval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		general:  make(map[string]*window),
		imports:  make(map[string]*window),
		rate:     rate,
		importN:  importRate,
		interval: interval,
		now:      time.Now,
	}
	go rl.cleanupLoop(ctx)
	return rl
}

func (rl *rateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-2 * rl.interval)
	for _, m := range []map[string]*window{rl.general, rl.imports} {
		for ip, w := range m {
			if w.start.Before(cutoff) {
				delete(m, ip)
			}
		}
	}
}

// allow consumes a token from the bucket of ip and reports whether one was left.
func (rl *rateLimiter) allow(buckets map[string]*window, limit int, ip string) bool {
	now := rl.now()
	w, ok := buckets[ip]
	if !ok || now.Sub(w.start) > rl.interval {
		buckets[ip] = &window{tokens: limit - 1, start: now}
		return limit > 0
	}
	if w.tokens <= 0 {
		return false
	}
	w.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		rl.mu.Lock()
		ok := rl.allow(rl.general, rl.rate, ip)
		if ok && isImport(r) {
			ok = rl.allow(rl.imports, rl.importN, ip)
		}
		rl.mu.Unlock()

		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.interval.Seconds())))
			respondMessage(w, http.StatusTooManyRequests, core.MapError(errRateLimited))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isImport(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/import")
}

// clientIP strips the port TrustedRealIP leaves on direct connections.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
