package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupEvery = 5 * time.Minute
	limiterTTL          = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// RateLimiter keeps one token bucket per client IP, dropping buckets
// that go unused. This is burst protection in front of the engine; the
// real monthly metering is the quota gate.
type RateLimiter struct {
	mu         sync.Mutex
	entries    map[string]*limiterEntry
	rps        rate.Limit
	burst      int
	trustProxy bool
	done       chan struct{}
}

// NewRateLimiter builds a per-IP limiter. trustProxyHeaders must only
// be set when the server sits behind a proxy that overwrites
// X-Forwarded-For; otherwise any client can pick its own limiter key.
func NewRateLimiter(perMinute, burst int, trustProxyHeaders bool) *RateLimiter {
	rl := &RateLimiter{
		entries:    make(map[string]*limiterEntry),
		rps:        rate.Limit(float64(perMinute) / 60.0),
		burst:      burst,
		trustProxy: trustProxyHeaders,
		done:       make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	close(rl.done)
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.entries[key] = e
	}
	e.lastUse = time.Now()
	return e.limiter.Allow()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for k, e := range rl.entries {
				if now.Sub(e.lastUse) > limiterTTL {
					delete(rl.entries, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware rejects over-limit requests with 429 before they reach
// the engine.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(rl.clientKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests, please slow down"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) clientKey(r *http.Request) string {
	if rl.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
		if real := r.Header.Get("X-Real-IP"); real != "" {
			return real
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
