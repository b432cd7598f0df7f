// Package ratelimit is a per-client token bucket for the cache-write
// and relay endpoints.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	cleanupInterval = 5 * time.Minute
	visitorTTL      = 10 * time.Minute
)

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

type Limiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	visitors map[string]*visitor
	rate     float64
	burst    float64
}

func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	return newLimiter(requestsPerSecond, burst, clockwork.NewRealClock())
}

func newLimiter(requestsPerSecond float64, burst int, clock clockwork.Clock) *Limiter {
	l := &Limiter{
		clock:    clock,
		visitors: make(map[string]*visitor),
		rate:     requestsPerSecond,
		burst:    float64(burst),
	}
	return l
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)

	v, exists := l.visitors[ip]
	if !exists {
		l.visitors[ip] = &visitor{tokens: l.burst - 1, lastSeen: now}
		return true
	}

	elapsed := now.Sub(v.lastSeen).Seconds()
	v.lastSeen = now
	v.tokens += elapsed * l.rate
	if v.tokens > l.burst {
		v.tokens = l.burst
	}

	if v.tokens < 1 {
		return false
	}

	v.tokens--
	return true
}

// pruneLocked drops visitors idle past the TTL. Run inline on each
// allow call instead of a background goroutine so a limiter needs no
// teardown.
func (l *Limiter) pruneLocked(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, ip)
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			ip = forwarded
		}

		if !l.allow(ip) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "10")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
