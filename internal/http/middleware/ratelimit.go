package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	RPS     float64
	Burst   int
	Exempt  []string // path prefixes that bypass the limiter
	IdleTTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors keeps one token bucket per client IP and forgets idle clients.
type visitors struct {
	mu      sync.Mutex
	items   map[string]*visitor
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	swept   time.Time
}

func (v *visitors) limiter(ip string, now time.Time) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	if now.Sub(v.swept) > v.idleTTL {
		for key, item := range v.items {
			if now.Sub(item.lastSeen) > v.idleTTL {
				delete(v.items, key)
			}
		}
		v.swept = now
	}

	item, ok := v.items[ip]
	if !ok {
		item = &visitor{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.items[ip] = item
	}
	item.lastSeen = now
	return item.limiter
}

func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RPS <= 0 {
		cfg.RPS = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 40
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}
	exempt := normalizeStringList(cfg.Exempt)

	clients := &visitors{
		items:   make(map[string]*visitor),
		rps:     rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		swept:   time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasAnyPrefix(r.URL.Path, exempt) {
				next.ServeHTTP(w, r)
				return
			}
			if !clients.limiter(extractIP(r.RemoteAddr), time.Now()).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}
