package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// statusWriter remembers the response code for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

const limiterIdleEvict = 10 * time.Minute

// ipRateLimiter hands out one token bucket per client address. Idle
// buckets are evicted on the insert path; there is no janitor goroutine.
type ipRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	inserts int
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPRateLimiter(rps, burst int) *ipRateLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &ipRateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *ipRateLimiter) Allow(addr string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[addr]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[addr] = b
		l.inserts++
		if l.inserts%256 == 0 {
			l.evictIdle()
		}
	}
	b.seen = time.Now()
	return b.lim.Allow()
}

func (l *ipRateLimiter) evictIdle() {
	cutoff := time.Now().Add(-limiterIdleEvict)
	for addr, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, addr)
		}
	}
}

// clientAddr prefers the first X-Forwarded-For hop, then the socket
// address without its port.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// corsPolicy is nil when no origins are configured, which disables CORS
// handling entirely.
type corsPolicy struct {
	wildcard bool
	allowed  map[string]struct{}
}

func newCORSPolicy(origins []string) *corsPolicy {
	p := &corsPolicy{allowed: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			p.wildcard = true
		default:
			p.allowed[o] = struct{}{}
		}
	}
	if !p.wildcard && len(p.allowed) == 0 {
		return nil
	}
	return p
}

func (p *corsPolicy) permits(origin string) bool {
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		return false
	}
	if p.wildcard {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// apply writes CORS headers and answers preflights. done means the
// middleware already wrote the response.
func (p *corsPolicy) apply(w http.ResponseWriter, r *http.Request) (done bool, status int) {
	origin := r.Header.Get("Origin")
	if p == nil || origin == "" {
		return false, 0
	}
	if !p.permits(origin) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return true, http.StatusForbidden
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	if r.Method != http.MethodOptions {
		return false, 0
	}

	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	if want := r.Header.Get("Access-Control-Request-Headers"); want != "" {
		h.Set("Access-Control-Allow-Headers", want)
	}
	h.Set("Access-Control-Max-Age", "300")
	w.WriteHeader(http.StatusNoContent)
	return true, http.StatusNoContent
}
