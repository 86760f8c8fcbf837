package api

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// limitTier names a per-minute request budget. Every tier keeps its own
// buckets, so a client that exhausts record writes can still read the feed.
type limitTier string

const (
	tierAuth  limitTier = "auth"  // sign-in and sign-up, per client IP
	tierWrite limitTier = "write" // record add/update/delete, per API key
	tierFeed  limitTier = "feed"  // snapshot and change polling, per API key
	tierOther limitTier = "other" // session and profile, per API key
)

// limit returns the configured per-minute budget for t.
func (c Config) limit(t limitTier) int {
	switch t {
	case tierAuth:
		return c.RateLimitAuth
	case tierWrite:
		return c.RateLimitWrite
	case tierFeed:
		return c.RateLimitFeed
	default:
		return c.RateLimitOther
	}
}

const rateWindow = time.Minute

// RateLimiter counts requests per key in fixed one-minute windows.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	count    int
	windowAt time.Time
}

// NewRateLimiter creates a RateLimiter that prunes idle buckets until Close.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-rl.stop:
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()
	return rl
}

// Close stops the pruning goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// Allow reports whether key has budget left in its current window. When it
// does not, retry is the time until the window rolls over.
func (rl *RateLimiter) Allow(key string, limit int) (ok bool, retry time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, found := rl.buckets[key]
	if !found || now.Sub(b.windowAt) >= rateWindow {
		rl.buckets[key] = &bucket{count: 1, windowAt: now}
		return true, 0
	}
	if b.count >= limit {
		return false, b.windowAt.Add(rateWindow).Sub(now)
	}
	b.count++
	return true, 0
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-2 * rateWindow)
	for k, b := range rl.buckets {
		if b.windowAt.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

// rejectRateLimited records the violation and answers 429 with Retry-After.
func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request, keyID string, tier limitTier, retry time.Duration) {
	if err := s.store.InsertRateLimitEvent(keyID, clientIP(r), string(tier)); err != nil {
		slog.Error("log rate limit event", "err", err)
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
}

// withIPLimit throttles the unauthenticated credential endpoints by the
// caller's address.
func (s *Server) withIPLimit(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if ok, retry := s.rateLimiter.Allow("ip:"+host, s.config.limit(tierAuth)); !ok {
			s.rejectRateLimited(w, r, "", tierAuth, retry)
			return
		}
		handler(w, r)
	}
}

// withRateLimit throttles an authenticated handler per API key within tier.
func (s *Server) withRateLimit(handler http.HandlerFunc, tier limitTier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := getUserFromContext(r.Context())
		if user == nil {
			handler(w, r)
			return
		}
		ok, retry := s.rateLimiter.Allow("key:"+user.KeyID+":"+string(tier), s.config.limit(tier))
		if !ok {
			s.rejectRateLimited(w, r, user.KeyID, tier, retry)
			return
		}
		handler(w, r)
	}
}

// clientIP extracts the client IP from the request, checking X-Forwarded-For first.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
