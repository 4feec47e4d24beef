package web

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/willemschots/rentals/internal/errorz"
)

const (
	// maxLimitedClients is the number of clients tracked before idle ones are forgotten.
	maxLimitedClients = 10_000
	// limiterIdleTime is how long a client needs to be idle to be forgotten.
	limiterIdleTime = 10 * time.Minute
)

// keyedLimiter gives every key its own token bucket.
// At most maxClients keys are tracked.
type keyedLimiter struct {
	mu         sync.Mutex
	limit      rate.Limit
	burst      int
	maxClients int
	limiters   map[string]*clientLimiter

	// nowFunc is used to get the current time.
	nowFunc func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{
		limit:      limit,
		burst:      burst,
		maxClients: maxLimitedClients,
		limiters:   make(map[string]*clientLimiter),
		nowFunc:    time.Now,
	}
}

// allow reports whether a request for key may happen now.
func (l *keyedLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	c, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= l.maxClients {
			l.forgetIdle(now)
		}

		// Nobody was idle long enough, make room by dropping the client seen least recently.
		if len(l.limiters) >= l.maxClients {
			l.forgetOldest()
		}

		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = c
	}

	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *keyedLimiter) forgetIdle(now time.Time) {
	for key, c := range l.limiters {
		if now.Sub(c.lastSeen) > limiterIdleTime {
			delete(l.limiters, key)
		}
	}
}

func (l *keyedLimiter) forgetOldest() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)

	for key, c := range l.limiters {
		if !found || c.lastSeen.Before(oldest) {
			oldestKey, oldest, found = key, c.lastSeen, true
		}
	}

	if found {
		delete(l.limiters, oldestKey)
	}
}

// rateLimited is a middleware that limits requests per client IP.
// It expects middleware.RealIP to run first.
func (s *Server) rateLimited(l *keyedLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.allow(ip) {
				s.deps.Logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				s.handleError(w, r, errorz.ErrTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP sets RemoteAddr without a port.
		return r.RemoteAddr
	}
	return host
}
