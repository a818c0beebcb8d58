package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cardio-insights-server/internal/domain"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients:   make(map[string]*clientLimiter),
		rps:       rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether the client may proceed now.
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterSweepEvery {
		for key, cl := range l.clients {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	cl, ok := l.clients[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[client] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked clients.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware rejects over-limit requests with 429 and the standard error envelope.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewAPIError(
				domain.CodeRateLimit,
				"Too many requests",
				"",
				RequestID(c),
			))
			return
		}
		c.Next()
	}
}
