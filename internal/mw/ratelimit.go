package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// callerLimiter keeps one token bucket per caller. Location pings arrive
// authenticated, so the caller key is the user id when present and the
// client IP otherwise.
type callerLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	r       rate.Limit
	b       int
}

func newCallerLimiter(r rate.Limit, b int) *callerLimiter {
	return &callerLimiter{
		buckets: make(map[string]*rate.Limiter),
		r:       r,
		b:       b,
	}
}

func (l *callerLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.buckets[key] = limiter
	}
	return limiter
}

// RateLimiter is a middleware for per-caller rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := newCallerLimiter(r, b)
	return func(c *gin.Context) {
		key := c.GetHeader("X-User-ID")
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.get(key).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
