// Package httpmiddleware holds gin middleware shared by the HTTP server.
package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenBucket is an in-memory per-client rate limiter. Buckets refill
// continuously at perMinute tokens a minute up to capacity.
type TokenBucket struct {
	capacity float64
	rate     float64 // tokens per second
	now      func() time.Time
	log      *zap.Logger

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a limiter. A capacity of zero defaults to perMinute.
func NewTokenBucket(capacity, perMinute int, log *zap.Logger) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenBucket{
		capacity: float64(capacity),
		rate:     float64(perMinute) / 60,
		now:      time.Now,
		log:      log,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware rejects clients that ran out of tokens with 429.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			l.log.Warn("rate limited", zap.String("client_ip", ip), zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Allow takes one token from key's bucket.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.evictFull(now)
		b = &bucket{tokens: l.capacity, last: now}
		l.state[key] = b
	}

	b.tokens += now.Sub(b.last).Seconds() * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictFull drops buckets that have refilled completely; they carry no state
// a fresh bucket would not.
func (l *TokenBucket) evictFull(now time.Time) {
	if len(l.state) < 1024 || l.rate == 0 {
		return
	}
	for k, b := range l.state {
		if b.tokens+now.Sub(b.last).Seconds()*l.rate >= l.capacity {
			delete(l.state, k)
		}
	}
}
