package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(*gin.Context) string

// KeyByClientIP charges each client address separately.
func KeyByClientIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per key with idle-bucket eviction.
type RateLimiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc
	idle  time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	sweeps  uint64
}

// NewRateLimiter allows rps requests per second per key with the given burst
// (at least 1).
func NewRateLimiter(rps float64, burst int, key KeyFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if key == nil {
		key = KeyByClientIP()
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		key:     key,
		idle:    10 * time.Minute,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Evict idle buckets every few thousand lookups.
	if rl.sweeps++; rl.sweeps >= 5000 {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idle {
				delete(rl.buckets, k)
			}
		}
		rl.sweeps = 0
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// IsRateBypass reports whether an earlier middleware exempted the request.
func IsRateBypass(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyRateBypass)
	b, _ := v.(bool)
	return b
}

// Handler enforces the limit, answering 429 with Retry-After when exceeded.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.limiterFor(rl.key(c), time.Now()).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": requestIDOf(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
