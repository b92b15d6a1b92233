package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window in-memory limiter. Each key gets a token
// bucket that refills when its window elapses. State lives in process memory,
// so limits are per instance, which is good enough to keep one misbehaving
// sync client from starving the rest.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	tokens   int
	windowAt time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go rl.evictStale()
	return rl
}

// evictStale drops buckets idle for two full windows so the map does not
// grow with every IP that ever hit the service
func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, b := range rl.buckets {
			if now.Sub(b.windowAt) > rl.window*2 {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow consumes a token for key, reporting whether the request may proceed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowAt) >= rl.window {
		rl.buckets[key] = &bucket{tokens: rl.limit - 1, windowAt: now}
		return true
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Remaining reports how many requests key has left in the current window
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || time.Since(b.windowAt) >= rl.window {
		return rl.limit
	}
	return b.tokens
}

func (rl *RateLimiter) setQuotaHeaders(c *gin.Context, key string) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
}

func (rl *RateLimiter) reject(c *gin.Context, code, message string) {
	c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// RateLimit limits requests per caller. Authenticated requests are keyed by
// the tenant from the verified JWT, everything else by client IP. The
// X-Tenant-ID header is never used for keying since it is caller controlled.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if tenantID := c.GetString(JWTTenantIDKey); tenantID != "" {
			key = "tenant:" + tenantID
		}

		if !limiter.Allow(key) {
			limiter.reject(c, "RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later.")
			return
		}

		limiter.setQuotaHeaders(c, key)
		c.Next()
	}
}

// AuthRateLimit is a stricter limiter for authentication endpoints. Keys
// carry an auth prefix so the bucket state stays isolated from the global
// limiter even when the same RateLimiter instance backs both.
func AuthRateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "auth:" + c.ClientIP()

		if !limiter.Allow(key) {
			limiter.reject(c, "AUTH_RATE_LIMIT_EXCEEDED", "Too many authentication attempts. Please try again later.")
			return
		}

		limiter.setQuotaHeaders(c, key)
		c.Next()
	}
}
