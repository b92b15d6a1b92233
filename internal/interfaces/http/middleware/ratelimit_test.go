package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowAndRefill(t *testing.T) {
	limiter := NewRateLimiter(2, 50*time.Millisecond)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"), "bucket exhausted inside window")

	// Another key has its own bucket
	assert.True(t, limiter.Allow("10.0.0.2"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, limiter.Allow("10.0.0.1"), "window elapsed, bucket refilled")
}

func TestRateLimiter_Remaining(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)

	assert.Equal(t, 5, limiter.Remaining("fresh"))
	limiter.Allow("fresh")
	limiter.Allow("fresh")
	assert.Equal(t, 3, limiter.Remaining("fresh"))
}

func TestRateLimiter_ConcurrentCallersStayWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(100, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
}

func newRateLimitedRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.POST("/api/v1/sync/orders/bricklink", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return router
}

func limitedRequest(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/orders/bricklink", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_RejectsAfterQuotaWithRetryAfter(t *testing.T) {
	router := newRateLimitedRouter(RateLimit(NewRateLimiter(2, time.Minute)))

	for i := 0; i < 2; i++ {
		w := limitedRequest(router, "203.0.113.9:4000")
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := limitedRequest(router, "203.0.113.9:4000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimit_KeysAuthenticatedTrafficByTenant(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	router := gin.New()
	// Simulates the JWT middleware having bound the tenant earlier in the chain
	router.Use(func(c *gin.Context) {
		c.Set(JWTTenantIDKey, c.GetHeader("X-Test-Tenant"))
	})
	router.Use(RateLimit(limiter))
	router.GET("/api/v1/orders", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(tenant string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Test-Tenant", tenant)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("tenant-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("tenant-a"))
	// Same IP, different tenant: separate bucket
	assert.Equal(t, http.StatusOK, send("tenant-b"))
}

func TestRateLimit_IgnoresClientSuppliedTenantHeader(t *testing.T) {
	router := newRateLimitedRouter(RateLimit(NewRateLimiter(1, time.Minute)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/orders/bricklink", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Tenant-ID", "tenant-a")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)

	// Changing the header must not mint a fresh bucket for the same IP
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/sync/orders/bricklink", nil)
	req2.RemoteAddr = "203.0.113.9:4000"
	req2.Header.Set("X-Tenant-ID", "tenant-b")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestAuthRateLimit_StricterCodeAndIsolation(t *testing.T) {
	// One limiter instance backing both middlewares
	limiter := NewRateLimiter(2, time.Minute)

	router := gin.New()
	login := router.Group("/auth")
	login.Use(AuthRateLimit(limiter))
	login.POST("/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	api := router.Group("/api")
	api.Use(RateLimit(limiter))
	api.GET("/data", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "198.51.100.7:5000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, send(http.MethodPost, "/auth/login").Code)
	}

	blocked := send(http.MethodPost, "/auth/login")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Contains(t, blocked.Body.String(), "AUTH_RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))

	// The auth prefix keeps login attempts from draining the API quota
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/data").Code)
}

func TestAuthRateLimit_PerIPBuckets(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	router := gin.New()
	router.Use(AuthRateLimit(limiter))
	router.POST("/auth/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("192.0.2.1:100"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1:100"))
	assert.Equal(t, http.StatusOK, send("192.0.2.2:100"))
}
