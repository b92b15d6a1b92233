package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricksync/backend/internal/infrastructure/auth"
	"github.com/bricksync/backend/internal/infrastructure/config"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		RefreshSecret:          "test-refresh-secret-key-32-chars",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "bricksync-test",
		MaxRefreshCount:        10,
	})
}

func newTestTokenPair(t *testing.T, jwtService *auth.JWTService) (*auth.TokenPair, auth.GenerateTokenInput) {
	t.Helper()
	input := auth.GenerateTokenInput{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Email:    "seller@example.com",
	}
	pair, err := jwtService.GenerateTokenPair(input)
	require.NoError(t, err)
	return pair, input
}

func newAuthRouter(cfg JWTMiddlewareConfig, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/api/v1/orders", handler)
	router.GET("/api/v1/ping", handler)
	return router
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestJWTAuth_ValidTokenBindsIdentity(t *testing.T) {
	jwtService := newTestJWTService()
	pair, input := newTestTokenPair(t, jwtService)

	var gotTenant, gotUser string
	router := newAuthRouter(JWTMiddlewareConfig{JWTService: jwtService}, func(c *gin.Context) {
		gotTenant = GetJWTTenantID(c)
		gotUser = GetJWTUserID(c)
		require.NotNil(t, GetJWTClaims(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(pair.AccessToken))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, input.TenantID.String(), gotTenant)
	assert.Equal(t, input.UserID.String(), gotUser)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	router := newAuthRouter(JWTMiddlewareConfig{JWTService: newTestJWTService()}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestJWTAuth_MalformedHeader(t *testing.T) {
	router := newAuthRouter(JWTMiddlewareConfig{JWTService: newTestJWTService()}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	expiredService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-at-least-32-chars",
		AccessTokenExpiration:  -1 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "bricksync-test",
	})
	pair, _ := newTestTokenPair(t, expiredService)

	router := newAuthRouter(JWTMiddlewareConfig{JWTService: expiredService}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(pair.AccessToken))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
}

func TestJWTAuth_RefreshTokenRejectedOnAPIRoute(t *testing.T) {
	jwtService := newTestJWTService()
	pair, _ := newTestTokenPair(t, jwtService)

	router := newAuthRouter(JWTMiddlewareConfig{JWTService: jwtService}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(pair.RefreshToken))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_SkipPaths(t *testing.T) {
	router := newAuthRouter(JWTMiddlewareConfig{
		JWTService: newTestJWTService(),
		SkipPaths:  []string{"/api/v1/ping"},
	}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_RevokedTokenRejected(t *testing.T) {
	jwtService := newTestJWTService()
	blacklist := auth.NewInMemoryTokenBlacklist()
	pair, _ := newTestTokenPair(t, jwtService)

	claims, err := jwtService.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, blacklist.Revoke(context.Background(), claims.ID, claims.GetRemainingTTL()))

	router := newAuthRouter(JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
	}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(pair.AccessToken))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_REVOKED")
}

func TestJWTAuth_UserWideRevocationRejected(t *testing.T) {
	jwtService := newTestJWTService()
	blacklist := auth.NewInMemoryTokenBlacklist()
	pair, input := newTestTokenPair(t, jwtService)

	// Cutoff recorded after issuance kills the existing session
	time.Sleep(time.Millisecond)
	require.NoError(t, blacklist.RevokeUser(context.Background(), input.UserID.String(), time.Hour))

	router := newAuthRouter(JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
	}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(pair.AccessToken))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_REVOKED")
}

// failingBlacklist simulates Redis being unreachable
type failingBlacklist struct{}

func (failingBlacklist) Revoke(context.Context, string, time.Duration) error { return nil }
func (failingBlacklist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis unreachable")
}
func (failingBlacklist) RevokeUser(context.Context, string, time.Duration) error { return nil }
func (failingBlacklist) IsUserRevokedSince(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("redis unreachable")
}

func TestJWTAuth_BlacklistOutageFailsOpen(t *testing.T) {
	jwtService := newTestJWTService()
	pair, _ := newTestTokenPair(t, jwtService)

	router := newAuthRouter(JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: failingBlacklist{},
	}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(pair.AccessToken))

	// Availability wins, a blacklist outage must not lock tenants out
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetJWTHelpers_OutsideAuthenticatedRequest(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTUserID(c))
	assert.Empty(t, GetJWTTenantID(c))
}
