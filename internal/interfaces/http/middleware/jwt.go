package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/infrastructure/auth"
	"github.com/bricksync/backend/internal/infrastructure/logger"
)

// JWT context keys
const (
	JWTClaimsKey   = "jwt_claims"
	JWTUserIDKey   = "jwt_user_id"
	JWTTenantIDKey = "jwt_tenant_id"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// JWTMiddlewareConfig configures the auth middleware
type JWTMiddlewareConfig struct {
	// JWTService validates tokens, required
	JWTService *auth.JWTService
	// TokenBlacklist rejects revoked sessions when set
	TokenBlacklist auth.TokenBlacklist
	// SkipPaths bypass authentication entirely
	SkipPaths []string
	// Logger for auth failures and revocation check errors
	Logger *zap.Logger
}

// JWTAuthMiddlewareWithConfig authenticates dashboard requests. Beyond
// validating the signature it consults the blacklist, then binds the tenant
// and user onto both the gin context and the request context so repository
// scoping and log attribution see the same identity.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			rejectUnauthenticated(c, cfg, auth.ErrInvalidToken, "Missing or malformed authorization header")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(tokenString)
		if err != nil {
			rejectUnauthenticated(c, cfg, err, "Token validation failed")
			return
		}

		if revoked := checkRevocation(c, cfg, claims); revoked {
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTUserIDKey, claims.UserID)
		c.Set(JWTTenantIDKey, claims.TenantID)

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithUserID(ctx, log, claims.UserID)
		ctx, _ = logger.WithTenantID(ctx, log, claims.TenantID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, BearerPrefix)
	return token, token != ""
}

// checkRevocation consults the blacklist for the token's JTI and the user's
// global cutoff. Blacklist lookup errors fail open: a Redis blip must not
// lock every tenant out of the dashboard. The rejection path returns true
// after aborting the request.
func checkRevocation(c *gin.Context, cfg JWTMiddlewareConfig, claims *auth.Claims) bool {
	if cfg.TokenBlacklist == nil {
		return false
	}
	ctx := c.Request.Context()

	if claims.ID != "" {
		revoked, err := cfg.TokenBlacklist.IsRevoked(ctx, claims.ID)
		switch {
		case err != nil:
			if cfg.Logger != nil {
				cfg.Logger.Error("Failed to check token revocation",
					zap.String("jti", claims.ID), zap.Error(err))
			}
		case revoked:
			rejectUnauthenticated(c, cfg, auth.ErrTokenBlacklisted, "Token has been revoked")
			return true
		}
	}

	if claims.UserID != "" {
		revoked, err := cfg.TokenBlacklist.IsUserRevokedSince(ctx, claims.UserID, claims.GetIssuedAtTime())
		switch {
		case err != nil:
			if cfg.Logger != nil {
				cfg.Logger.Error("Failed to check user revocation",
					zap.String("user_id", claims.UserID), zap.Error(err))
			}
		case revoked:
			rejectUnauthenticated(c, cfg, auth.ErrTokenBlacklisted, "User session has been invalidated")
			return true
		}
	}
	return false
}

func rejectUnauthenticated(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	if cfg.Logger != nil {
		cfg.Logger.Warn("JWT authentication failed",
			zap.Error(err),
			zap.String("message", message),
			zap.String("path", c.Request.URL.Path),
		)
	}

	errorCode := "UNAUTHORIZED"
	errorMessage := "Authentication required"
	switch err {
	case auth.ErrExpiredToken:
		errorCode = "TOKEN_EXPIRED"
		errorMessage = "Token has expired"
	case auth.ErrInvalidToken:
		errorCode = "INVALID_TOKEN"
		errorMessage = "Invalid token"
	case auth.ErrInvalidTokenType:
		errorCode = "INVALID_TOKEN_TYPE"
		errorMessage = "Invalid token type"
	case auth.ErrTokenNotYetValid:
		errorCode = "TOKEN_NOT_VALID"
		errorMessage = "Token is not yet valid"
	case auth.ErrTokenBlacklisted:
		errorCode = "TOKEN_REVOKED"
		errorMessage = "Token has been revoked"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    errorCode,
			"message": errorMessage,
		},
	})
}

// GetJWTClaims returns the authenticated claims, or nil outside an
// authenticated request
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTUserID returns the authenticated user ID, or ""
func GetJWTUserID(c *gin.Context) string {
	if userID, exists := c.Get(JWTUserIDKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

// GetJWTTenantID returns the authenticated tenant ID, or "". Handlers use
// this as the sole source of tenant scope; a tenant ID in a path or body is
// never trusted.
func GetJWTTenantID(c *gin.Context) string {
	if tenantID, exists := c.Get(JWTTenantIDKey); exists {
		if id, ok := tenantID.(string); ok {
			return id
		}
	}
	return ""
}
