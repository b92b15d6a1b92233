package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey keeps this package's context values from colliding with other
// packages that store strings
type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	tenantIDKey  contextKey = "tenant_id"
	userIDKey    contextKey = "user_id"
)

// WithContext attaches a logger to the context
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by the context. Callers that reach
// code paths before the request middleware has run get a no-op logger, never
// nil.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// enrich stores an identifier on the context and stamps it onto the logger,
// so both ctx-based lookups (gorm traces) and the returned logger agree.
func enrich(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	l := logger.With(zap.String(string(key), value))
	return WithContext(ctx, l), l
}

// WithRequestID binds the correlation ID for one HTTP request or one
// scheduled sync run to the context and logger.
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return enrich(ctx, logger, requestIDKey, requestID)
}

// WithTenantID binds the acting tenant. Every log line below the auth
// middleware carries this, which is what makes per-tenant incident triage
// possible.
func WithTenantID(ctx context.Context, logger *zap.Logger, tenantID string) (context.Context, *zap.Logger) {
	return enrich(ctx, logger, tenantIDKey, tenantID)
}

// WithUserID binds the authenticated user
func WithUserID(ctx context.Context, logger *zap.Logger, userID string) (context.Context, *zap.Logger) {
	return enrich(ctx, logger, userIDKey, userID)
}

func fromCtx(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetRequestID returns the correlation ID bound to the context, or ""
func GetRequestID(ctx context.Context) string {
	return fromCtx(ctx, requestIDKey)
}

// GetTenantID returns the tenant bound to the context, or ""
func GetTenantID(ctx context.Context) string {
	return fromCtx(ctx, tenantIDKey)
}

// GetUserID returns the user bound to the context, or ""
func GetUserID(ctx context.Context) string {
	return fromCtx(ctx, userIDKey)
}
