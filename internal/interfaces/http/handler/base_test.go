package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/shared"
	"github.com/bricksync/backend/internal/interfaces/http/dto"
	"github.com/bricksync/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestContext builds a gin context with a bare GET request attached
func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	t.Run("context value set by middleware wins", func(t *testing.T) {
		c, _ := newTestContext()
		c.Set(middleware.RequestIDContextKey, "ctx-id")
		c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
		assert.Equal(t, "ctx-id", getRequestID(c))
	})

	t.Run("falls back to the request header", func(t *testing.T) {
		c, _ := newTestContext()
		c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
		assert.Equal(t, "header-id", getRequestID(c))
	})

	t.Run("empty when neither is present", func(t *testing.T) {
		c, _ := newTestContext()
		assert.Empty(t, getRequestID(c))
	})
}

func TestGetTenantID(t *testing.T) {
	t.Run("reads the JWT claim", func(t *testing.T) {
		tenantID := uuid.New()
		c, _ := newTestContext()
		c.Set("jwt_tenant_id", tenantID.String())

		got, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, tenantID, got)
	})

	t.Run("errors without an authenticated tenant", func(t *testing.T) {
		c, _ := newTestContext()
		_, err := getTenantID(c)
		assert.Error(t, err)
	})
}

func TestBaseHandlerSuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("Success", func(t *testing.T) {
		c, rec := newTestContext()
		h.Success(c, map[string]string{"provider": "bricklink"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeResponse(t, rec).Success)
	})

	t.Run("Created", func(t *testing.T) {
		c, rec := newTestContext()
		h.Created(c, map[string]string{"id": uuid.NewString()})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, decodeResponse(t, rec).Success)
	})

	t.Run("NoContent writes an empty body", func(t *testing.T) {
		engine := gin.New()
		engine.DELETE("/api/v1/credentials/:provider", func(c *gin.Context) {
			h.NoContent(c)
		})

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/credentials/bricklink", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.Bytes())
	})
}

func TestBaseHandlerErrorHelpers(t *testing.T) {
	h := &BaseHandler{}
	tests := []struct {
		name       string
		send       func(*gin.Context)
		wantStatus int
		wantCode   string
	}{
		{"BadRequest", func(c *gin.Context) { h.BadRequest(c, "bad payload") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"NotFound", func(c *gin.Context) { h.NotFound(c, "no such order") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"Unauthorized", func(c *gin.Context) { h.Unauthorized(c, "token missing") }, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"Forbidden", func(c *gin.Context) { h.Forbidden(c, "wrong tenant") }, http.StatusForbidden, dto.ErrCodeForbidden},
		{"Conflict", func(c *gin.Context) { h.Conflict(c, "version changed") }, http.StatusConflict, dto.ErrCodeConflict},
		{"InternalError", func(c *gin.Context) { h.InternalError(c, "boom") }, http.StatusInternalServerError, dto.ErrCodeInternal},
		{"TooManyRequests", func(c *gin.Context) { h.TooManyRequests(c, "slow down") }, http.StatusTooManyRequests, dto.ErrCodeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext()
			tt.send(c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBaseHandlerErrorCarriesRequestID(t *testing.T) {
	h := &BaseHandler{}
	c, rec := newTestContext()
	c.Set(middleware.RequestIDContextKey, "req-777")

	h.BadRequest(c, "bad payload")

	assert.Equal(t, "req-777", decodeResponse(t, rec).Error.RequestID)
}

func TestBaseHandlerErrorWithCodeDerivesStatus(t *testing.T) {
	h := &BaseHandler{}
	c, rec := newTestContext()

	h.ErrorWithCode(c, dto.ErrCodeInsufficientStock, "only 2 lots left")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, dto.ErrCodeInsufficientStock, decodeResponse(t, rec).Error.Code)
}

func TestBaseHandlerValidationError(t *testing.T) {
	h := &BaseHandler{}
	c, rec := newTestContext()
	c.Set(middleware.RequestIDContextKey, "req-val")

	h.ValidationError(c, []dto.ValidationDetail{
		{Field: "callback_url", Message: "Invalid URL format"},
		{Field: "fields", Message: "This field is required"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-val", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
}

func TestHandleError_DomainCodes(t *testing.T) {
	h := &BaseHandler{}
	tests := []struct {
		domainCode string
		wantStatus int
		wantCode   string
	}{
		{"NOT_FOUND", http.StatusNotFound, dto.ErrCodeNotFound},
		{"ALREADY_EXISTS", http.StatusConflict, dto.ErrCodeAlreadyExists},
		{"INVALID_INPUT", http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"UNAUTHORIZED", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"FORBIDDEN", http.StatusForbidden, dto.ErrCodeForbidden},
		{"INVALID_STATE", http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"CONCURRENCY_CONFLICT", http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"INSUFFICIENT_STOCK", http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock},
		{"PROVIDER_UNAVAILABLE", http.StatusServiceUnavailable, dto.ErrCodeProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.domainCode, func(t *testing.T) {
			c, rec := newTestContext()

			h.HandleError(c, shared.NewDomainError(tt.domainCode, "invariant failed"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestHandleError_WrappedDomainError(t *testing.T) {
	h := &BaseHandler{}
	c, rec := newTestContext()

	wrapped := fmt.Errorf("loading order: %w", shared.NewDomainError("NOT_FOUND", "Order not found"))
	h.HandleError(c, wrapped)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, rec).Error.Code)
}

func TestHandleError_MarketplaceAppError(t *testing.T) {
	h := &BaseHandler{}
	tests := []struct {
		name       string
		code       marketplace.ErrorCode
		wantStatus int
	}{
		{"rate limited maps to 429", marketplace.ErrorCodeRateLimited, http.StatusTooManyRequests},
		{"open breaker maps to 429", marketplace.ErrorCodeCircuitBreakerOpen, http.StatusTooManyRequests},
		{"auth failure maps to 401", marketplace.ErrorCodeAuth, http.StatusUnauthorized},
		{"timeout maps to 502", marketplace.ErrorCodeTimeout, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext()

			h.HandleError(c, marketplace.NewAppError(marketplace.ProviderCodeBrickLink, tt.code, "upstream refused"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, string(tt.code), decodeResponse(t, rec).Error.Code)
		})
	}
}

func TestHandleError_CredentialSentinels(t *testing.T) {
	h := &BaseHandler{}
	c, rec := newTestContext()

	h.HandleError(c, fmt.Errorf("lookup: %w", credential.ErrNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleError_FallbackAndNil(t *testing.T) {
	h := &BaseHandler{}

	t.Run("nil writes nothing", func(t *testing.T) {
		c, rec := newTestContext()
		h.HandleError(c, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.Bytes())
	})

	t.Run("unknown errors become opaque 500s", func(t *testing.T) {
		c, rec := newTestContext()
		h.HandleError(c, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeResponse(t, rec)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
	})
}

func TestBaseHandlerUnprocessableEntity(t *testing.T) {
	h := &BaseHandler{}
	c, rec := newTestContext()

	h.UnprocessableEntity(c, dto.ErrCodeBusinessRule, "Order already shipped")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, dto.ErrCodeBusinessRule, decodeResponse(t, rec).Error.Code)
}
