package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/shared"
	"github.com/bricksync/backend/internal/interfaces/http/dto"
	"github.com/bricksync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the correlation ID set by the RequestID middleware,
// falling back to the request header when the middleware is not mounted
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDContextKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// getTenantID extracts the tenant from the verified JWT claims. Headers and
// request bodies are never consulted, a caller must not pick its own tenant.
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr := middleware.GetJWTTenantID(c)
	if tenantIDStr == "" {
		return uuid.Nil, errors.New("tenant ID not found in context")
	}
	return uuid.Parse(tenantIDStr)
}

// parseProvider parses the :provider path parameter
func parseProvider(c *gin.Context) (marketplace.ProviderCode, bool) {
	provider := marketplace.ProviderCode(c.Param("provider"))
	return provider, provider.IsValid()
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// ErrorWithCode sends an error response deriving the status from the code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	statusCode := dto.GetHTTPStatus(code)
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 forbidden response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// UnprocessableEntity sends a 422 unprocessable entity response
func (h *BaseHandler) UnprocessableEntity(c *gin.Context, code, message string) {
	h.Error(c, http.StatusUnprocessableEntity, code, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 response with per-field validation details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	requestID := getRequestID(c)
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	))
}

// TooManyRequests sends a 429 too many requests response
func (h *BaseHandler) TooManyRequests(c *gin.Context, message string) {
	h.Error(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, message)
}

// appErrorStatus maps normalized marketplace error codes to HTTP statuses
func appErrorStatus(code marketplace.ErrorCode) int {
	switch code {
	case marketplace.ErrorCodeRateLimited, marketplace.ErrorCodeCircuitBreakerOpen:
		return http.StatusTooManyRequests
	case marketplace.ErrorCodeAuth, marketplace.ErrorCodeInvalidCredentials:
		return http.StatusUnauthorized
	case marketplace.ErrorCodePermission:
		return http.StatusForbidden
	case marketplace.ErrorCodeNotFound, marketplace.ErrorCodeCredentialsNotFound:
		return http.StatusNotFound
	case marketplace.ErrorCodeValidation:
		return http.StatusBadRequest
	case marketplace.ErrorCodeConflict:
		return http.StatusConflict
	case marketplace.ErrorCodeTimeout, marketplace.ErrorCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// HandleError converts domain, marketplace and standard errors to HTTP
// responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	if appErr := marketplace.AsAppError(err); appErr != nil {
		c.JSON(appErrorStatus(appErr.Code), dto.NewErrorResponseWithRequestID(
			string(appErr.Code), appErr.Message, requestID))
		return
	}

	switch {
	case errors.Is(err, credential.ErrNotFound):
		h.NotFound(c, "No credentials configured for this provider")
		return
	case errors.Is(err, credential.ErrFieldMissing), errors.Is(err, credential.ErrUnknownProvider):
		h.BadRequest(c, err.Error())
		return
	case errors.Is(err, marketplace.ErrProviderNotConfigured):
		h.NotFound(c, err.Error())
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		statusCode := dto.GetHTTPStatus(code)
		c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
