package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bricksync/backend/internal/interfaces/http/dto"
)

// BodyLimit caps the request body at maxBytes. Requests declaring a larger
// Content-Length are rejected up front with 413; bodies without a declared
// length are wrapped in a MaxBytesReader so a handler reading the body hits
// the cap mid-stream. Webhook routes mount this with a tighter cap than the
// rest of the API since marketplace notification payloads are small.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID(
					"REQUEST_TOO_LARGE",
					"Request body exceeds maximum allowed size",
					c.GetString(RequestIDContextKey),
				))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
