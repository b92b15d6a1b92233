package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricksync/backend/internal/interfaces/http/dto"
)

type saveCredentialsRequest struct {
	Fields      map[string]string `json:"fields" binding:"required"`
	Label       string            `json:"label" binding:"omitempty,max=10"`
	CallbackURL string            `json:"callback_url" binding:"omitempty,url"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.PUT("/api/v1/credentials/:provider", func(c *gin.Context) {
		var req saveCredentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func putCredentials(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/credentials/bricklink", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleValidationError_ReportsJSONFieldNames(t *testing.T) {
	router := newValidationRouter()

	w := putCredentials(router, `{"label": "way too long for the limit", "callback_url": "not-a-url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 3)

	fields := make(map[string]string, len(resp.Error.Details))
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	// json tag names, not Go field names
	assert.Equal(t, "This field is required", fields["fields"])
	assert.Contains(t, fields["label"], "at most 10 characters")
	assert.Equal(t, "Invalid URL format", fields["callback_url"])
}

func TestHandleValidationError_CarriesRequestID(t *testing.T) {
	router := newValidationRouter()

	w := putCredentials(router, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Error.RequestID)
	assert.Equal(t, w.Header().Get("X-Request-ID"), resp.Error.RequestID)
}

func TestHandleValidationError_MalformedJSON(t *testing.T) {
	router := newValidationRouter()

	w := putCredentials(router, `{"fields": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)
}

func TestHandleValidationError_ValidPayloadPasses(t *testing.T) {
	router := newValidationRouter()

	w := putCredentials(router, `{"fields": {"consumer_key": "ck"}, "label": "store"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
