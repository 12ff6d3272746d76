package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"agribid-backend/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h gin.HandlerFunc) map[string]any {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.Set(string(domain.KeyRequestID), "req-1")
		h(c)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestEnvelope(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		body := serve(t, func(c *gin.Context) {
			Success(c, http.StatusOK, "ok", map[string]string{"id": "p-1"})
		})
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "req-1", body["request_id"])
		assert.Equal(t, map[string]any{"id": "p-1"}, body["data"])
		assert.NotContains(t, body, "error")
	})

	t.Run("error", func(t *testing.T) {
		body := serve(t, func(c *gin.Context) {
			Error(c, http.StatusBadRequest, "bad", []string{"email is required"})
		})
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "bad", body["message"])
		assert.Equal(t, []any{"email is required"}, body["error"])
	})

	t.Run("empty page", func(t *testing.T) {
		body := serve(t, func(c *gin.Context) {
			Paginated[string](c, "none", nil, 0, 1, 20)
		})
		data := body["data"].(map[string]any)
		assert.Equal(t, []any{}, data["items"])
		assert.EqualValues(t, 20, data["pageSize"])
	})
}
