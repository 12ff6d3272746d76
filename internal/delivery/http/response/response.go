package response

import (
	"net/http"

	"agribid-backend/internal/domain"

	"github.com/gin-gonic/gin"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Error     any    `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Page wraps one page of a listing.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func envelope(c *gin.Context, success bool, message string) Response {
	return Response{
		Success:   success,
		Message:   message,
		RequestID: c.GetString(string(domain.KeyRequestID)),
	}
}

// Success sends a success response
func Success(c *gin.Context, code int, message string, data any) {
	body := envelope(c, true, message)
	body.Data = data
	c.JSON(code, body)
}

// Paginated sends one page of items. A nil slice is sent as [].
func Paginated[T any](c *gin.Context, message string, items []T, total int64, page, pageSize int) {
	if items == nil {
		items = []T{}
	}
	Success(c, http.StatusOK, message, Page[T]{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// Error sends an error response
func Error(c *gin.Context, code int, message string, err any) {
	body := envelope(c, false, message)
	body.Error = err
	c.JSON(code, body)
}
