package middleware

import (
	"errors"
	"net/http"

	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/pkg/apperror"
	"agribid-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.Code >= http.StatusInternalServerError {
				logger.Log.Error("Request failed", "path", c.FullPath(), "status", appErr.Code, "error", err, "request_id", requestID(c))
			}
			response.Error(c, appErr.Code, appErr.Message, nil)
			return
		}

		// Internal details never reach the client.
		logger.Log.Error("Internal Server Error", "path", c.FullPath(), "error", err, "request_id", requestID(c))
		response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", nil)
	}
}
