package middleware

import (
	"time"

	"agribid-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records request count and latency per matched route.
func MetricsMiddleware(m metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
