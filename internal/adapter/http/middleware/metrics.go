package middleware

import (
	"strconv"
	"time"

	"tipjar/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route pattern.
// Unmatched paths share the "unmatched" label.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
