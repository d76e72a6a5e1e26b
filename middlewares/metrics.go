package middlewares

import (
	"strconv"
	"time"

	"github.com/Kariqs/readpage-api/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware labels requests by route template so path parameters
// do not explode the label space.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		m.ObserveRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
