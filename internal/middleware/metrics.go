package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/liveclass-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route so unknown
// paths cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

// Metrics records request count and latency per route template. Probe and
// scrape endpoints are skipped.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, path := range skip {
		skipped[path] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if _, ok := skipped[path]; ok {
			return
		}
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
