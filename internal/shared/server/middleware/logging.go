package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gazette-monitor/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if editionID := c.GetString("editionId"); editionID != "" {
			fields["edition_id"] = editionID
		}
		if runRequestID := c.GetString("runRequestId"); runRequestID != "" {
			fields["run_request_id"] = runRequestID
		}
		telemetry.Info("request.complete", fields)
	}
}
