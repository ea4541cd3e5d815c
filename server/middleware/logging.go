package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/streamhub/logger"
)

// RequestLogger returns a Gin middleware that logs every request with method,
// path, status code, and duration. Health-check paths are silently skipped,
// as are the long-lived stream requests (they are logged by the stream
// handler itself on connect and disconnect).
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isQuietEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		fields := map[string]interface{}{
			"method":  c.Request.Method,
			"path":    path,
			"status":  status,
			"latency": latency.String(),
			"client":  c.ClientIP(),
		}
		if id, exists := c.Get("request_id"); exists {
			fields[logger.FieldRequestID] = id
		}

		switch {
		case status >= 500:
			logger.Error("Request completed", fields)
		case status >= 400:
			logger.Warn("Request completed", fields)
		default:
			logger.Debug("Request completed", fields)
		}
	}
}

func isQuietEndpoint(path string) bool {
	quiet := []string{"/health", "/metrics", "/api/sse"}
	for _, q := range quiet {
		if path == q {
			return true
		}
	}
	return false
}
