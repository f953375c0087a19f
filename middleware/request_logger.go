package middleware

import (
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/pkg/logger"
	"github.com/gin-gonic/gin"
)

// pollingRoutes are hit every few seconds by the dashboard; successful calls log at debug.
var pollingRoutes = map[string]bool{
	"/health":                        true,
	"/api/health":                    true,
	"/api/consolidador/progreso/:id": true,
}

// RequestLogger logs incoming requests and their responses
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"route", route,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}

		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		// c.Request carries request_id and, past auth, username
		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.Error(ctx, "request completed", attrs...)
		case status >= 400:
			logger.Warn(ctx, "request completed", attrs...)
		case pollingRoutes[route]:
			logger.Debug(ctx, "request completed", attrs...)
		default:
			logger.Info(ctx, "request completed", attrs...)
		}
	}
}
