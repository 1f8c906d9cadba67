package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware stores a request-scoped logger on the context, tagged
// with the request id when RequestIDMiddleware ran first.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := logger
		if reqID := c.GetString("request_id"); reqID != "" {
			l = logger.With("request_id", reqID)
		}
		c.Set("logger", l)
		c.Next()
	}
}
