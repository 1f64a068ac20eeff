// internal/middleware/recovery_middleware.go
package middleware

import (
	"workwise-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_id", GetClientID(c)),
				)
				response.Internal(c, "internal server error")
			}
		}()
		c.Next()
	}
}
