// internal/app/router.go
package app

import (
	adminHandler "workwise-service/internal/handlers/admin"
	authHandler "workwise-service/internal/handlers/auth"
	wsHandler "workwise-service/internal/handlers/websocket"
	"workwise-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	AdminHandler   *adminHandler.AdminHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", middleware.ClientIDQueryMatchesCookie(), h.WSHandler.HandleConnection)

	// ==================== Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/signup", h.AuthHandler.SignUp)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.GET("/state", h.AuthHandler.State)
		authPublic.POST("/logout", h.AuthHandler.Logout)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.GET("/profiles/roles", h.AdminHandler.ListRoles)
		admin.GET("/profiles/:id", h.AdminHandler.GetProfile)
		admin.PUT("/profiles/:id/role", h.AdminHandler.UpdateRole)
		admin.POST("/profiles/normalize-roles", h.AdminHandler.NormalizeRoles)
		admin.DELETE("/users/:id", h.AdminHandler.DeleteUser)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
