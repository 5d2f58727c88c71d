package routes

import (
	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/handlers"
	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/middleware"
	"reviewhub_backend/ws"
)

// RegisterRoutes регистрирует все HTTP и WebSocket маршруты.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	wsHandler *ws.Handler,
	mw handlers.RouteMiddleware,
) {
	api := ginRouter.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api, mw)
		appHandlers.LinkHandler.RegisterRoutes(api, mw)
		appHandlers.ReviewHandler.RegisterRoutes(api, mw)
		appHandlers.PaymentHandler.RegisterRoutes(api, mw)
		appHandlers.UploadHandler.RegisterRoutes(api, mw)
		appHandlers.AdminHandler.RegisterRoutes(api, mw)
	}

	if wsHandler != nil {
		wsGroup := ginRouter.Group("/ws")
		wsGroup.Use(mw.Auth, middleware.RequirePermission(auth.PermEventsSubscribe))
		{
			wsGroup.GET("", wsHandler.ServeWS)
		}
		logger.Info("WebSocket route /ws registered")
	}
}
