package handlers

import "github.com/gin-gonic/gin"

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	AuthHandler    *AuthHandler
	LinkHandler    *LinkHandler
	ReviewHandler  *ReviewHandler
	PaymentHandler *PaymentHandler
	UploadHandler  *UploadHandler
	AdminHandler   *AdminHandler
}

// RouteMiddleware - middleware, которые хэндлеры вешают на свои группы
type RouteMiddleware struct {
	Auth gin.HandlerFunc
	// PublicLimit - ограничение частоты для публичной отправки и загрузки; nil - без ограничения
	PublicLimit gin.HandlerFunc
	// FeedLimit - отдельное окно для чтения ленты
	FeedLimit gin.HandlerFunc
}

func (m RouteMiddleware) publicLimit() gin.HandlerFunc {
	if m.PublicLimit == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return m.PublicLimit
}

func (m RouteMiddleware) feedLimit() gin.HandlerFunc {
	if m.FeedLimit == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return m.FeedLimit
}
