package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/services"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/services/subscription"
)

type AuthHandler struct {
	*BaseHandler
	authService services.AuthService
	prices      subscription.PriceList
}

func NewAuthHandler(base *BaseHandler, authService services.AuthService, prices subscription.PriceList) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		authService: authService,
		prices:      prices,
	}
}

func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, mw RouteMiddleware) {
	authGroup := r.Group("/auth")
	authGroup.Use(mw.publicLimit())
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	r.GET("/plans", h.Plans)
	r.GET("/me", mw.Auth, h.Me)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me - текущий магазин; для внешнего IdP он уже создан в AuthMiddleware
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.authService.Me(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": subscription.Plans(h.prices)})
}
