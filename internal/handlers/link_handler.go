package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/middleware"
	"reviewhub_backend/internal/services"
	"reviewhub_backend/internal/services/dto"
)

type LinkHandler struct {
	*BaseHandler
	linkService services.LinkService
}

func NewLinkHandler(base *BaseHandler, linkService services.LinkService) *LinkHandler {
	return &LinkHandler{
		BaseHandler: base,
		linkService: linkService,
	}
}

func (h *LinkHandler) RegisterRoutes(r *gin.RouterGroup, mw RouteMiddleware) {
	links := r.Group("/links")
	links.Use(mw.Auth, middleware.RequirePermission(auth.PermLinksWrite))
	{
		links.POST("", h.CreateLink)
		links.GET("", h.ListLinks)
		links.DELETE("/:linkId", h.DeactivateLink)
		links.POST("/:linkId/regenerate", h.RegenerateLink)
	}

	r.GET("/public/links/:linkId", h.GetPublicLink)
}

func (h *LinkHandler) CreateLink(c *gin.Context) {
	shopID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateLinkRequest
	// пустое тело - ссылка с настройками по умолчанию
	if c.Request.ContentLength != 0 {
		if !h.BindAndValidate_JSON(c, &req) {
			return
		}
	}

	link, err := h.linkService.CreateLink(c.Request.Context(), h.GetDB(c), shopID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (h *LinkHandler) ListLinks(c *gin.Context) {
	shopID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var query dto.ListLinksQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	links, err := h.linkService.ListLinks(c.Request.Context(), h.GetDB(c), shopID, &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (h *LinkHandler) DeactivateLink(c *gin.Context) {
	shopID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.linkService.DeactivateLink(c.Request.Context(), h.GetDB(c), shopID, c.Param("linkId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LinkHandler) RegenerateLink(c *gin.Context) {
	shopID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	link, err := h.linkService.RegenerateLink(c.Request.Context(), h.GetDB(c), shopID, c.Param("linkId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// GetPublicLink - отсутствующая, истёкшая и использованная ссылки неразличимы (404)
func (h *LinkHandler) GetPublicLink(c *gin.Context) {
	link, err := h.linkService.GetPublicLink(c.Request.Context(), h.GetDB(c), c.Param("linkId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}
