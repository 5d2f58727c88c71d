package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/middleware"
	"reviewhub_backend/internal/services"
)

type AdminHandler struct {
	*BaseHandler
	sweepService services.BillingSweepService
}

func NewAdminHandler(base *BaseHandler, sweepService services.BillingSweepService) *AdminHandler {
	return &AdminHandler{
		BaseHandler:  base,
		sweepService: sweepService,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, mw RouteMiddleware) {
	billing := r.Group("/admin/billing")
	billing.Use(mw.Auth, middleware.RequirePermission(auth.PermBillingAdmin))
	{
		billing.POST("/sweep", h.Sweep)
		billing.POST("/reconcile", h.Reconcile)
	}
}

func (h *AdminHandler) Sweep(c *gin.Context) {
	resp, err := h.sweepService.SweepExpired(c.Request.Context(), h.GetDB(c), time.Now())
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) Reconcile(c *gin.Context) {
	resp, err := h.sweepService.ReconcileCounters(c.Request.Context(), h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
