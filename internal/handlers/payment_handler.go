package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/middleware"
	"reviewhub_backend/internal/services"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/pkg/apperrors"
)

// maxWebhookBody - уведомления WayForPay занимают пару килобайт
const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	*BaseHandler
	paymentService services.PaymentService
}

func NewPaymentHandler(base *BaseHandler, paymentService services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    base,
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, mw RouteMiddleware) {
	payments := r.Group("/payments")
	{
		// Webhook без JWT: подлинность проверяется подписью
		payments.POST("/wayforpay/webhook", h.Webhook)

		owner := payments.Group("")
		owner.Use(mw.Auth, middleware.RequirePermission(auth.PermBillingSelf))
		owner.POST("/checkout", h.Checkout)
		owner.GET("", h.ListPayments)
		owner.GET("/:orderReference", h.GetPayment)
	}
}

func (h *PaymentHandler) Checkout(c *gin.Context) {
	shopID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.paymentService.CreateCheckout(c.Request.Context(), h.GetDB(c), shopID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	shopID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var query dto.PaginationQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	resp, err := h.paymentService.ListPayments(c.Request.Context(), h.GetDB(c), shopID, &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	shopID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.paymentService.GetPayment(c.Request.Context(), h.GetDB(c), shopID, c.Param("orderReference"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Webhook отвечает подписанным accept; без него WayForPay повторяет уведомление
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Failed to read request body"))
		return
	}

	ack, err := h.paymentService.HandleWebhook(c.Request.Context(), h.GetDB(c), body)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}
