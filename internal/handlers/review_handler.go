package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/middleware"
	"reviewhub_backend/internal/services"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/pkg/apperrors"
)

type ReviewHandler struct {
	*BaseHandler
	reviewService     services.ReviewService
	submissionService services.SubmissionService
	feedService       services.FeedService
}

func NewReviewHandler(
	base *BaseHandler,
	reviewService services.ReviewService,
	submissionService services.SubmissionService,
	feedService services.FeedService,
) *ReviewHandler {
	return &ReviewHandler{
		BaseHandler:       base,
		reviewService:     reviewService,
		submissionService: submissionService,
		feedService:       feedService,
	}
}

func (h *ReviewHandler) RegisterRoutes(r *gin.RouterGroup, mw RouteMiddleware) {
	// Public routes
	public := r.Group("/public")
	{
		public.POST("/links/:linkId/reviews", mw.publicLimit(), h.SubmitViaLink)
		public.GET("/shops/:shopId/reviews", h.QueryReviews)
		public.GET("/shops/:shopId/feed", mw.feedLimit(), h.GetFeedPage)
		public.GET("/shops/:shopId/stats", h.GetStats)
	}

	// Ручной ввод владельцем
	shops := r.Group("/shops")
	shops.Use(mw.Auth, middleware.RequirePermission(auth.PermReviewsWrite))
	{
		shops.POST("/:shopId/reviews", h.SubmitForShop)
	}

	// Admin routes
	admin := r.Group("/admin/reviews")
	admin.Use(mw.Auth, middleware.RequirePermission(auth.PermReviewsDelete))
	{
		admin.DELETE("/:reviewId", h.DeleteReview)
	}
}

func (h *ReviewHandler) SubmitViaLink(c *gin.Context) {
	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	// валидирует SubmissionService: ошибки ссылки и лимита проверяются в строгом порядке
	review, err := h.submissionService.SubmitViaLink(c.Request.Context(), h.GetDB(c), c.Param("linkId"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) SubmitForShop(c *gin.Context) {
	shopID := c.Param("shopId")
	if !h.AuthorizeShop(c, shopID) {
		return
	}

	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	review, err := h.submissionService.SubmitReview(c.Request.Context(), h.GetDB(c), shopID, nil, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) QueryReviews(c *gin.Context) {
	var query dto.ReviewQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	page, err := h.reviewService.QueryReviews(c.Request.Context(), h.GetDB(c), c.Param("shopId"), &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ReviewHandler) GetFeedPage(c *gin.Context) {
	var query dto.FeedQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	page, err := h.feedService.GetFeedPage(c.Request.Context(), h.GetDB(c), c.Param("shopId"), &query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ReviewHandler) GetStats(c *gin.Context) {
	stats, err := h.reviewService.GetStats(c.Request.Context(), h.GetDB(c), c.Param("shopId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	if err := h.reviewService.DeleteReviewByAdmin(c.Request.Context(), h.GetDB(c), c.Param("reviewId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
