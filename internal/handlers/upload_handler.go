package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/services"
	"reviewhub_backend/pkg/apperrors"
)

type UploadHandler struct {
	*BaseHandler
	uploadService services.UploadService
	maxSize       int64
}

func NewUploadHandler(base *BaseHandler, uploadService services.UploadService, maxSize int64) *UploadHandler {
	return &UploadHandler{
		BaseHandler:   base,
		uploadService: uploadService,
		maxSize:       maxSize,
	}
}

func (h *UploadHandler) RegisterRoutes(r *gin.RouterGroup, mw RouteMiddleware) {
	public := r.Group("/public/links/:linkId")
	public.Use(mw.publicLimit())
	{
		public.POST("/media", h.UploadMedia)
		public.GET("/media", h.ListMedia)
	}
}

func (h *UploadHandler) UploadMedia(c *gin.Context) {
	// запас на заголовки multipart
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+1<<20)

	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if apperrors.As(err, &maxErr) {
			apperrors.HandleError(c, apperrors.ErrFileTooLarge)
			return
		}
		apperrors.HandleError(c, apperrors.ValidationError(map[string]string{"file": "File is required"}))
		return
	}

	resp, err := h.uploadService.UploadMedia(c.Request.Context(), h.GetDB(c), c.Param("linkId"), file)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *UploadHandler) ListMedia(c *gin.Context) {
	uploads, err := h.uploadService.ListLinkUploads(c.Request.Context(), h.GetDB(c), c.Param("linkId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": uploads})
}
