package services

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reviewhub_backend/internal/imageprocessor"
	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/storage"
	"reviewhub_backend/pkg/apperrors"
)

// UploadService - фото покупателя по ссылке до отправки отзыва
type UploadService interface {
	UploadMedia(ctx context.Context, db *gorm.DB, linkID string, file *multipart.FileHeader) (*dto.UploadResponse, error)
	ListLinkUploads(ctx context.Context, db *gorm.DB, linkID string) ([]*dto.UploadResponse, error)
}

type UploadConfig struct {
	MaxFileSize     int64
	AllowedTypes    []string
	MaxFilesPerLink int
	ImageQuality    int
	VideoEnabled    bool
}

// DefaultUploadConfig - 30MB, только изображения, 5 файлов на ссылку
func DefaultUploadConfig() *UploadConfig {
	return &UploadConfig{
		MaxFileSize:     30 * 1024 * 1024,
		AllowedTypes:    []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		MaxFilesPerLink: models.MaxReviewMedia,
		ImageQuality:    85,
	}
}

type uploadService struct {
	uploadRepo repositories.UploadRepository
	links      LinkService
	storage    storage.Storage
	images     *imageprocessor.Processor
	config     *UploadConfig
}

func NewUploadService(
	uploadRepo repositories.UploadRepository,
	links LinkService,
	store storage.Storage,
	config *UploadConfig,
) UploadService {
	if config == nil {
		config = DefaultUploadConfig()
	}
	return &uploadService{
		uploadRepo: uploadRepo,
		links:      links,
		storage:    store,
		images:     imageprocessor.NewProcessor(config.ImageQuality),
		config:     config,
	}
}

func (s *uploadService) UploadMedia(ctx context.Context, db *gorm.DB, linkID string, file *multipart.FileHeader) (*dto.UploadResponse, error) {
	if file == nil {
		return nil, apperrors.ValidationError(map[string]string{"file": "File is required"})
	}

	link, err := s.links.ResolveLink(ctx, db, linkID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.ErrLinkInvalid
		}
		return nil, err
	}

	if file.Size > s.config.MaxFileSize {
		return nil, apperrors.ErrFileTooLarge.WithDetails(map[string]interface{}{"maxSize": s.config.MaxFileSize})
	}

	data, err := readUpload(file, s.config.MaxFileSize)
	if err != nil {
		return nil, err
	}

	// заявленному типу не доверяем, смотрим на содержимое
	declared := strings.ToLower(file.Header.Get("Content-Type"))
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(declared, "video/") || strings.HasPrefix(sniffed, "video/") {
		if !s.config.VideoEnabled {
			return nil, apperrors.ErrVideoDisabled
		}
	}
	if !s.allowed(sniffed) {
		return nil, apperrors.ErrInvalidFileType.WithDetails(map[string]interface{}{
			"contentType":  sniffed,
			"allowedTypes": s.config.AllowedTypes,
		})
	}

	count, err := s.uploadRepo.CountByLink(withCtx(ctx, db), link.ID)
	if err != nil {
		return nil, storageError(ctx, "count uploads", err)
	}
	if count >= int64(s.config.MaxFilesPerLink) {
		return nil, apperrors.ErrTooManyMedia
	}

	id := uuid.New().String()
	key := path.Join("reviews", link.ShopID, link.ID, id+extensionFor(sniffed))
	if err := s.storage.Save(ctx, key, bytes.NewReader(data), sniffed); err != nil {
		return nil, storageError(ctx, "save upload", err)
	}
	saved := []string{key}

	upload := &models.Upload{
		LinkID:          link.ID,
		ShopID:          link.ShopID,
		Path:            key,
		URL:             s.storage.URL(key),
		MimeType:        sniffed,
		Size:            int64(len(data)),
		OriginalName:    path.Base(file.Filename),
		StorageProvider: s.storage.Provider(),
	}
	upload.ID = id

	// без миниатюры загрузка всё равно полезна
	if thumb, err := s.images.Thumbnail(bytes.NewReader(data), imageprocessor.SizeThumbnail); err != nil {
		logger.CtxWarn(ctx, "thumbnail generation failed", "upload_id", id, "error", err)
	} else {
		thumbKey := path.Join("reviews", link.ShopID, link.ID, id+"_thumb"+thumb.Extension)
		if err := s.storage.Save(ctx, thumbKey, bytes.NewReader(thumb.Data), thumb.ContentType); err != nil {
			logger.CtxWarn(ctx, "failed to store thumbnail", "upload_id", id, "error", err)
		} else {
			saved = append(saved, thumbKey)
			upload.ThumbnailPath = thumbKey
			upload.ThumbnailURL = s.storage.URL(thumbKey)
		}
	}

	if err := s.uploadRepo.Create(withCtx(ctx, db), upload); err != nil {
		s.cleanup(ctx, saved)
		return nil, storageError(ctx, "create upload", err)
	}

	logger.CtxInfo(ctx, "media uploaded",
		"upload_id", upload.ID,
		"link_id", link.ID,
		"mime_type", upload.MimeType,
		"size", upload.Size)

	return toUploadResponse(upload), nil
}

func (s *uploadService) ListLinkUploads(ctx context.Context, db *gorm.DB, linkID string) ([]*dto.UploadResponse, error) {
	uploads, err := s.uploadRepo.ListByLink(withCtx(ctx, db), linkID)
	if err != nil {
		return nil, storageError(ctx, "list uploads", err)
	}
	resp := make([]*dto.UploadResponse, 0, len(uploads))
	for i := range uploads {
		resp = append(resp, toUploadResponse(&uploads[i]))
	}
	return resp, nil
}

func (s *uploadService) allowed(contentType string) bool {
	for _, t := range s.config.AllowedTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

func (s *uploadService) cleanup(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
			logger.CtxWithError(ctx, "failed to remove orphaned upload", err, "key", key)
		}
	}
}

// readUpload читает файл целиком, не доверяя заявленному размеру
func readUpload(file *multipart.FileHeader, maxSize int64) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, apperrors.NewBadRequestError("Failed to read uploaded file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, apperrors.NewBadRequestError("Failed to read uploaded file")
	}
	if int64(len(data)) > maxSize {
		return nil, apperrors.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, apperrors.ValidationError(map[string]string{"file": "File is empty"})
	}
	return data, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func toUploadResponse(u *models.Upload) *dto.UploadResponse {
	return &dto.UploadResponse{
		ID:           u.ID,
		URL:          u.URL,
		ThumbnailURL: u.ThumbnailURL,
		MimeType:     u.MimeType,
		Size:         u.Size,
		OriginalName: u.OriginalName,
	}
}
