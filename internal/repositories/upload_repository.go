package repositories

import (
	"gorm.io/gorm"

	"reviewhub_backend/internal/models"
)

type UploadRepository interface {
	Create(db *gorm.DB, upload *models.Upload) error
	CountByLink(db *gorm.DB, linkID string) (int64, error)
	ListByLink(db *gorm.DB, linkID string) ([]models.Upload, error)
}

type UploadRepositoryImpl struct{}

func NewUploadRepository() UploadRepository {
	return &UploadRepositoryImpl{}
}

func (r *UploadRepositoryImpl) Create(db *gorm.DB, upload *models.Upload) error {
	return db.Create(upload).Error
}

func (r *UploadRepositoryImpl) CountByLink(db *gorm.DB, linkID string) (int64, error) {
	var count int64
	err := db.Model(&models.Upload{}).Where("link_id = ?", linkID).Count(&count).Error
	return count, err
}

func (r *UploadRepositoryImpl) ListByLink(db *gorm.DB, linkID string) ([]models.Upload, error) {
	var uploads []models.Upload
	err := db.Where("link_id = ?", linkID).Order("created_at").Find(&uploads).Error
	return uploads, err
}
