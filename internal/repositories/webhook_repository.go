package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reviewhub_backend/internal/models"
)

type WebhookRepository interface {
	// Insert возвращает false, если событие с тем же ключом уже записано
	Insert(db *gorm.DB, event *models.WebhookEvent) (bool, error)
	FindByKey(db *gorm.DB, provider, orderReference, transactionStatus string) (*models.WebhookEvent, error)
	MarkProcessed(db *gorm.DB, id string, at time.Time, processingErr error) error
}

type WebhookRepositoryImpl struct{}

func NewWebhookRepository() WebhookRepository {
	return &WebhookRepositoryImpl{}
}

func (r *WebhookRepositoryImpl) Insert(db *gorm.DB, event *models.WebhookEvent) (bool, error) {
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *WebhookRepositoryImpl) FindByKey(db *gorm.DB, provider, orderReference, transactionStatus string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := db.Where("provider = ? AND order_reference = ? AND transaction_status = ?",
		provider, orderReference, transactionStatus).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *WebhookRepositoryImpl) MarkProcessed(db *gorm.DB, id string, at time.Time, processingErr error) error {
	updates := map[string]interface{}{"processed_at": at}
	if processingErr != nil {
		msg := processingErr.Error()
		updates["processing_error"] = &msg
	}
	return db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
