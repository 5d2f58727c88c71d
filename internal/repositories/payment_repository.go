package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reviewhub_backend/internal/models"
)

type PaymentRepository interface {
	Create(db *gorm.DB, payment *models.Payment) error
	FindByOrderReference(db *gorm.DB, orderReference string) (*models.Payment, error)
	FindByOrderReferenceForUpdate(db *gorm.DB, orderReference string) (*models.Payment, error)
	Update(db *gorm.DB, payment *models.Payment) error
	ListByShop(db *gorm.DB, shopID string, limit, offset int) ([]models.Payment, int64, error)
}

type PaymentRepositoryImpl struct{}

func NewPaymentRepository() PaymentRepository {
	return &PaymentRepositoryImpl{}
}

func (r *PaymentRepositoryImpl) Create(db *gorm.DB, payment *models.Payment) error {
	if err := db.Create(payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrPaymentExists
		}
		return err
	}
	return nil
}

func (r *PaymentRepositoryImpl) FindByOrderReference(db *gorm.DB, orderReference string) (*models.Payment, error) {
	return r.find(db, orderReference)
}

// FindByOrderReferenceForUpdate блокирует строку до конца транзакции
func (r *PaymentRepositoryImpl) FindByOrderReferenceForUpdate(db *gorm.DB, orderReference string) (*models.Payment, error) {
	return r.find(db.Clauses(clause.Locking{Strength: "UPDATE"}), orderReference)
}

func (r *PaymentRepositoryImpl) find(db *gorm.DB, orderReference string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.Where("order_reference = ?", orderReference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) Update(db *gorm.DB, payment *models.Payment) error {
	return db.Save(payment).Error
}

func (r *PaymentRepositoryImpl) ListByShop(db *gorm.DB, shopID string, limit, offset int) ([]models.Payment, int64, error) {
	var total int64
	query := db.Model(&models.Payment{}).Where("shop_id = ?", shopID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&payments).Error
	return payments, total, err
}
