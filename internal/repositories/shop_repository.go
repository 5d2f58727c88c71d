package repositories

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"reviewhub_backend/internal/models"
)

type ShopRepository interface {
	Create(db *gorm.DB, shop *models.Shop) error
	FindByID(db *gorm.DB, id string) (*models.Shop, error)
	FindByEmail(db *gorm.DB, email string) (*models.Shop, error)
	FindByExternalSubject(db *gorm.DB, subject string) (*models.Shop, error)
	LinkExternalSubject(db *gorm.DB, shopID, subject string) error

	// Счётчик использования
	IncrementReviewsUsed(db *gorm.DB, shopID string) error
	ReserveQuotaSlot(db *gorm.DB, shopID string) error
	DecrementReviewsUsed(db *gorm.DB, shopID string) error
	ReconcileCounters(db *gorm.DB) (int64, error)

	// Тарифы
	ApplyPlan(db *gorm.DB, shopID string, change PlanChange) error
	FindExpired(db *gorm.DB, now time.Time, limit int) ([]models.Shop, error)
	DowngradeExpired(db *gorm.DB, now time.Time, freeLimit int) (int64, error)
}

// PlanChange - результат успешной оплаты
type PlanChange struct {
	Plan        models.Plan
	ReviewLimit int
	Period      models.BillingPeriod
	Start       time.Time
	End         time.Time
}

type ShopRepositoryImpl struct{}

func NewShopRepository() ShopRepository {
	return &ShopRepositoryImpl{}
}

func (r *ShopRepositoryImpl) Create(db *gorm.DB, shop *models.Shop) error {
	shop.Email = strings.ToLower(strings.TrimSpace(shop.Email))
	if err := db.Create(shop).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrShopAlreadyExists
		}
		return err
	}
	return nil
}

func (r *ShopRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Shop, error) {
	return r.findOne(db, "id = ?", id)
}

func (r *ShopRepositoryImpl) FindByEmail(db *gorm.DB, email string) (*models.Shop, error) {
	return r.findOne(db, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *ShopRepositoryImpl) FindByExternalSubject(db *gorm.DB, subject string) (*models.Shop, error) {
	return r.findOne(db, "external_subject = ?", subject)
}

func (r *ShopRepositoryImpl) findOne(db *gorm.DB, query string, args ...interface{}) (*models.Shop, error) {
	var shop models.Shop
	if err := db.Where(query, args...).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	return &shop, nil
}

func (r *ShopRepositoryImpl) LinkExternalSubject(db *gorm.DB, shopID, subject string) error {
	result := db.Model(&models.Shop{}).
		Where("id = ? AND external_subject IS NULL", shopID).
		Update("external_subject", subject)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShopNotFound
	}
	return nil
}

func (r *ShopRepositoryImpl) IncrementReviewsUsed(db *gorm.DB, shopID string) error {
	result := db.Model(&models.Shop{}).
		Where("id = ?", shopID).
		Update("reviews_used", gorm.Expr("reviews_used + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShopNotFound
	}
	return nil
}

// ReserveQuotaSlot - условный инкремент: проигравший в гонке получает ErrQuotaSlotUnavailable
func (r *ShopRepositoryImpl) ReserveQuotaSlot(db *gorm.DB, shopID string) error {
	result := db.Model(&models.Shop{}).
		Where("id = ? AND (review_limit < 0 OR reviews_used < review_limit)", shopID).
		Update("reviews_used", gorm.Expr("reviews_used + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrQuotaSlotUnavailable
	}
	return nil
}

// DecrementReviewsUsed - не уходит ниже нуля
func (r *ShopRepositoryImpl) DecrementReviewsUsed(db *gorm.DB, shopID string) error {
	result := db.Model(&models.Shop{}).
		Where("id = ?", shopID).
		Update("reviews_used", gorm.Expr("CASE WHEN reviews_used > 0 THEN reviews_used - 1 ELSE 0 END"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShopNotFound
	}
	return nil
}

// ReconcileCounters приводит reviews_used к фактическому количеству отзывов
func (r *ShopRepositoryImpl) ReconcileCounters(db *gorm.DB) (int64, error) {
	result := db.Exec(`
		UPDATE shops
		SET reviews_used = (SELECT COUNT(*) FROM reviews WHERE reviews.shop_id = shops.id)
		WHERE reviews_used <> (SELECT COUNT(*) FROM reviews WHERE reviews.shop_id = shops.id)
	`)
	return result.RowsAffected, result.Error
}

func (r *ShopRepositoryImpl) ApplyPlan(db *gorm.DB, shopID string, change PlanChange) error {
	period := change.Period
	result := db.Model(&models.Shop{}).
		Where("id = ?", shopID).
		Updates(map[string]interface{}{
			"plan":                    change.Plan,
			"review_limit":            change.ReviewLimit,
			"billing_period":          &period,
			"subscription_status":     models.SubscriptionStatusActive,
			"subscription_start_date": change.Start,
			"subscription_end_date":   change.End,
			"renewal_date":            change.End,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShopNotFound
	}
	return nil
}

func (r *ShopRepositoryImpl) FindExpired(db *gorm.DB, now time.Time, limit int) ([]models.Shop, error) {
	var shops []models.Shop
	err := r.expiredScope(db, now).
		Order("subscription_end_date").
		Limit(limit).
		Find(&shops).Error
	return shops, err
}

// DowngradeExpired - одна пакетная операция; повторный запуск ничего не меняет.
// previous_plan = plan стоит первым: MySQL вычисляет SET слева направо.
func (r *ShopRepositoryImpl) DowngradeExpired(db *gorm.DB, now time.Time, freeLimit int) (int64, error) {
	result := db.Exec(`
		UPDATE shops
		SET previous_plan = plan,
			plan = ?,
			review_limit = ?,
			billing_period = NULL,
			subscription_status = ?,
			updated_at = ?
		WHERE plan IN ? AND subscription_end_date IS NOT NULL AND subscription_end_date < ?
	`, models.PlanFree, freeLimit, models.SubscriptionStatusExpired, now, paidPlans, now)
	return result.RowsAffected, result.Error
}

var paidPlans = []models.Plan{models.PlanPro, models.PlanBusiness}

func (r *ShopRepositoryImpl) expiredScope(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("plan IN ? AND subscription_end_date IS NOT NULL AND subscription_end_date < ?", paidPlans, now)
}
