package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"reviewhub_backend/internal/models"
)

type LinkRepository interface {
	Create(db *gorm.DB, link *models.ReviewLink) error
	FindByID(db *gorm.DB, id string) (*models.ReviewLink, error)
	FindUsable(db *gorm.DB, id string, now time.Time) (*models.ReviewLink, error)
	Claim(db *gorm.DB, id string, now time.Time) error
	ListByShop(db *gorm.DB, shopID string, activeOnly bool, limit, offset int) ([]models.ReviewLink, int64, error)
	Deactivate(db *gorm.DB, shopID, linkID string) error
}

type LinkRepositoryImpl struct{}

func NewLinkRepository() LinkRepository {
	return &LinkRepositoryImpl{}
}

// usableCondition - ссылка активна, не истекла и не исчерпана; NULL max_usage = одно использование
const usableCondition = "is_active = ? AND (expires_at IS NULL OR expires_at > ?) AND usage_count < COALESCE(max_usage, 1)"

func (r *LinkRepositoryImpl) Create(db *gorm.DB, link *models.ReviewLink) error {
	return db.Create(link).Error
}

func (r *LinkRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.ReviewLink, error) {
	var link models.ReviewLink
	if err := db.Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// FindUsable - отсутствующая, истёкшая и исчерпанная ссылки неразличимы
func (r *LinkRepositoryImpl) FindUsable(db *gorm.DB, id string, now time.Time) (*models.ReviewLink, error) {
	var link models.ReviewLink
	err := db.Where("id = ?", id).
		Where(usableCondition, true, now).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// Claim - атомарный захват использования ссылки одним UPDATE.
// Из двух конкурентных запросов на последнее использование строку обновит только один.
func (r *LinkRepositoryImpl) Claim(db *gorm.DB, id string, now time.Time) error {
	result := db.Exec(`
		UPDATE review_links
		SET is_active = (usage_count + 1 < COALESCE(max_usage, 1)),
			usage_count = usage_count + 1,
			consumed_at = ?,
			updated_at = ?
		WHERE id = ? AND `+usableCondition,
		now, now, id, true, now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotClaimable
	}
	return nil
}

func (r *LinkRepositoryImpl) ListByShop(db *gorm.DB, shopID string, activeOnly bool, limit, offset int) ([]models.ReviewLink, int64, error) {
	query := db.Model(&models.ReviewLink{}).Where("shop_id = ?", shopID)
	if activeOnly {
		query = query.Where(usableCondition, true, time.Now())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var links []models.ReviewLink
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&links).Error
	return links, total, err
}

func (r *LinkRepositoryImpl) Deactivate(db *gorm.DB, shopID, linkID string) error {
	result := db.Model(&models.ReviewLink{}).
		Where("id = ? AND shop_id = ?", linkID, shopID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}
