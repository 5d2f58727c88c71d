package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"reviewhub_backend/internal/models"
)

// Порядок выборки
const (
	OrderNewest = "newest"
	OrderOldest = "oldest"
	OrderRating = "rating"
)

// ReviewCursor - позиция последней выданной строки (keyset-пагинация)
type ReviewCursor struct {
	CreatedAt time.Time
	ID        string
	Rating    int
}

type ReviewFilter struct {
	ShopID       string
	Order        string
	FilterRating *int
	After        *ReviewCursor
	Limit        int
}

type RatingCount struct {
	Rating int
	Count  int64
}

type ReviewRepository interface {
	Create(db *gorm.DB, review *models.Review) error
	FindByID(db *gorm.DB, id string) (*models.Review, error)
	Delete(db *gorm.DB, id, shopID string) error
	CountByShop(db *gorm.DB, shopID string, filterRating *int) (int64, error)
	RatingDistribution(db *gorm.DB, shopID string) ([]RatingCount, error)
	List(db *gorm.DB, filter ReviewFilter) ([]models.Review, error)
}

type ReviewRepositoryImpl struct{}

func NewReviewRepository() ReviewRepository {
	return &ReviewRepositoryImpl{}
}

func (r *ReviewRepositoryImpl) Create(db *gorm.DB, review *models.Review) error {
	return db.Create(review).Error
}

func (r *ReviewRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Review, error) {
	var review models.Review
	if err := db.Where("id = ?", id).First(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &review, nil
}

// Delete - отзыв другого магазина считается отсутствующим
func (r *ReviewRepositoryImpl) Delete(db *gorm.DB, id, shopID string) error {
	result := db.Where("id = ? AND shop_id = ?", id, shopID).Delete(&models.Review{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (r *ReviewRepositoryImpl) CountByShop(db *gorm.DB, shopID string, filterRating *int) (int64, error) {
	var count int64
	query := db.Model(&models.Review{}).Where("shop_id = ?", shopID)
	if filterRating != nil {
		query = query.Where("rating = ?", *filterRating)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *ReviewRepositoryImpl) RatingDistribution(db *gorm.DB, shopID string) ([]RatingCount, error) {
	var rows []RatingCount
	err := db.Model(&models.Review{}).
		Select("rating, COUNT(*) AS count").
		Where("shop_id = ?", shopID).
		Group("rating").
		Order("rating").
		Scan(&rows).Error
	return rows, err
}

// List - keyset-пагинация: сравнение кортежей поддерживают и postgres, и mysql
func (r *ReviewRepositoryImpl) List(db *gorm.DB, filter ReviewFilter) ([]models.Review, error) {
	query := db.Where("shop_id = ?", filter.ShopID)
	if filter.FilterRating != nil {
		query = query.Where("rating = ?", *filter.FilterRating)
	}

	switch filter.Order {
	case OrderOldest:
		if filter.After != nil {
			query = query.Where("(created_at, id) > (?, ?)", filter.After.CreatedAt, filter.After.ID)
		}
		query = query.Order("created_at ASC").Order("id ASC")
	case OrderRating:
		if filter.After != nil {
			query = query.Where("(rating, created_at, id) < (?, ?, ?)", filter.After.Rating, filter.After.CreatedAt, filter.After.ID)
		}
		query = query.Order("rating DESC").Order("created_at DESC").Order("id DESC")
	default:
		if filter.After != nil {
			query = query.Where("(created_at, id) < (?, ?)", filter.After.CreatedAt, filter.After.ID)
		}
		query = query.Order("created_at DESC").Order("id DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var reviews []models.Review
	err := query.Find(&reviews).Error
	return reviews, err
}
