package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"gorm.io/gorm"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/pkg/ulid"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/pkg/apperrors"
)

const (
	DefaultReviewPageSize = 20
	MaxReviewPageSize     = 100
)

// FeedInvalidator сбрасывает кэш ленты магазина после изменения набора отзывов
type FeedInvalidator interface {
	InvalidateShop(ctx context.Context, shopID string)
}

type ReviewService interface {
	CountReviews(ctx context.Context, db *gorm.DB, shopID string) (int64, error)
	CreateReview(ctx context.Context, db *gorm.DB, shopID string, linkID *string, req *dto.CreateReviewRequest) (*models.Review, error)
	DeleteReview(ctx context.Context, db *gorm.DB, reviewID, shopID string) error
	DeleteReviewByAdmin(ctx context.Context, db *gorm.DB, reviewID string) error
	GetStats(ctx context.Context, db *gorm.DB, shopID string) (*dto.StatsResponse, error)
	QueryReviews(ctx context.Context, db *gorm.DB, shopID string, query *dto.ReviewQuery) (*dto.ReviewPage, error)
}

type reviewService struct {
	reviewRepo repositories.ReviewRepository
	shopRepo   repositories.ShopRepository
	feed       FeedInvalidator
	events     EventPublisher
}

func NewReviewService(
	reviewRepo repositories.ReviewRepository,
	shopRepo repositories.ShopRepository,
	feed FeedInvalidator,
	events EventPublisher,
) ReviewService {
	if events == nil {
		events = NoopPublisher
	}
	return &reviewService{
		reviewRepo: reviewRepo,
		shopRepo:   shopRepo,
		feed:       feed,
		events:     events,
	}
}

func (s *reviewService) CountReviews(ctx context.Context, db *gorm.DB, shopID string) (int64, error) {
	count, err := s.reviewRepo.CountByShop(withCtx(ctx, db), shopID, nil)
	if err != nil {
		return 0, storageError(ctx, "count reviews", err)
	}
	return count, nil
}

// CreateReview только сохраняет отзыв: лимиты и ссылки проверяет SubmissionService
func (s *reviewService) CreateReview(ctx context.Context, db *gorm.DB, shopID string, linkID *string, req *dto.CreateReviewRequest) (*models.Review, error) {
	now := nowFunc()
	media := make([]string, 0, len(req.Media))
	for _, m := range req.Media {
		media = append(media, strings.TrimSpace(m))
	}

	review := &models.Review{
		ID:           ulid.NewFromTime(now),
		ShopID:       shopID,
		LinkID:       linkID,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Rating:       req.Rating,
		Text:         strings.TrimSpace(req.Text),
		Media:        media,
		CreatedAt:    now,
	}

	if err := s.reviewRepo.Create(withCtx(ctx, db), review); err != nil {
		return nil, storageError(ctx, "create review", err)
	}
	return review, nil
}

// DeleteReview удаляет отзыв и уменьшает счётчик в одной транзакции
func (s *reviewService) DeleteReview(ctx context.Context, db *gorm.DB, reviewID, shopID string) error {
	tx := withCtx(ctx, db).Begin()
	if tx.Error != nil {
		return storageError(ctx, "begin", tx.Error)
	}
	defer tx.Rollback()

	if err := s.reviewRepo.Delete(tx, reviewID, shopID); err != nil {
		if errors.Is(err, repositories.ErrReviewNotFound) {
			return apperrors.ErrReviewNotFound
		}
		return storageError(ctx, "delete review", err)
	}

	if err := s.shopRepo.DecrementReviewsUsed(tx, shopID); err != nil && !errors.Is(err, repositories.ErrShopNotFound) {
		return storageError(ctx, "decrement reviews used", err)
	}

	if err := tx.Commit().Error; err != nil {
		return storageError(ctx, "commit", err)
	}

	logger.CtxInfo(ctx, "review deleted", "review_id", reviewID, "shop_id", shopID)
	if s.feed != nil {
		s.feed.InvalidateShop(ctx, shopID)
	}
	s.events.PublishToShop(shopID, EventReviewDeleted, map[string]string{"id": reviewID})
	return nil
}

func (s *reviewService) DeleteReviewByAdmin(ctx context.Context, db *gorm.DB, reviewID string) error {
	review, err := s.reviewRepo.FindByID(withCtx(ctx, db), reviewID)
	if err != nil {
		if errors.Is(err, repositories.ErrReviewNotFound) {
			return apperrors.ErrReviewNotFound
		}
		return storageError(ctx, "find review", err)
	}
	return s.DeleteReview(ctx, db, review.ID, review.ShopID)
}

func (s *reviewService) GetStats(ctx context.Context, db *gorm.DB, shopID string) (*dto.StatsResponse, error) {
	db = withCtx(ctx, db)
	if err := s.ensureShop(ctx, db, shopID); err != nil {
		return nil, err
	}

	rows, err := s.reviewRepo.RatingDistribution(db, shopID)
	if err != nil {
		return nil, storageError(ctx, "rating distribution", err)
	}

	var counts [5]int64
	for _, row := range rows {
		if row.Rating >= 1 && row.Rating <= 5 {
			counts[row.Rating-1] += row.Count
		}
	}
	return buildStats(counts), nil
}

// buildStats - проценты по методу наибольшего остатка, в сумме ровно 100
func buildStats(counts [5]int64) *dto.StatsResponse {
	var total, sum int64
	for i, c := range counts {
		total += c
		sum += c * int64(i+1)
	}

	stats := &dto.StatsResponse{
		TotalCount:         total,
		RatingDistribution: make([]dto.RatingBucket, 5),
	}
	percentages := largestRemainder(counts, total)
	for i := range counts {
		stats.RatingDistribution[i] = dto.RatingBucket{
			Rating:     i + 1,
			Count:      counts[i],
			Percentage: percentages[i],
		}
	}

	if total > 0 {
		stats.AverageRatingExact = float64(sum) / float64(total)
		stats.AverageRating = math.Round(stats.AverageRatingExact*10) / 10
	}
	return stats
}

func largestRemainder(counts [5]int64, total int64) [5]int {
	var result [5]int
	if total == 0 {
		return result
	}

	type rem struct {
		idx int
		r   int64
	}
	rems := make([]rem, 0, 5)
	assigned := 0
	for i, c := range counts {
		result[i] = int(c * 100 / total)
		assigned += result[i]
		rems = append(rems, rem{idx: i, r: c * 100 % total})
	}

	sort.SliceStable(rems, func(a, b int) bool { return rems[a].r > rems[b].r })
	for i := 0; assigned < 100 && i < len(rems); i++ {
		result[rems[i].idx]++
		assigned++
	}
	return result
}

func (s *reviewService) QueryReviews(ctx context.Context, db *gorm.DB, shopID string, query *dto.ReviewQuery) (*dto.ReviewPage, error) {
	db = withCtx(ctx, db)
	if err := s.ensureShop(ctx, db, shopID); err != nil {
		return nil, err
	}

	order := normalizeOrder(query.SortBy)
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = DefaultReviewPageSize
	}
	if pageSize > MaxReviewPageSize {
		pageSize = MaxReviewPageSize
	}

	filter := repositories.ReviewFilter{
		ShopID:       shopID,
		Order:        order,
		FilterRating: query.FilterRating,
		Limit:        pageSize + 1,
	}

	if query.Cursor != "" {
		c, ok := decodeCursor(query.Cursor)
		if !ok || c.Sort != order || c.Filter != ratingValue(query.FilterRating) {
			return nil, apperrors.ValidationError(map[string]string{"cursor": "Invalid or mismatched cursor"})
		}
		filter.After = c.toRepo()
	}

	reviews, err := s.reviewRepo.List(db, filter)
	if err != nil {
		return nil, storageError(ctx, "list reviews", err)
	}

	total, err := s.reviewRepo.CountByShop(db, shopID, query.FilterRating)
	if err != nil {
		return nil, storageError(ctx, "count reviews", err)
	}

	hasMore := len(reviews) > pageSize
	if hasMore {
		reviews = reviews[:pageSize]
	}

	page := &dto.ReviewPage{
		Items:      toReviewResponses(reviews),
		HasMore:    hasMore,
		TotalCount: total,
	}
	if hasMore {
		last := reviews[len(reviews)-1]
		next := encodeCursor(reviewCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
			Rating:    last.Rating,
			Sort:      order,
			Filter:    ratingValue(query.FilterRating),
		})
		page.NextCursor = &next
	}
	return page, nil
}

func (s *reviewService) ensureShop(ctx context.Context, db *gorm.DB, shopID string) error {
	if _, err := s.shopRepo.FindByID(db, shopID); err != nil {
		if errors.Is(err, repositories.ErrShopNotFound) {
			return apperrors.ErrShopNotFound
		}
		return storageError(ctx, "find shop", err)
	}
	return nil
}

func normalizeOrder(sortBy string) string {
	switch sortBy {
	case repositories.OrderOldest, repositories.OrderRating:
		return sortBy
	default:
		return repositories.OrderNewest
	}
}

func ratingValue(r *int) int {
	if r == nil {
		return 0
	}
	return *r
}

func toReviewResponse(r *models.Review) *dto.ReviewResponse {
	media := []string(r.Media)
	if media == nil {
		media = []string{}
	}
	return &dto.ReviewResponse{
		ID:           r.ID,
		ShopID:       r.ShopID,
		LinkID:       r.LinkID,
		CustomerName: r.CustomerName,
		Rating:       r.Rating,
		Text:         r.Text,
		Media:        media,
		CreatedAt:    r.CreatedAt,
	}
}

func toReviewResponses(reviews []models.Review) []*dto.ReviewResponse {
	out := make([]*dto.ReviewResponse, 0, len(reviews))
	for i := range reviews {
		out = append(out, toReviewResponse(&reviews[i]))
	}
	return out
}
