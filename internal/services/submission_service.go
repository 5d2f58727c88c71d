package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/metrics"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/services/subscription"
	"reviewhub_backend/internal/validator"
	"reviewhub_backend/pkg/apperrors"
)

// SubmissionService - приём отзыва: проверки, сохранение, учёт лимита и погашение ссылки
type SubmissionService interface {
	SubmitReview(ctx context.Context, db *gorm.DB, shopID string, linkID *string, req *dto.CreateReviewRequest) (*dto.ReviewResponse, error)
	SubmitViaLink(ctx context.Context, db *gorm.DB, linkID string, req *dto.CreateReviewRequest) (*dto.ReviewResponse, error)
}

type SubmissionOptions struct {
	// StrictQuota резервирует слот лимита в той же транзакции, что и вставка отзыва
	StrictQuota bool
}

type submissionService struct {
	reviews       ReviewService
	links         LinkService
	linkRepo      repositories.LinkRepository
	shopRepo      repositories.ShopRepository
	validator     *validator.Validator
	feed          FeedInvalidator
	events        EventPublisher
	notifications NotificationService
	opts          SubmissionOptions
}

func NewSubmissionService(
	reviews ReviewService,
	links LinkService,
	linkRepo repositories.LinkRepository,
	shopRepo repositories.ShopRepository,
	v *validator.Validator,
	feed FeedInvalidator,
	events EventPublisher,
	notifications NotificationService,
	opts SubmissionOptions,
) SubmissionService {
	if events == nil {
		events = NoopPublisher
	}
	return &submissionService{
		reviews:       reviews,
		links:         links,
		linkRepo:      linkRepo,
		shopRepo:      shopRepo,
		validator:     v,
		feed:          feed,
		events:        events,
		notifications: notifications,
		opts:          opts,
	}
}

// SubmitViaLink - публичный путь: магазин определяется по ссылке
func (s *submissionService) SubmitViaLink(ctx context.Context, db *gorm.DB, linkID string, req *dto.CreateReviewRequest) (*dto.ReviewResponse, error) {
	if err := s.validate(req); err != nil {
		metrics.ReviewsSubmittedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	link, err := s.linkRepo.FindByID(withCtx(ctx, db), linkID)
	if err != nil {
		if errors.Is(err, repositories.ErrLinkNotFound) {
			metrics.ReviewsSubmittedTotal.WithLabelValues("link_invalid").Inc()
			return nil, apperrors.ErrLinkInvalid
		}
		return nil, storageError(ctx, "find link", err)
	}

	return s.SubmitReview(logger.WithShopID(ctx, link.ShopID), db, link.ShopID, &link.ID, req)
}

func (s *submissionService) SubmitReview(ctx context.Context, db *gorm.DB, shopID string, linkID *string, req *dto.CreateReviewRequest) (*dto.ReviewResponse, error) {
	review, shop, err := s.submit(ctx, db, shopID, linkID, req)
	if err != nil {
		metrics.ReviewsSubmittedTotal.WithLabelValues(submissionResult(err)).Inc()
		return nil, err
	}

	metrics.ReviewsSubmittedTotal.WithLabelValues("accepted").Inc()
	logger.CtxInfo(ctx, "review submitted", "review_id", review.ID, "shop_id", shopID, "rating", review.Rating)

	resp := toReviewResponse(review)
	if s.feed != nil {
		s.feed.InvalidateShop(ctx, shopID)
	}
	s.events.PublishToShop(shopID, EventReviewCreated, resp)
	if s.notifications != nil {
		s.notifications.NotifyNewReview(ctx, shop, review)
	}
	return resp, nil
}

func (s *submissionService) submit(ctx context.Context, db *gorm.DB, shopID string, linkID *string, req *dto.CreateReviewRequest) (*models.Review, *models.Shop, error) {
	// 1. Валидация
	if err := s.validate(req); err != nil {
		return nil, nil, err
	}

	// 2. Ссылка. Обе проверки (ссылка и лимит) выполняются всегда; LinkInvalid важнее QuotaExceeded.
	var linkErr error
	if linkID != nil {
		link, err := s.links.ResolveLink(ctx, db, *linkID)
		switch {
		case err == nil && link.ShopID != shopID:
			linkErr = apperrors.ErrLinkInvalid
		case apperrors.HasCode(err, apperrors.CodeNotFound):
			linkErr = apperrors.ErrLinkInvalid
		case err != nil:
			return nil, nil, err
		}
	}

	shop, err := s.shopRepo.FindByID(withCtx(ctx, db), shopID)
	if err != nil {
		if errors.Is(err, repositories.ErrShopNotFound) {
			if linkErr != nil {
				return nil, nil, linkErr
			}
			return nil, nil, apperrors.ErrShopNotFound
		}
		return nil, nil, storageError(ctx, "find shop", err)
	}

	// 3. Лимит тарифа по фактическому количеству отзывов
	var quotaErr error
	quota := subscription.QuotaFor(shop.Plan)
	if !quota.Unbounded {
		count, err := s.reviews.CountReviews(ctx, db, shopID)
		if err != nil {
			return nil, nil, err
		}
		if !quota.Allows(count) {
			quotaErr = quotaExceeded(shop.Plan, quota.Limit, count)
		}
	}

	if linkErr != nil {
		return nil, nil, linkErr
	}
	if quotaErr != nil {
		return nil, nil, quotaErr
	}

	// 4. Захват ссылки, (строгий режим) резерв слота и вставка - одна транзакция
	tx := withCtx(ctx, db).Begin()
	if tx.Error != nil {
		return nil, nil, storageError(ctx, "begin", tx.Error)
	}
	defer tx.Rollback()

	if linkID != nil {
		if err := s.links.MarkConsumed(ctx, tx, *linkID); err != nil {
			return nil, nil, err
		}
	}

	if s.opts.StrictQuota {
		if err := s.shopRepo.ReserveQuotaSlot(tx, shopID); err != nil {
			if errors.Is(err, repositories.ErrQuotaSlotUnavailable) {
				// слот не зарезервирован - счётчик уже на лимите
				return nil, nil, quotaExceeded(shop.Plan, quota.Limit, int64(quota.Limit))
			}
			return nil, nil, storageError(ctx, "reserve quota slot", err)
		}
	}

	review, err := s.reviews.CreateReview(ctx, tx, shopID, linkID, req)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, storageError(ctx, "commit", err)
	}

	// 5. Мягкий режим: счётчик после коммита; сбой не откатывает отзыв, расхождение лечит сверка
	if !s.opts.StrictQuota {
		if err := s.shopRepo.IncrementReviewsUsed(withCtx(ctx, db), shopID); err != nil {
			logger.CtxWithError(ctx, "failed to increment reviews_used, reconcile will repair it", err,
				"shop_id", shopID, "review_id", review.ID)
		} else {
			shop.ReviewsUsed++
		}
	} else {
		shop.ReviewsUsed++
	}

	return review, shop, nil
}

func quotaExceeded(plan models.Plan, limit int, used int64) error {
	return apperrors.ErrQuotaExceeded.WithDetails(map[string]interface{}{
		"plan":  plan,
		"limit": limit,
		"used":  used,
	})
}

func (s *submissionService) validate(req *dto.CreateReviewRequest) error {
	if req == nil {
		return apperrors.ValidationError(map[string]string{"body": "Request body is required"})
	}
	if err := validateRequest(s.validator, req); err != nil {
		return err
	}
	if len(req.Media) > models.MaxReviewMedia {
		return apperrors.ErrTooManyMedia
	}
	return nil
}

func submissionResult(err error) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return "error"
	}
	switch appErr.Code {
	case apperrors.CodeValidationFailed, apperrors.CodeLimitExceeded:
		return "validation"
	case apperrors.CodeLinkInvalid:
		return "link_invalid"
	case apperrors.CodeQuotaExceeded:
		return "quota_exceeded"
	case apperrors.CodeNotFound:
		return "not_found"
	default:
		return "error"
	}
}
