package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/metrics"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/services/subscription"
)

// expiredNotifyLimit - сколько магазинов уведомляем за один проход
const expiredNotifyLimit = 500

// BillingSweepService - плановые задачи: откат истёкших подписок и сверка счётчиков
type BillingSweepService interface {
	SweepExpired(ctx context.Context, db *gorm.DB, now time.Time) (*dto.SweepResponse, error)
	ReconcileCounters(ctx context.Context, db *gorm.DB) (*dto.ReconcileResponse, error)
}

type billingSweepService struct {
	shopRepo      repositories.ShopRepository
	events        EventPublisher
	notifications NotificationService
}

func NewBillingSweepService(shopRepo repositories.ShopRepository, events EventPublisher, notifications NotificationService) BillingSweepService {
	if events == nil {
		events = NoopPublisher
	}
	return &billingSweepService{
		shopRepo:      shopRepo,
		events:        events,
		notifications: notifications,
	}
}

// SweepExpired переводит на FREE все платные магазины с истёкшей подпиской.
// Один пакетный UPDATE: повторный запуск с тем же now ничего не меняет.
func (s *billingSweepService) SweepExpired(ctx context.Context, db *gorm.DB, now time.Time) (*dto.SweepResponse, error) {
	now = now.UTC()

	// список нужен только для писем, откат делает один UPDATE ниже
	expired, err := s.shopRepo.FindExpired(withCtx(ctx, db), now, expiredNotifyLimit)
	if err != nil {
		return nil, storageError(ctx, "find expired shops", err)
	}

	affected, err := s.shopRepo.DowngradeExpired(withCtx(ctx, db), now, subscription.ReviewLimitColumn(models.PlanFree))
	if err != nil {
		return nil, storageError(ctx, "downgrade expired shops", err)
	}

	metrics.ShopsDowngradedTotal.Add(float64(affected))
	logger.CtxInfo(ctx, "expired subscriptions swept", "downgraded", affected)

	for i := range expired {
		shop := &expired[i]
		previous := shop.Plan
		shop.Plan = models.PlanFree
		shop.ReviewLimit = subscription.ReviewLimitColumn(models.PlanFree)

		s.events.PublishToShop(shop.ID, EventPlanChanged, map[string]interface{}{
			"plan":         shop.Plan,
			"reviewLimit":  shop.ReviewLimit,
			"previousPlan": previous,
		})
		if s.notifications != nil {
			s.notifications.NotifyPlanExpired(ctx, shop, previous)
		}
	}

	return &dto.SweepResponse{Downgraded: affected, RanAt: now}, nil
}

// ReconcileCounters - reviews_used := фактическое число отзывов там, где они разошлись
func (s *billingSweepService) ReconcileCounters(ctx context.Context, db *gorm.DB) (*dto.ReconcileResponse, error) {
	repaired, err := s.shopRepo.ReconcileCounters(withCtx(ctx, db))
	if err != nil {
		return nil, storageError(ctx, "reconcile counters", err)
	}
	if repaired > 0 {
		metrics.CounterDriftTotal.Add(float64(repaired))
		logger.CtxWarn(ctx, "review counters drifted and were repaired", "shops", repaired)
	}
	return &dto.ReconcileResponse{Repaired: repaired, RanAt: nowFunc()}, nil
}
