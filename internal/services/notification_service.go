package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reviewhub_backend/internal/email"
	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/models"
)

// NotificationService - письма владельцу магазина. Отправка асинхронная и не влияет на результат операции.
type NotificationService interface {
	NotifyNewReview(ctx context.Context, shop *models.Shop, review *models.Review)
	NotifyPlanChanged(ctx context.Context, shop *models.Shop)
	NotifyPlanExpired(ctx context.Context, shop *models.Shop, expiredPlan models.Plan)
	// Wait дожидается отправки поставленных писем (остановка сервера, тесты)
	Wait()
}

type notificationService struct {
	provider email.Provider
	wg       sync.WaitGroup
}

func NewNotificationService(provider email.Provider) NotificationService {
	if provider == nil {
		provider = email.NewNoopProvider()
	}
	return &notificationService{provider: provider}
}

func (s *notificationService) NotifyNewReview(ctx context.Context, shop *models.Shop, review *models.Review) {
	if shop == nil || review == nil {
		return
	}
	s.send(ctx, shop.Email, fmt.Sprintf("Новый отзыв: %d из 5", review.Rating), email.TemplateNewReview, email.TemplateData{
		"ShopName":     shop.Name,
		"CustomerName": review.CustomerName,
		"Rating":       review.Rating,
		"Text":         review.Text,
	})
}

func (s *notificationService) NotifyPlanChanged(ctx context.Context, shop *models.Shop) {
	if shop == nil {
		return
	}
	data := email.TemplateData{
		"ShopName": shop.Name,
		"Plan":     string(shop.Plan),
	}
	if shop.SubscriptionEndDate != nil {
		data["EndDate"] = shop.SubscriptionEndDate.Format("02.01.2006")
	}
	s.send(ctx, shop.Email, "Тариф изменён", email.TemplatePlanChanged, data)
}

func (s *notificationService) NotifyPlanExpired(ctx context.Context, shop *models.Shop, expiredPlan models.Plan) {
	if shop == nil {
		return
	}
	s.send(ctx, shop.Email, "Подписка истекла", email.TemplatePlanExpired, email.TemplateData{
		"ShopName": shop.Name,
		"Plan":     string(expiredPlan),
	})
}

func (s *notificationService) Wait() {
	s.wg.Wait()
}

func (s *notificationService) send(ctx context.Context, to, subject, template string, data email.TemplateData) {
	if to == "" {
		return
	}
	// письмо не должно отменяться вместе с HTTP-запросом
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		if err := s.provider.SendTemplate([]string{to}, subject, template, data); err != nil {
			logger.CtxWithError(ctx, "failed to send notification", err, "template", template)
			return
		}
		logger.CtxDebug(ctx, "notification sent", "template", template, "duration", time.Since(start))
	}()
}
