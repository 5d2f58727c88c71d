package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/metrics"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/services/subscription"
	"reviewhub_backend/pkg/apperrors"
)

const webhookLockTTL = 30 * time.Second

// ReplayGuard - короткая блокировка на повторную доставку одного уведомления (Redis SETNX)
type ReplayGuard interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type PaymentService interface {
	CreateCheckout(ctx context.Context, db *gorm.DB, shopID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	HandleWebhook(ctx context.Context, db *gorm.DB, body []byte) (*subscription.Ack, error)
	GetPayment(ctx context.Context, db *gorm.DB, shopID, orderReference string) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, db *gorm.DB, shopID string, query *dto.PaginationQuery) (*dto.PaymentListResponse, error)
}

type paymentService struct {
	paymentRepo   repositories.PaymentRepository
	webhookRepo   repositories.WebhookRepository
	shopRepo      repositories.ShopRepository
	gateway       *subscription.WayForPayService
	guard         ReplayGuard
	events        EventPublisher
	notifications NotificationService
}

func NewPaymentService(
	paymentRepo repositories.PaymentRepository,
	webhookRepo repositories.WebhookRepository,
	shopRepo repositories.ShopRepository,
	gateway *subscription.WayForPayService,
	guard ReplayGuard,
	events EventPublisher,
	notifications NotificationService,
) PaymentService {
	if events == nil {
		events = NoopPublisher
	}
	return &paymentService{
		paymentRepo:   paymentRepo,
		webhookRepo:   webhookRepo,
		shopRepo:      shopRepo,
		gateway:       gateway,
		guard:         guard,
		events:        events,
		notifications: notifications,
	}
}

// CreateCheckout - заказ в статусе pending и подписанная форма оплаты
func (s *paymentService) CreateCheckout(ctx context.Context, db *gorm.DB, shopID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if !s.gateway.Configured() {
		return nil, apperrors.ErrPaymentProvider
	}

	plan, ok := subscription.ParsePlan(req.Plan)
	if !ok || !subscription.IsPaid(plan) {
		return nil, apperrors.ErrInvalidPlan
	}
	period := models.BillingPeriod(req.BillingPeriod)
	price, ok := s.gateway.Prices().Price(plan, period)
	if !ok {
		return nil, apperrors.ErrInvalidPlan
	}

	shop, err := s.shopRepo.FindByID(withCtx(ctx, db), shopID)
	if err != nil {
		if errors.Is(err, repositories.ErrShopNotFound) {
			return nil, apperrors.ErrShopNotFound
		}
		return nil, storageError(ctx, "find shop", err)
	}

	now := nowFunc()
	payment := &models.Payment{
		OrderReference: orderReference(shopID, now),
		ShopID:         shopID,
		Plan:           plan,
		BillingPeriod:  period,
		Amount:         price,
		Currency:       s.gateway.Currency(),
		Status:         models.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(withCtx(ctx, db), payment); err != nil {
		if errors.Is(err, repositories.ErrPaymentExists) {
			return nil, apperrors.ErrAlreadyExists(err, "payment", "Checkout was already created, please retry")
		}
		return nil, storageError(ctx, "create payment", err)
	}

	form := s.gateway.BuildCheckoutForm(subscription.CheckoutOrder{
		OrderReference: payment.OrderReference,
		OrderDate:      now,
		Amount:         price,
		ProductName:    subscription.ProductName(plan, period),
		ClientEmail:    shop.Email,
	})

	logger.CtxInfo(ctx, "checkout created", "order_reference", payment.OrderReference, "plan", plan, "period", period)

	return &dto.CheckoutResponse{
		OrderReference: payment.OrderReference,
		Amount:         price,
		Currency:       payment.Currency,
		Form:           form,
	}, nil
}

// HandleWebhook применяет уведомление WayForPay ровно один раз и возвращает подтверждение
func (s *paymentService) HandleWebhook(ctx context.Context, db *gorm.DB, body []byte) (*subscription.Ack, error) {
	// без секрета подпись может посчитать кто угодно
	if !s.gateway.Configured() {
		metrics.WebhookEventsTotal.WithLabelValues("not_configured").Inc()
		logger.CtxError(ctx, "payment notification rejected: gateway is not configured")
		return nil, apperrors.ErrPaymentProvider
	}

	n, err := subscription.ParseNotification(body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		logger.CtxWarn(ctx, "malformed payment notification", "error", err)
		return nil, apperrors.NewBadRequestError("Malformed payment notification")
	}

	if !s.gateway.VerifyNotification(n) {
		metrics.WebhookEventsTotal.WithLabelValues("signature_mismatch").Inc()
		logger.CtxWarn(ctx, "payment notification signature mismatch",
			"order_reference", n.OrderReference, "transaction_status", n.TransactionStatus)
		return nil, apperrors.ErrSignatureMismatch
	}

	if s.guard != nil {
		key := fmt.Sprintf("webhook:%s:%s:%s", models.ProviderWayForPay, n.OrderReference, n.TransactionStatus)
		acquired, err := s.guard.SetNX(ctx, key, "1", webhookLockTTL)
		switch {
		case err != nil:
			logger.CtxWarn(ctx, "webhook replay guard unavailable", "error", err)
		case !acquired:
			// та же доставка уже обрабатывается: уникальный индекс всё равно не даст применить её дважды
			metrics.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
			return s.ack(n.OrderReference), nil
		default:
			defer func() {
				if err := s.guard.Delete(context.WithoutCancel(ctx), key); err != nil {
					logger.CtxWarn(ctx, "failed to release webhook replay guard", "error", err)
				}
			}()
		}
	}

	outcome, payment, err := s.applyNotification(ctx, db, n)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(webhookOutcome(err)).Inc()
		return nil, err
	}
	metrics.WebhookEventsTotal.WithLabelValues(outcome).Inc()

	logger.CtxInfo(ctx, "payment notification handled",
		"order_reference", n.OrderReference,
		"transaction_status", n.TransactionStatus,
		"outcome", outcome)

	if outcome == "applied" && payment.Status == models.PaymentStatusCompleted {
		s.afterUpgrade(ctx, db, payment)
	}
	return s.ack(n.OrderReference), nil
}

func (s *paymentService) applyNotification(ctx context.Context, db *gorm.DB, n *subscription.Notification) (string, *models.Payment, error) {
	now := nowFunc()

	tx := withCtx(ctx, db).Begin()
	if tx.Error != nil {
		return "", nil, storageError(ctx, "begin", tx.Error)
	}
	defer tx.Rollback()

	payment, err := s.paymentRepo.FindByOrderReferenceForUpdate(tx, n.OrderReference)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			logger.CtxWarn(ctx, "payment notification for unknown order", "order_reference", n.OrderReference)
			return "", nil, apperrors.ErrPaymentNotFound
		}
		return "", nil, storageError(ctx, "find payment", err)
	}

	event := &models.WebhookEvent{
		Provider:          models.ProviderWayForPay,
		OrderReference:    n.OrderReference,
		TransactionStatus: n.TransactionStatus,
		Payload:           datatypes.JSON(n.Raw),
		SignatureValid:    true,
	}
	inserted, err := s.webhookRepo.Insert(tx, event)
	if err != nil {
		return "", nil, storageError(ctx, "insert webhook event", err)
	}
	if !inserted {
		return "duplicate", payment, nil
	}

	var processingErr error
	outcome := "applied"
	switch {
	case payment.Status == models.PaymentStatusCompleted:
		// завершённый платёж не откатывается и не применяется повторно
		outcome = "ignored"
	case n.Approved():
		if reason := amountMismatch(payment, n); reason != "" {
			processingErr = errors.New(reason)
			s.markFailed(payment, n, reason)
			logger.CtxWarn(ctx, "payment amount mismatch", "order_reference", n.OrderReference, "reason", reason)
			break
		}
		payment.Status = models.PaymentStatusCompleted
		payment.PaidAt = &now
		copyTransaction(payment, n)

		change := repositories.PlanChange{
			Plan:        payment.Plan,
			ReviewLimit: subscription.ReviewLimitColumn(payment.Plan),
			Period:      payment.BillingPeriod,
			Start:       now,
			End:         subscription.PeriodEnd(now, payment.BillingPeriod),
		}
		if err := s.shopRepo.ApplyPlan(tx, payment.ShopID, change); err != nil {
			if errors.Is(err, repositories.ErrShopNotFound) {
				return "", nil, apperrors.ErrShopNotFound
			}
			return "", nil, storageError(ctx, "apply plan", err)
		}
	default:
		s.markFailed(payment, n, n.Reason)
	}

	if outcome == "applied" {
		if err := s.paymentRepo.Update(tx, payment); err != nil {
			return "", nil, storageError(ctx, "update payment", err)
		}
	}
	if err := s.webhookRepo.MarkProcessed(tx, event.ID, now, processingErr); err != nil {
		return "", nil, storageError(ctx, "mark webhook processed", err)
	}
	if err := tx.Commit().Error; err != nil {
		return "", nil, storageError(ctx, "commit", err)
	}
	return outcome, payment, nil
}

func (s *paymentService) markFailed(payment *models.Payment, n *subscription.Notification, reason string) {
	if payment.Status == models.PaymentStatusPending {
		payment.Status = models.PaymentStatusFailed
	}
	copyTransaction(payment, n)
	payment.Reason = reason
}

func (s *paymentService) afterUpgrade(ctx context.Context, db *gorm.DB, payment *models.Payment) {
	shop, err := s.shopRepo.FindByID(withCtx(ctx, db), payment.ShopID)
	if err != nil {
		logger.CtxWithError(ctx, "failed to load shop after upgrade", err, "shop_id", payment.ShopID)
		return
	}
	s.events.PublishToShop(shop.ID, EventPlanChanged, map[string]interface{}{
		"plan":                shop.Plan,
		"reviewLimit":         shop.ReviewLimit,
		"subscriptionEndDate": shop.SubscriptionEndDate,
	})
	if s.notifications != nil {
		s.notifications.NotifyPlanChanged(ctx, shop)
	}
}

func (s *paymentService) ack(orderReference string) *subscription.Ack {
	ack := s.gateway.AcceptResponse(orderReference, nowFunc())
	return &ack
}

func (s *paymentService) GetPayment(ctx context.Context, db *gorm.DB, shopID, orderReference string) (*dto.PaymentResponse, error) {
	payment, err := s.paymentRepo.FindByOrderReference(withCtx(ctx, db), orderReference)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, storageError(ctx, "find payment", err)
	}
	if payment.ShopID != shopID {
		return nil, apperrors.ErrPaymentNotFound
	}
	return toPaymentResponse(payment), nil
}

func (s *paymentService) ListPayments(ctx context.Context, db *gorm.DB, shopID string, query *dto.PaginationQuery) (*dto.PaymentListResponse, error) {
	if query == nil {
		query = &dto.PaginationQuery{}
	}
	limit, offset := query.Normalize()

	payments, total, err := s.paymentRepo.ListByShop(withCtx(ctx, db), shopID, limit, offset)
	if err != nil {
		return nil, storageError(ctx, "list payments", err)
	}

	resp := &dto.PaymentListResponse{
		Payments: make([]*dto.PaymentResponse, 0, len(payments)),
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	for i := range payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(&payments[i]))
	}
	return resp, nil
}

// orderReference - RH-<первые 8 символов id магазина>-<unix ms>
func orderReference(shopID string, now time.Time) string {
	prefix := shopID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("RH-%s-%d", prefix, now.UnixMilli())
}

func copyTransaction(payment *models.Payment, n *subscription.Notification) {
	payment.TransactionStatus = n.TransactionStatus
	payment.AuthCode = n.AuthCode
	payment.CardPan = n.CardPan
	payment.ReasonCode = n.ReasonCode.String()
}

func amountMismatch(payment *models.Payment, n *subscription.Notification) string {
	amount, err := n.Amount.Float()
	if err != nil {
		return "unparseable amount " + n.Amount.String()
	}
	if math.Abs(amount-payment.Amount) > 0.005 {
		return fmt.Sprintf("amount %s does not match order amount %v", n.Amount, payment.Amount)
	}
	if n.Currency != "" && payment.Currency != "" && n.Currency != payment.Currency {
		return fmt.Sprintf("currency %s does not match order currency %s", n.Currency, payment.Currency)
	}
	return ""
}

func webhookOutcome(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrPaymentNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func toPaymentResponse(p *models.Payment) *dto.PaymentResponse {
	return &dto.PaymentResponse{
		OrderReference:    p.OrderReference,
		Plan:              string(p.Plan),
		BillingPeriod:     string(p.BillingPeriod),
		Amount:            p.Amount,
		Currency:          p.Currency,
		Status:            string(p.Status),
		TransactionStatus: p.TransactionStatus,
		CardPan:           p.CardPan,
		Reason:            p.Reason,
		PaidAt:            p.PaidAt,
		CreatedAt:         p.CreatedAt,
	}
}
