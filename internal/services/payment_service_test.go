package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reviewhub_backend/internal/email"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/services/subscription"
	"reviewhub_backend/pkg/apperrors"
)

const testMerchant = "test_merch_n1"

type paymentFixture struct {
	svc      PaymentService
	gateway  *subscription.WayForPayService
	payments *MockPaymentRepository
	webhooks *MockWebhookRepository
	shops    *MockShopRepository
	guard    *memoryGuard
	events   *recordingPublisher
	mail     *recordingProvider
	notify   NotificationService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	fixedNow(t, testNow)

	f := &paymentFixture{
		gateway: subscription.NewWayForPayService(subscription.WayForPayConfig{
			MerchantAccount:    testMerchant,
			MerchantDomainName: "reviewhub.example",
			SecretKey:          "flk3409refn54t54t*FNJRET",
			PayURL:             "https://secure.wayforpay.com/pay",
			Currency:           "UAH",
			Prices:             subscription.PriceList{"PRO_monthly": 299, "BUSINESS_yearly": 9990},
		}),
		payments: &MockPaymentRepository{},
		webhooks: &MockWebhookRepository{},
		shops:    &MockShopRepository{},
		guard:    newMemoryGuard(),
		events:   &recordingPublisher{},
		mail:     &recordingProvider{},
	}
	f.notify = NewNotificationService(f.mail)
	f.svc = NewPaymentService(f.payments, f.webhooks, f.shops, f.gateway, f.guard, f.events, f.notify)
	return f
}

// notification собирает тело уведомления с корректной подписью
func (f *paymentFixture) notification(t *testing.T, orderRef, amount, status string) []byte {
	t.Helper()
	n := map[string]interface{}{
		"merchantAccount":   testMerchant,
		"orderReference":    orderRef,
		"amount":            json.RawMessage(amount),
		"currency":          "UAH",
		"authCode":          "541963",
		"cardPan":           "44****7701",
		"transactionStatus": status,
		"reasonCode":        1100,
		"reason":            "Ok",
	}
	n["merchantSignature"] = f.gateway.Sign(testMerchant, orderRef, amount, "UAH", "541963", "44****7701", status, "1100")
	body, err := json.Marshal(n)
	require.NoError(t, err)
	return body
}

func pendingPayment(orderRef string) *models.Payment {
	return &models.Payment{
		OrderReference: orderRef,
		ShopID:         "shop-1",
		Plan:           models.PlanPro,
		BillingPeriod:  models.BillingPeriodMonthly,
		Amount:         299,
		Currency:       "UAH",
		Status:         models.PaymentStatusPending,
	}
}

func TestCreateCheckout(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	f.shops.On("FindByID", "shop-1234567890").Return(&models.Shop{BaseModel: models.BaseModel{ID: "shop-1234567890"}, Email: "o@shop.test"}, nil)

	var created *models.Payment
	f.payments.On("Create", mock.AnythingOfType("*models.Payment")).Run(func(args mock.Arguments) {
		created = args.Get(0).(*models.Payment)
	}).Return(nil)

	resp, err := f.svc.CreateCheckout(context.Background(), db, "shop-1234567890", &dto.CheckoutRequest{Plan: "PRO", BillingPeriod: "monthly"})
	require.NoError(t, err)

	assert.Equal(t, "RH-shop-123-"+strconv.FormatInt(testNow.UnixMilli(), 10), resp.OrderReference)
	assert.Equal(t, 299.0, resp.Amount)
	assert.Equal(t, "UAH", resp.Currency)
	assert.Equal(t, resp.OrderReference, resp.Form.OrderReference)
	assert.Equal(t, "299", resp.Form.Amount)
	assert.Equal(t, "o@shop.test", resp.Form.ClientEmail)
	assert.NotEmpty(t, resp.Form.MerchantSignature)

	require.NotNil(t, created)
	assert.Equal(t, models.PaymentStatusPending, created.Status)
	assert.Equal(t, models.PlanPro, created.Plan)
}

func TestCreateCheckout_UnpricedPlan(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)

	_, err := f.svc.CreateCheckout(context.Background(), db, "shop-1", &dto.CheckoutRequest{Plan: "PRO", BillingPeriod: "yearly"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPlan)

	_, err = f.svc.CreateCheckout(context.Background(), db, "shop-1", &dto.CheckoutRequest{Plan: "FREE", BillingPeriod: "monthly"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPlan)
}

func TestCreateCheckout_GatewayNotConfigured(t *testing.T) {
	db, _ := newTestDB(t)
	svc := NewPaymentService(&MockPaymentRepository{}, &MockWebhookRepository{}, &MockShopRepository{},
		subscription.NewWayForPayService(subscription.WayForPayConfig{}), nil, nil, nil)

	_, err := svc.CreateCheckout(context.Background(), db, "shop-1", &dto.CheckoutRequest{Plan: "PRO", BillingPeriod: "monthly"})
	assert.ErrorIs(t, err, apperrors.ErrPaymentProvider)
}

func TestHandleWebhook_GatewayNotConfigured(t *testing.T) {
	fixedNow(t, testNow)
	db, pool := newTestDB(t)
	payments := &MockPaymentRepository{}
	webhooks := &MockWebhookRepository{}
	shops := &MockShopRepository{}
	// без секретного ключа подпись считается по пустому ключу
	unsigned := subscription.NewWayForPayService(subscription.WayForPayConfig{MerchantAccount: testMerchant})
	svc := NewPaymentService(payments, webhooks, shops, unsigned, newMemoryGuard(), nil, nil)

	ref := "RH-shop-1-9"
	body, err := json.Marshal(map[string]interface{}{
		"merchantAccount":   testMerchant,
		"orderReference":    ref,
		"amount":            299,
		"currency":          "UAH",
		"authCode":          "1",
		"cardPan":           "44****0000",
		"transactionStatus": "Approved",
		"reasonCode":        1100,
		"merchantSignature": unsigned.Sign(testMerchant, ref, "299", "UAH", "1", "44****0000", "Approved", "1100"),
	})
	require.NoError(t, err)

	_, err = svc.HandleWebhook(context.Background(), db, body)
	assert.ErrorIs(t, err, apperrors.ErrPaymentProvider)
	assert.Equal(t, 0, pool.Commits())
	payments.AssertNotCalled(t, "FindByOrderReferenceForUpdate", mock.Anything)
	shops.AssertNotCalled(t, "ApplyPlan", mock.Anything, mock.Anything)
}

func TestHandleWebhook_ApprovedUpgradesPlan(t *testing.T) {
	f := newPaymentFixture(t)
	db, pool := newTestDB(t)
	ref := "RH-shop-1-1"
	payment := pendingPayment(ref)
	end := testNow.AddDate(0, 1, 0)

	f.payments.On("FindByOrderReferenceForUpdate", ref).Return(payment, nil)
	f.webhooks.On("Insert", mock.AnythingOfType("*models.WebhookEvent")).Return(true, nil)
	f.shops.On("ApplyPlan", "shop-1", repositories.PlanChange{
		Plan:        models.PlanPro,
		ReviewLimit: 100,
		Period:      models.BillingPeriodMonthly,
		Start:       testNow,
		End:         end,
	}).Return(nil).Once()
	f.payments.On("Update", payment).Return(nil).Once()
	f.webhooks.On("MarkProcessed", "event-1", nil).Return(nil).Once()
	f.shops.On("FindByID", "shop-1").Return(&models.Shop{
		BaseModel:           models.BaseModel{ID: "shop-1"},
		Email:               "o@shop.test",
		Plan:                models.PlanPro,
		ReviewLimit:         100,
		SubscriptionEndDate: &end,
	}, nil)

	ack, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, ref, "299", "Approved"))
	require.NoError(t, err)
	f.notify.Wait()

	assert.Equal(t, ref, ack.OrderReference)
	assert.Equal(t, subscription.AckStatusAccept, ack.Status)
	assert.Equal(t, testNow.Unix(), ack.Time)
	assert.Equal(t, f.gateway.Sign(ref, "accept", strconv.FormatInt(testNow.Unix(), 10)), ack.Signature)

	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.NotNil(t, payment.PaidAt)
	assert.Equal(t, "Approved", payment.TransactionStatus)
	assert.Equal(t, "44****7701", payment.CardPan)
	assert.Equal(t, 1, pool.Commits())
	assert.Equal(t, []string{EventPlanChanged}, f.events.Types())
	assert.Equal(t, []string{email.TemplatePlanChanged}, f.mail.Templates())
	f.shops.AssertExpectations(t)
	f.payments.AssertExpectations(t)
	f.webhooks.AssertExpectations(t)
}

func TestHandleWebhook_DuplicateDeliveryIsAckedOnly(t *testing.T) {
	f := newPaymentFixture(t)
	db, pool := newTestDB(t)
	ref := "RH-shop-1-2"

	f.payments.On("FindByOrderReferenceForUpdate", ref).Return(pendingPayment(ref), nil)
	f.webhooks.On("Insert", mock.Anything).Return(false, nil)

	ack, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, ref, "299", "Approved"))
	require.NoError(t, err)
	assert.Equal(t, subscription.AckStatusAccept, ack.Status)

	f.shops.AssertNotCalled(t, "ApplyPlan", mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "Update", mock.Anything)
	assert.Equal(t, 0, pool.Commits())
	assert.Empty(t, f.events.Types())
}

func TestHandleWebhook_InFlightDeliveryHitsGuard(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	ref := "RH-shop-1-3"

	_, err := f.guard.SetNX(context.Background(), "webhook:wayforpay:"+ref+":Approved", "1", time.Minute)
	require.NoError(t, err)

	ack, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, ref, "299", "Approved"))
	require.NoError(t, err)
	assert.Equal(t, ref, ack.OrderReference)
	f.payments.AssertNotCalled(t, "FindByOrderReferenceForUpdate", mock.Anything)
}

func TestHandleWebhook_GuardReleasedAfterProcessing(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	ref := "RH-shop-1-4"

	f.payments.On("FindByOrderReferenceForUpdate", ref).Return(pendingPayment(ref), nil)
	f.webhooks.On("Insert", mock.Anything).Return(false, nil)

	_, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, ref, "299", "Approved"))
	require.NoError(t, err)
	assert.Empty(t, f.guard.keys)
}

func TestHandleWebhook_SignatureMismatch(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)

	body := f.notification(t, "RH-shop-1-5", "299", "Approved")
	var n map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &n))
	n["amount"] = 1
	tampered, err := json.Marshal(n)
	require.NoError(t, err)

	_, err = f.svc.HandleWebhook(context.Background(), db, tampered)
	assert.ErrorIs(t, err, apperrors.ErrSignatureMismatch)
	f.payments.AssertNotCalled(t, "FindByOrderReferenceForUpdate", mock.Anything)
}

func TestHandleWebhook_Malformed(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)

	for _, body := range []string{"", "not json", `{"amount":1}`} {
		_, err := f.svc.HandleWebhook(context.Background(), db, []byte(body))
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), body)
	}
}

func TestHandleWebhook_UnknownOrder(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	f.payments.On("FindByOrderReferenceForUpdate", "RH-ghost").Return(nil, repositories.ErrPaymentNotFound)

	_, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, "RH-ghost", "299", "Approved"))
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
}

func TestHandleWebhook_DeclinedMarksFailed(t *testing.T) {
	f := newPaymentFixture(t)
	db, pool := newTestDB(t)
	ref := "RH-shop-1-6"
	payment := pendingPayment(ref)

	f.payments.On("FindByOrderReferenceForUpdate", ref).Return(payment, nil)
	f.webhooks.On("Insert", mock.Anything).Return(true, nil)
	f.payments.On("Update", payment).Return(nil)
	f.webhooks.On("MarkProcessed", "event-1", nil).Return(nil)

	_, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, ref, "299", "Declined"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "Declined", payment.TransactionStatus)
	assert.Equal(t, 1, pool.Commits())
	f.shops.AssertNotCalled(t, "ApplyPlan", mock.Anything, mock.Anything)
	assert.Empty(t, f.events.Types())
}

func TestHandleWebhook_AmountMismatchDoesNotUpgrade(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	ref := "RH-shop-1-7"
	payment := pendingPayment(ref)

	f.payments.On("FindByOrderReferenceForUpdate", ref).Return(payment, nil)
	f.webhooks.On("Insert", mock.Anything).Return(true, nil)
	f.payments.On("Update", payment).Return(nil)
	f.webhooks.On("MarkProcessed", "event-1", mock.MatchedBy(func(err error) bool { return err != nil })).Return(nil)

	_, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, ref, "1", "Approved"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Contains(t, payment.Reason, "does not match")
	f.shops.AssertNotCalled(t, "ApplyPlan", mock.Anything, mock.Anything)
	f.webhooks.AssertExpectations(t)
}

func TestHandleWebhook_CompletedPaymentIsNeverRolledBack(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	ref := "RH-shop-1-8"
	payment := pendingPayment(ref)
	payment.Status = models.PaymentStatusCompleted

	f.payments.On("FindByOrderReferenceForUpdate", ref).Return(payment, nil)
	f.webhooks.On("Insert", mock.Anything).Return(true, nil)
	f.webhooks.On("MarkProcessed", "event-1", nil).Return(nil)

	_, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, ref, "299", "Refunded"))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	f.payments.AssertNotCalled(t, "Update", mock.Anything)
}

func TestHandleWebhook_StorageFailureIsRetryable(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	ref := "RH-shop-1-9"

	f.payments.On("FindByOrderReferenceForUpdate", ref).Return(pendingPayment(ref), nil)
	f.webhooks.On("Insert", mock.Anything).Return(false, errors.New("connection refused"))

	_, err := f.svc.HandleWebhook(context.Background(), db, f.notification(t, ref, "299", "Approved"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageError))
	assert.Empty(t, f.guard.keys)
}

func TestGetPayment_OtherShop(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	f.payments.On("FindByOrderReference", "RH-1").Return(pendingPayment("RH-1"), nil)

	_, err := f.svc.GetPayment(context.Background(), db, "shop-2", "RH-1")
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)

	resp, err := f.svc.GetPayment(context.Background(), db, "shop-1", "RH-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
}

func TestListPayments_Defaults(t *testing.T) {
	f := newPaymentFixture(t)
	db, _ := newTestDB(t)
	f.payments.On("ListByShop", "shop-1", 20, 0).Return([]models.Payment{*pendingPayment("RH-1")}, int64(1), nil)

	resp, err := f.svc.ListPayments(context.Background(), db, "shop-1", nil)
	require.NoError(t, err)
	assert.Len(t, resp.Payments, 1)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)
}
