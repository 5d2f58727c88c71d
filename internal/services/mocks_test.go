package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"reviewhub_backend/internal/email"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
)

var errUnexpectedQuery = errors.New("unexpected SQL in unit test")

// fakeConnPool - соединение без БД: репозитории подменены моками, а транзакции только считаются
type fakeConnPool struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (p *fakeConnPool) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, errUnexpectedQuery
}

func (p *fakeConnPool) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errUnexpectedQuery
}

func (p *fakeConnPool) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errUnexpectedQuery
}

func (p *fakeConnPool) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func (p *fakeConnPool) BeginTx(context.Context, *sql.TxOptions) (gorm.ConnPool, error) {
	return &fakeTx{fakeConnPool: p}, nil
}

func (p *fakeConnPool) Commits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commits
}

type fakeTx struct {
	*fakeConnPool
	done bool
}

func (t *fakeTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.commits++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.rollbacks++
	return nil
}

func newTestDB(t *testing.T) (*gorm.DB, *fakeConnPool) {
	t.Helper()
	pool := &fakeConnPool{}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: pool}), &gorm.Config{
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, pool
}

// fixedNow подменяет часы сервисов на время теста
func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = prev })
}

// --- ShopRepository ---

type MockShopRepository struct {
	mock.Mock
}

func (m *MockShopRepository) Create(db *gorm.DB, shop *models.Shop) error {
	args := m.Called(shop)
	if args.Error(0) == nil && shop.ID == "" {
		shop.ID = "shop-created"
	}
	return args.Error(0)
}

// FindByID отдаёт копию: сервисы меняют полученный магазин
func (m *MockShopRepository) FindByID(db *gorm.DB, id string) (*models.Shop, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	shop := *args.Get(0).(*models.Shop)
	return &shop, args.Error(1)
}

func (m *MockShopRepository) FindByEmail(db *gorm.DB, email string) (*models.Shop, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shop), args.Error(1)
}

func (m *MockShopRepository) FindByExternalSubject(db *gorm.DB, subject string) (*models.Shop, error) {
	args := m.Called(subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shop), args.Error(1)
}

func (m *MockShopRepository) LinkExternalSubject(db *gorm.DB, shopID, subject string) error {
	return m.Called(shopID, subject).Error(0)
}

func (m *MockShopRepository) IncrementReviewsUsed(db *gorm.DB, shopID string) error {
	return m.Called(shopID).Error(0)
}

func (m *MockShopRepository) ReserveQuotaSlot(db *gorm.DB, shopID string) error {
	return m.Called(shopID).Error(0)
}

func (m *MockShopRepository) DecrementReviewsUsed(db *gorm.DB, shopID string) error {
	return m.Called(shopID).Error(0)
}

func (m *MockShopRepository) ReconcileCounters(db *gorm.DB) (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockShopRepository) ApplyPlan(db *gorm.DB, shopID string, change repositories.PlanChange) error {
	return m.Called(shopID, change).Error(0)
}

func (m *MockShopRepository) FindExpired(db *gorm.DB, now time.Time, limit int) ([]models.Shop, error) {
	args := m.Called(now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Shop), args.Error(1)
}

func (m *MockShopRepository) DowngradeExpired(db *gorm.DB, now time.Time, freeLimit int) (int64, error) {
	args := m.Called(now, freeLimit)
	return args.Get(0).(int64), args.Error(1)
}

// --- LinkRepository ---

type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) Create(db *gorm.DB, link *models.ReviewLink) error {
	return m.Called(link).Error(0)
}

func (m *MockLinkRepository) FindByID(db *gorm.DB, id string) (*models.ReviewLink, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewLink), args.Error(1)
}

func (m *MockLinkRepository) FindUsable(db *gorm.DB, id string, now time.Time) (*models.ReviewLink, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewLink), args.Error(1)
}

func (m *MockLinkRepository) Claim(db *gorm.DB, id string, now time.Time) error {
	return m.Called(id).Error(0)
}

func (m *MockLinkRepository) ListByShop(db *gorm.DB, shopID string, activeOnly bool, limit, offset int) ([]models.ReviewLink, int64, error) {
	args := m.Called(shopID, activeOnly, limit, offset)
	return args.Get(0).([]models.ReviewLink), args.Get(1).(int64), args.Error(2)
}

func (m *MockLinkRepository) Deactivate(db *gorm.DB, shopID, linkID string) error {
	return m.Called(shopID, linkID).Error(0)
}

// --- PaymentRepository ---

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(db *gorm.DB, payment *models.Payment) error {
	return m.Called(payment).Error(0)
}

func (m *MockPaymentRepository) FindByOrderReference(db *gorm.DB, orderReference string) (*models.Payment, error) {
	args := m.Called(orderReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByOrderReferenceForUpdate(db *gorm.DB, orderReference string) (*models.Payment, error) {
	args := m.Called(orderReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(db *gorm.DB, payment *models.Payment) error {
	return m.Called(payment).Error(0)
}

func (m *MockPaymentRepository) ListByShop(db *gorm.DB, shopID string, limit, offset int) ([]models.Payment, int64, error) {
	args := m.Called(shopID, limit, offset)
	return args.Get(0).([]models.Payment), args.Get(1).(int64), args.Error(2)
}

// --- WebhookRepository ---

type MockWebhookRepository struct {
	mock.Mock
}

func (m *MockWebhookRepository) Insert(db *gorm.DB, event *models.WebhookEvent) (bool, error) {
	args := m.Called(event)
	if args.Bool(0) && event.ID == "" {
		event.ID = "event-1"
	}
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookRepository) FindByKey(db *gorm.DB, provider, orderReference, transactionStatus string) (*models.WebhookEvent, error) {
	args := m.Called(provider, orderReference, transactionStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WebhookEvent), args.Error(1)
}

func (m *MockWebhookRepository) MarkProcessed(db *gorm.DB, id string, at time.Time, processingErr error) error {
	return m.Called(id, processingErr).Error(0)
}

// --- UploadRepository ---

type MockUploadRepository struct {
	mock.Mock
}

func (m *MockUploadRepository) Create(db *gorm.DB, upload *models.Upload) error {
	return m.Called(upload).Error(0)
}

func (m *MockUploadRepository) CountByLink(db *gorm.DB, linkID string) (int64, error) {
	args := m.Called(linkID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUploadRepository) ListByLink(db *gorm.DB, linkID string) ([]models.Upload, error) {
	args := m.Called(linkID)
	return args.Get(0).([]models.Upload), args.Error(1)
}

// --- Events / notifications ---

type publishedEvent struct {
	ShopID  string
	Type    string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishToShop(shopID, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{ShopID: shopID, Type: eventType, Payload: payload})
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingProvider - почтовый провайдер, который запоминает шаблоны писем
type recordingProvider struct {
	mu        sync.Mutex
	templates []string
	to        [][]string
}

func (p *recordingProvider) Send(*email.Email) error { return nil }

func (p *recordingProvider) SendTemplate(to []string, subject, templateName string, data email.TemplateData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates = append(p.templates, templateName)
	p.to = append(p.to, to)
	return nil
}

func (p *recordingProvider) Validate() error { return nil }
func (p *recordingProvider) Close() error    { return nil }

func (p *recordingProvider) Templates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.templates...)
}

// memoryGuard - ReplayGuard в памяти
type memoryGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{keys: map[string]bool{}}
}

func (g *memoryGuard) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *memoryGuard) Delete(_ context.Context, keys ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		delete(g.keys, k)
	}
	return nil
}
