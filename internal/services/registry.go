package services

import (
	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/subscription"
	"reviewhub_backend/internal/storage"
	"reviewhub_backend/internal/validator"
)

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	AuthService         AuthService
	LinkService         LinkService
	ReviewService       ReviewService
	SubmissionService   SubmissionService
	FeedService         FeedService
	PaymentService      PaymentService
	BillingSweepService BillingSweepService
	UploadService       UploadService
	NotificationService NotificationService
}

// Dependencies - инфраструктура, которую собирает app
type Dependencies struct {
	Tokens        *auth.TokenManager
	Validator     *validator.Validator
	Storage       storage.Storage
	Gateway       *subscription.WayForPayService
	FeedCache     BatchCache
	ReplayGuard   ReplayGuard
	Events        EventPublisher
	Notifications NotificationService

	StrictQuota   bool
	FeedBatchSize int
	FeedPageSize  int
	Upload        *UploadConfig
}

func NewServiceContainer(deps Dependencies) *ServiceContainer {
	shopRepo := repositories.NewShopRepository()
	linkRepo := repositories.NewLinkRepository()
	reviewRepo := repositories.NewReviewRepository()
	paymentRepo := repositories.NewPaymentRepository()
	webhookRepo := repositories.NewWebhookRepository()
	uploadRepo := repositories.NewUploadRepository()

	if deps.FeedCache == nil {
		deps.FeedCache = NewNoopBatchCache()
	}
	if deps.Events == nil {
		deps.Events = NoopPublisher
	}
	if deps.Notifications == nil {
		deps.Notifications = NewNotificationService(nil)
	}
	if deps.Upload == nil {
		deps.Upload = DefaultUploadConfig()
	}

	links := NewLinkService(linkRepo, shopRepo, deps.Upload.MaxFilesPerLink)
	reviews := NewReviewService(reviewRepo, shopRepo, deps.FeedCache, deps.Events)
	submissions := NewSubmissionService(
		reviews, links, linkRepo, shopRepo, deps.Validator,
		deps.FeedCache, deps.Events, deps.Notifications,
		SubmissionOptions{StrictQuota: deps.StrictQuota},
	)
	payments := NewPaymentService(
		paymentRepo, webhookRepo, shopRepo, deps.Gateway,
		deps.ReplayGuard, deps.Events, deps.Notifications,
	)

	return &ServiceContainer{
		AuthService:         NewAuthService(shopRepo, deps.Tokens, deps.Validator),
		LinkService:         links,
		ReviewService:       reviews,
		SubmissionService:   submissions,
		FeedService:         NewFeedService(reviews, deps.FeedCache, deps.FeedBatchSize, deps.FeedPageSize),
		PaymentService:      payments,
		BillingSweepService: NewBillingSweepService(shopRepo, deps.Events, deps.Notifications),
		UploadService:       NewUploadService(uploadRepo, links, deps.Storage, deps.Upload),
		NotificationService: deps.Notifications,
	}
}
