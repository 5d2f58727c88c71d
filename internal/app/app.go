package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"reviewhub_backend/database"
	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/cache"
	"reviewhub_backend/internal/config"
	"reviewhub_backend/internal/email"
	"reviewhub_backend/internal/handlers"
	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/middleware"
	"reviewhub_backend/internal/routes"
	"reviewhub_backend/internal/services"
	"reviewhub_backend/internal/services/subscription"
	"reviewhub_backend/internal/storage"
	"reviewhub_backend/internal/validator"
	"reviewhub_backend/internal/workers"
	"reviewhub_backend/pkg/apperrors"
	"reviewhub_backend/ws"
)

// App - собранное приложение: роутер, сервисы и фоновые задачи
type App struct {
	cfg      *config.Config
	db       *gorm.DB
	redis    *cache.Redis
	Router   *gin.Engine
	Services *services.ServiceContainer
	hub      *ws.Hub
	worker   *workers.BillingWorker
}

func Run() {
	cfg := config.GetConfig()
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	gormDB, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(gormDB); err != nil {
			logger.Fatal("Failed to migrate database", "error", err)
		}
	}

	redisClient := connectRedis(cfg)

	application, err := New(ctx, cfg, gormDB, redisClient)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}

	if err := application.Services.AuthService.SeedAdmin(ctx, gormDB, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
		logger.Fatal("Failed to seed first admin user", "error", err)
	}

	application.Start(ctx)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              address,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "address", address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	application.Close()
	logger.Info("Server stopped")
}

// New собирает зависимости. redis может быть nil: лимиты и кэш ленты тогда отключены.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, redisClient *cache.Redis) (*App, error) {
	storageInstance, err := storage.NewStorage(storage.Config{
		Type:       cfg.Storage.Type,
		BasePath:   cfg.Storage.BasePath,
		BaseURL:    cfg.Storage.BaseURL,
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Endpoint:   cfg.Storage.Endpoint,
		AccountID:  cfg.Storage.AccountID,
		UseSSL:     cfg.Storage.UseSSL,
		PublicRead: cfg.Storage.PublicRead,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("Storage initialized", "type", storageInstance.Provider())

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.TokenTTL(), cfg.JWT.Issuer)
	if err != nil {
		return nil, err
	}

	customValidator := validator.New()
	hub := ws.NewHub()

	serviceContainer := initializeServices(cfg, redisClient, storageInstance, tokens, customValidator, hub)

	authenticator, err := initializeAuthenticator(ctx, cfg, db, tokens, serviceContainer.AuthService)
	if err != nil {
		return nil, err
	}

	appHandlers := initializeHandlers(cfg, serviceContainer, customValidator)

	var limiter middleware.Counter
	if redisClient != nil && cfg.RateLimit.Enabled {
		limiter = redisClient
	}
	mw := handlers.RouteMiddleware{
		Auth: middleware.AuthMiddleware(authenticator),
		PublicLimit: middleware.RateLimit(limiter, middleware.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimitWindow(),
			Scope:    "public",
		}),
		FeedLimit: middleware.RateLimit(limiter, middleware.RateLimitConfig{
			Requests: cfg.RateLimit.FeedRequests,
			Window:   cfg.RateLimitWindow(),
			Scope:    "feed",
		}),
	}

	ginRouter := initializeGinRouter(cfg, db, redisClient, storageInstance)
	routes.RegisterRoutes(ginRouter, appHandlers, ws.NewHandler(hub, cfg.CORS.AllowedOrigins), mw)

	application := &App{
		cfg:      cfg,
		db:       db,
		redis:    redisClient,
		Router:   ginRouter,
		Services: serviceContainer,
		hub:      hub,
	}
	if cfg.Workers.Enabled {
		application.worker = workers.NewBillingWorker(db, serviceContainer.BillingSweepService, cfg.SweepInterval(), cfg.ReconcileInterval())
	}
	return application, nil
}

// Start запускает websocket-хаб и фоновые задачи до отмены ctx
func (a *App) Start(ctx context.Context) {
	go a.hub.Run(ctx)
	if a.worker != nil {
		a.worker.Start(ctx)
	}
}

// Close дожидается фоновых задач и писем, закрывает соединения
func (a *App) Close() {
	if a.worker != nil {
		a.worker.Wait()
	}
	a.Services.NotificationService.Wait()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("failed to close redis", "error", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func connectRedis(cfg *config.Config) *cache.Redis {
	if cfg.Redis.URL == "" {
		logger.Warn("Redis is not configured: rate limiting and feed cache are disabled")
		return nil
	}
	client, err := cache.NewRedis(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// Redis необязателен: без него лента читается из БД
		logger.Error("Redis unavailable, continuing without it", "error", err)
		return nil
	}
	logger.Info("Redis connected")
	return client
}

func initializeServices(
	cfg *config.Config,
	redisClient *cache.Redis,
	storageInstance storage.Storage,
	tokens *auth.TokenManager,
	v *validator.Validator,
	hub *ws.Hub,
) *services.ServiceContainer {
	var emailProvider email.Provider = email.NewNoopProvider()
	if cfg.Email.SMTPHost != "" {
		templates, err := email.NewTemplateManagerFromDir(cfg.Email.TemplatesDir)
		if err != nil {
			logger.Warn("failed to load email templates, using builtin ones", "dir", cfg.Email.TemplatesDir, "error", err)
			templates = email.NewDefaultTemplateManager()
		}
		smtp, err := email.NewSMTPProvider(&email.SMTPConfig{
			Host:      cfg.Email.SMTPHost,
			Port:      cfg.Email.SMTPPort,
			Username:  cfg.Email.SMTPUsername,
			Password:  cfg.Email.SMTPPassword,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
			UseTLS:    cfg.Email.UseTLS,
			Timeout:   30 * time.Second,
		}, templates)
		if err != nil {
			logger.Warn("SMTP provider misconfigured, notifications are disabled", "error", err)
		} else {
			emailProvider = smtp
		}
	} else {
		logger.Warn("SMTP is not configured, notifications are disabled")
	}

	var (
		feedCache services.BatchCache
		guard     services.ReplayGuard
	)
	if redisClient != nil {
		feedCache = services.NewRedisBatchCache(redisClient, cfg.FeedCacheTTL())
		guard = redisClient
	}

	gateway := subscription.NewWayForPayService(subscription.WayForPayConfig{
		MerchantAccount:    cfg.WayForPay.MerchantAccount,
		MerchantDomainName: cfg.WayForPay.MerchantDomainName,
		SecretKey:          cfg.WayForPay.SecretKey,
		ServiceURL:         cfg.WayForPay.ServiceURL,
		ReturnURL:          cfg.WayForPay.ReturnURL,
		PayURL:             cfg.WayForPay.PayURL,
		Currency:           cfg.WayForPay.Currency,
		Prices:             subscription.PriceList(cfg.WayForPay.Prices),
	})
	if !gateway.Configured() {
		logger.Warn("WayForPay is not configured: checkout and webhook are disabled")
	}

	return services.NewServiceContainer(services.Dependencies{
		Tokens:        tokens,
		Validator:     v,
		Storage:       storageInstance,
		Gateway:       gateway,
		FeedCache:     feedCache,
		ReplayGuard:   guard,
		Events:        hub,
		Notifications: services.NewNotificationService(emailProvider),
		StrictQuota:   cfg.Quota.Strict,
		FeedBatchSize: cfg.Feed.BatchSize,
		FeedPageSize:  cfg.Feed.PageSize,
		Upload: &services.UploadConfig{
			MaxFileSize:     cfg.Upload.MaxSize,
			AllowedTypes:    cfg.Upload.AllowedTypes,
			MaxFilesPerLink: cfg.Upload.MaxFilesPerLink,
			ImageQuality:    cfg.Upload.ImageQuality,
			VideoEnabled:    cfg.Upload.VideoEnabled,
		},
	})
}

// initializeAuthenticator - собственные токены, плюс внешний IdP при заданном JWKS
func initializeAuthenticator(
	ctx context.Context,
	cfg *config.Config,
	db *gorm.DB,
	tokens *auth.TokenManager,
	authService services.AuthService,
) (*auth.Authenticator, error) {
	authenticator := auth.NewAuthenticator(tokens)
	if cfg.JWT.JWKSURL == "" {
		return authenticator, nil
	}

	verifier, err := auth.NewExternalVerifier(ctx, cfg.JWT.JWKSURL, cfg.JWT.ExternalIssuer, cfg.JWT.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to init external identity provider: %w", err)
	}
	logger.Info("External identity provider enabled", "jwks_url", cfg.JWT.JWKSURL)

	return authenticator.WithExternal(verifier, func(ctx context.Context, identity *auth.ExternalIdentity) (string, string, error) {
		shop, err := authService.ResolveExternal(ctx, db, identity)
		if err != nil {
			return "", "", err
		}
		return shop.ID, string(shop.Role), nil
	}), nil
}

func initializeHandlers(cfg *config.Config, s *services.ServiceContainer, v *validator.Validator) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler(v)

	return &handlers.AppHandlers{
		AuthHandler:    handlers.NewAuthHandler(baseHandler, s.AuthService, subscription.PriceList(cfg.WayForPay.Prices)),
		LinkHandler:    handlers.NewLinkHandler(baseHandler, s.LinkService),
		ReviewHandler:  handlers.NewReviewHandler(baseHandler, s.ReviewService, s.SubmissionService, s.FeedService),
		PaymentHandler: handlers.NewPaymentHandler(baseHandler, s.PaymentService),
		UploadHandler:  handlers.NewUploadHandler(baseHandler, s.UploadService, cfg.Upload.MaxSize),
		AdminHandler:   handlers.NewAdminHandler(baseHandler, s.BillingSweepService),
	}
}

func initializeGinRouter(cfg *config.Config, db *gorm.DB, redisClient *cache.Redis, storageInstance storage.Storage) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(middleware.DBMiddleware(db))

	router.GET("/metrics", middleware.MetricsHandler())
	router.GET("/health", healthHandler(db, redisClient))

	if local, ok := storageInstance.(*storage.LocalStorage); ok {
		router.Static("/uploads", local.BasePath())
	}
	return router
}

func healthHandler(db *gorm.DB, redisClient *cache.Redis) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"database": "ok"}
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			logger.CtxWarn(ctx, "health check: database unavailable", "error", err)
			apperrors.HandleError(c, apperrors.ErrStorage(err))
			return
		}

		if redisClient != nil {
			if err := redisClient.Ping(ctx); err != nil {
				// Redis необязателен
				status["redis"] = "degraded"
			} else {
				status["redis"] = "ok"
			}
		}
		status["status"] = "ok"
		c.JSON(http.StatusOK, status)
	}
}
