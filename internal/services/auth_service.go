package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/services/subscription"
	"reviewhub_backend/internal/validator"
	"reviewhub_backend/pkg/apperrors"
)

type AuthService interface {
	Register(ctx context.Context, db *gorm.DB, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error)
	Me(ctx context.Context, db *gorm.DB, shopID string) (*dto.ShopResponse, error)
	// ResolveExternal находит магазин по внешней личности; при первом входе создаёт его
	ResolveExternal(ctx context.Context, db *gorm.DB, identity *auth.ExternalIdentity) (*models.Shop, error)
	SeedAdmin(ctx context.Context, db *gorm.DB, email, password, name string) error
}

type authService struct {
	shopRepo  repositories.ShopRepository
	tokens    *auth.TokenManager
	validator *validator.Validator
}

func NewAuthService(shopRepo repositories.ShopRepository, tokens *auth.TokenManager, v *validator.Validator) AuthService {
	return &authService{
		shopRepo:  shopRepo,
		tokens:    tokens,
		validator: v,
	}
}

// Register - новый магазин всегда начинает с FREE
func (s *authService) Register(ctx context.Context, db *gorm.DB, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.ValidationError(map[string]string{"password": err.Error()})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	shop := newFreeShop(req.Email, strings.TrimSpace(req.Name))
	shop.PasswordHash = hash

	if err := s.shopRepo.Create(withCtx(ctx, db), shop); err != nil {
		if errors.Is(err, repositories.ErrShopAlreadyExists) {
			return nil, apperrors.ErrEmailAlreadyExists
		}
		return nil, storageError(ctx, "create shop", err)
	}

	logger.CtxInfo(ctx, "shop registered", "shop_id", shop.ID)
	return s.issue(shop)
}

func (s *authService) Login(ctx context.Context, db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	if err := validateRequest(s.validator, req); err != nil {
		return nil, err
	}

	shop, err := s.shopRepo.FindByEmail(withCtx(ctx, db), req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrShopNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, storageError(ctx, "find shop", err)
	}

	// у аккаунтов внешнего IdP пароля нет, CheckPasswordHash вернёт false
	if !auth.CheckPasswordHash(req.Password, shop.PasswordHash) {
		logger.CtxWarn(ctx, "failed login attempt", "shop_id", shop.ID)
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(shop)
}

func (s *authService) Me(ctx context.Context, db *gorm.DB, shopID string) (*dto.ShopResponse, error) {
	shop, err := s.shopRepo.FindByID(withCtx(ctx, db), shopID)
	if err != nil {
		if errors.Is(err, repositories.ErrShopNotFound) {
			return nil, apperrors.ErrShopNotFound
		}
		return nil, storageError(ctx, "find shop", err)
	}
	return ToShopResponse(shop), nil
}

func (s *authService) ResolveExternal(ctx context.Context, db *gorm.DB, identity *auth.ExternalIdentity) (*models.Shop, error) {
	if identity == nil || identity.Subject == "" {
		return nil, apperrors.ErrInvalidToken
	}

	shop, err := s.shopRepo.FindByExternalSubject(withCtx(ctx, db), identity.Subject)
	if err == nil {
		return shop, nil
	}
	if !errors.Is(err, repositories.ErrShopNotFound) {
		return nil, storageError(ctx, "find shop by subject", err)
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, apperrors.NewBadRequestError("External identity has no email")
	}

	// магазин, зарегистрированный паролем, привязывается к внешней личности
	existing, err := s.shopRepo.FindByEmail(withCtx(ctx, db), email)
	switch {
	case err == nil:
		if err := s.shopRepo.LinkExternalSubject(withCtx(ctx, db), existing.ID, identity.Subject); err != nil {
			return nil, storageError(ctx, "link external subject", err)
		}
		subject := identity.Subject
		existing.ExternalSubject = &subject
		logger.CtxInfo(ctx, "external identity linked to shop", "shop_id", existing.ID)
		return existing, nil
	case !errors.Is(err, repositories.ErrShopNotFound):
		return nil, storageError(ctx, "find shop", err)
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = email
	}
	subject := identity.Subject
	shop = newFreeShop(email, name)
	shop.ExternalSubject = &subject

	if err := s.shopRepo.Create(withCtx(ctx, db), shop); err != nil {
		if errors.Is(err, repositories.ErrShopAlreadyExists) {
			// параллельный первый вход с тем же токеном
			return s.shopRepo.FindByExternalSubject(withCtx(ctx, db), identity.Subject)
		}
		return nil, storageError(ctx, "create shop", err)
	}

	logger.CtxInfo(ctx, "shop created from external identity", "shop_id", shop.ID)
	return shop, nil
}

// SeedAdmin создаёт администратора из конфигурации, если его ещё нет
func (s *authService) SeedAdmin(ctx context.Context, db *gorm.DB, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}

	tx := withCtx(ctx, db).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	if _, err := s.shopRepo.FindByEmail(tx, email); err == nil {
		return nil
	} else if !errors.Is(err, repositories.ErrShopNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if name == "" {
		name = "Administrator"
	}

	admin := newFreeShop(email, name)
	admin.PasswordHash = hash
	admin.Role = models.UserRoleAdmin
	if err := s.shopRepo.Create(tx, admin); err != nil && !errors.Is(err, repositories.ErrShopAlreadyExists) {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}
	logger.CtxInfo(ctx, "admin account seeded", "shop_id", admin.ID)
	return nil
}

func (s *authService) issue(shop *models.Shop) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(shop.ID, string(shop.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Shop:        ToShopResponse(shop),
	}, nil
}

func newFreeShop(email, name string) *models.Shop {
	return &models.Shop{
		Email:              email,
		Name:               name,
		Role:               models.UserRoleOwner,
		Plan:               models.PlanFree,
		ReviewLimit:        subscription.ReviewLimitColumn(models.PlanFree),
		SubscriptionStatus: models.SubscriptionStatusNone,
	}
}

// ToShopResponse - тариф, использование и остаток лимита
func ToShopResponse(shop *models.Shop) *dto.ShopResponse {
	quota := subscription.QuotaFor(shop.Plan)
	resp := &dto.ShopResponse{
		ID:                  shop.ID,
		Email:               shop.Email,
		Name:                shop.Name,
		Role:                string(shop.Role),
		Plan:                string(shop.Plan),
		ReviewsUsed:         shop.ReviewsUsed,
		Unbounded:           quota.Unbounded,
		SubscriptionStatus:  string(shop.SubscriptionStatus),
		SubscriptionEndDate: shop.SubscriptionEndDate,
		RenewalDate:         shop.RenewalDate,
	}
	if !quota.Unbounded {
		limit := quota.Limit
		remaining := limit - shop.ReviewsUsed
		if remaining < 0 {
			remaining = 0
		}
		resp.ReviewLimit = &limit
		resp.Remaining = &remaining
	}
	if shop.BillingPeriod != nil {
		period := string(*shop.BillingPeriod)
		resp.BillingPeriod = &period
	}
	if shop.PreviousPlan != nil {
		prev := string(*shop.PreviousPlan)
		resp.PreviousPlan = &prev
	}
	return resp
}
