package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/internal/validator"
	"reviewhub_backend/pkg/apperrors"
)

func newAuthFixture(t *testing.T) (AuthService, *MockShopRepository, *auth.TokenManager) {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret-please-change", time.Hour, "reviewhub")
	require.NoError(t, err)
	shops := &MockShopRepository{}
	return NewAuthService(shops, tokens, validator.New()), shops, tokens
}

func TestRegister_StartsOnFree(t *testing.T) {
	svc, shops, tokens := newAuthFixture(t)
	db, _ := newTestDB(t)

	var created *models.Shop
	shops.On("Create", mock.AnythingOfType("*models.Shop")).Run(func(args mock.Arguments) {
		created = args.Get(0).(*models.Shop)
	}).Return(nil)

	resp, err := svc.Register(context.Background(), db, &dto.RegisterRequest{
		Email:    "owner@shop.test",
		Password: "coffee2024",
		Name:     " Coffee Beans ",
	})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, models.PlanFree, created.Plan)
	assert.Equal(t, 10, created.ReviewLimit)
	assert.Equal(t, models.UserRoleOwner, created.Role)
	assert.Equal(t, "Coffee Beans", created.Name)
	assert.NotEqual(t, "coffee2024", created.PasswordHash)

	assert.Equal(t, "Bearer", resp.TokenType)
	require.NotNil(t, resp.Shop.ReviewLimit)
	assert.Equal(t, 10, *resp.Shop.ReviewLimit)
	assert.Equal(t, 10, *resp.Shop.Remaining)

	claims, err := tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, "owner", claims.Role)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	db, _ := newTestDB(t)

	_, err := svc.Register(context.Background(), db, &dto.RegisterRequest{Email: "nope", Password: "coffee2024", Name: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = svc.Register(context.Background(), db, &dto.RegisterRequest{Email: "a@b.test", Password: "onlyletters", Name: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, shops, _ := newAuthFixture(t)
	db, _ := newTestDB(t)
	shops.On("Create", mock.Anything).Return(repositories.ErrShopAlreadyExists)

	_, err := svc.Register(context.Background(), db, &dto.RegisterRequest{Email: "a@b.test", Password: "coffee2024", Name: "x"})
	assert.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)
}

func TestLogin(t *testing.T) {
	svc, shops, _ := newAuthFixture(t)
	db, _ := newTestDB(t)
	hash, err := auth.HashPassword("coffee2024")
	require.NoError(t, err)

	shops.On("FindByEmail", "owner@shop.test").Return(&models.Shop{
		BaseModel:    models.BaseModel{ID: "shop-1"},
		Email:        "owner@shop.test",
		PasswordHash: hash,
		Role:         models.UserRoleOwner,
		Plan:         models.PlanBusiness,
	}, nil)
	shops.On("FindByEmail", "ghost@shop.test").Return(nil, repositories.ErrShopNotFound)

	resp, err := svc.Login(context.Background(), db, &dto.LoginRequest{Email: "owner@shop.test", Password: "coffee2024"})
	require.NoError(t, err)
	assert.True(t, resp.Shop.Unbounded)
	assert.Nil(t, resp.Shop.ReviewLimit)

	_, err = svc.Login(context.Background(), db, &dto.LoginRequest{Email: "owner@shop.test", Password: "wrong-pass1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), db, &dto.LoginRequest{Email: "ghost@shop.test", Password: "coffee2024"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestResolveExternal_KnownSubject(t *testing.T) {
	svc, shops, _ := newAuthFixture(t)
	db, _ := newTestDB(t)
	shops.On("FindByExternalSubject", "idp|42").Return(&models.Shop{BaseModel: models.BaseModel{ID: "shop-1"}}, nil)

	shop, err := svc.ResolveExternal(context.Background(), db, &auth.ExternalIdentity{Subject: "idp|42", Email: "x@y.test"})
	require.NoError(t, err)
	assert.Equal(t, "shop-1", shop.ID)
}

func TestResolveExternal_LinksExistingEmail(t *testing.T) {
	svc, shops, _ := newAuthFixture(t)
	db, _ := newTestDB(t)
	shops.On("FindByExternalSubject", "idp|42").Return(nil, repositories.ErrShopNotFound)
	shops.On("FindByEmail", "owner@shop.test").Return(&models.Shop{BaseModel: models.BaseModel{ID: "shop-1"}}, nil)
	shops.On("LinkExternalSubject", "shop-1", "idp|42").Return(nil).Once()

	shop, err := svc.ResolveExternal(context.Background(), db, &auth.ExternalIdentity{Subject: "idp|42", Email: " Owner@Shop.test "})
	require.NoError(t, err)
	require.NotNil(t, shop.ExternalSubject)
	assert.Equal(t, "idp|42", *shop.ExternalSubject)
	shops.AssertExpectations(t)
}

func TestResolveExternal_CreatesShop(t *testing.T) {
	svc, shops, _ := newAuthFixture(t)
	db, _ := newTestDB(t)
	shops.On("FindByExternalSubject", "idp|7").Return(nil, repositories.ErrShopNotFound)
	shops.On("FindByEmail", "new@shop.test").Return(nil, repositories.ErrShopNotFound)
	shops.On("Create", mock.AnythingOfType("*models.Shop")).Return(nil)

	shop, err := svc.ResolveExternal(context.Background(), db, &auth.ExternalIdentity{Subject: "idp|7", Email: "new@shop.test"})
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, shop.Plan)
	assert.Equal(t, "new@shop.test", shop.Name)
	assert.Empty(t, shop.PasswordHash)
}

func TestResolveExternal_RequiresSubjectAndEmail(t *testing.T) {
	svc, shops, _ := newAuthFixture(t)
	db, _ := newTestDB(t)

	_, err := svc.ResolveExternal(context.Background(), db, &auth.ExternalIdentity{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	shops.On("FindByExternalSubject", "idp|9").Return(nil, repositories.ErrShopNotFound)
	_, err = svc.ResolveExternal(context.Background(), db, &auth.ExternalIdentity{Subject: "idp|9"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestSeedAdmin(t *testing.T) {
	svc, shops, _ := newAuthFixture(t)
	db, pool := newTestDB(t)

	require.NoError(t, svc.SeedAdmin(context.Background(), db, "", "", ""))
	assert.Equal(t, 0, pool.Commits())

	shops.On("FindByEmail", "admin@reviewhub.test").Return(nil, repositories.ErrShopNotFound).Once()
	var created *models.Shop
	shops.On("Create", mock.AnythingOfType("*models.Shop")).Run(func(args mock.Arguments) {
		created = args.Get(0).(*models.Shop)
	}).Return(nil).Once()

	require.NoError(t, svc.SeedAdmin(context.Background(), db, "admin@reviewhub.test", "admin12345", ""))
	require.NotNil(t, created)
	assert.Equal(t, models.UserRoleAdmin, created.Role)
	assert.Equal(t, "Administrator", created.Name)
	assert.Equal(t, 1, pool.Commits())

	// повторный запуск ничего не создаёт
	shops.On("FindByEmail", "admin@reviewhub.test").Return(created, nil)
	require.NoError(t, svc.SeedAdmin(context.Background(), db, "admin@reviewhub.test", "admin12345", ""))
	shops.AssertNumberOfCalls(t, "Create", 1)
}

func TestToShopResponse_RemainingNeverNegative(t *testing.T) {
	resp := ToShopResponse(&models.Shop{Plan: models.PlanFree, ReviewsUsed: 14})
	require.NotNil(t, resp.Remaining)
	assert.Equal(t, 0, *resp.Remaining)
}
