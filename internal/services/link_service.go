package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/metrics"
	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
	"reviewhub_backend/internal/services/dto"
	"reviewhub_backend/pkg/apperrors"
)

const linkIDBytes = 16 // 128 бит

type LinkService interface {
	CreateLink(ctx context.Context, db *gorm.DB, shopID string, req *dto.CreateLinkRequest) (*dto.LinkResponse, error)
	ResolveLink(ctx context.Context, db *gorm.DB, linkID string) (*models.ReviewLink, error)
	MarkConsumed(ctx context.Context, db *gorm.DB, linkID string) error
	GetPublicLink(ctx context.Context, db *gorm.DB, linkID string) (*dto.PublicLinkResponse, error)
	ListLinks(ctx context.Context, db *gorm.DB, shopID string, query *dto.ListLinksQuery) (*dto.LinkListResponse, error)
	DeactivateLink(ctx context.Context, db *gorm.DB, shopID, linkID string) error
	RegenerateLink(ctx context.Context, db *gorm.DB, shopID, linkID string) (*dto.LinkResponse, error)
}

type linkService struct {
	linkRepo repositories.LinkRepository
	shopRepo repositories.ShopRepository
	maxMedia int
}

func NewLinkService(linkRepo repositories.LinkRepository, shopRepo repositories.ShopRepository, maxMedia int) LinkService {
	return &linkService{
		linkRepo: linkRepo,
		shopRepo: shopRepo,
		maxMedia: maxMedia,
	}
}

// NewLinkID - 128 случайных бит в hex; идентификатор не угадывается перебором
func NewLinkID() (string, error) {
	b := make([]byte, linkIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate link id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *linkService) CreateLink(ctx context.Context, db *gorm.DB, shopID string, req *dto.CreateLinkRequest) (*dto.LinkResponse, error) {
	db = withCtx(ctx, db)
	now := nowFunc()

	if _, err := s.shopRepo.FindByID(db, shopID); err != nil {
		if errors.Is(err, repositories.ErrShopNotFound) {
			return nil, apperrors.ErrShopNotFound
		}
		return nil, storageError(ctx, "find shop", err)
	}

	id, err := NewLinkID()
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	link := &models.ReviewLink{
		ID:            id,
		ShopID:        shopID,
		IsActive:      true,
		MaxUsage:      req.MaxUsage,
		CustomMessage: req.CustomMessage,
	}

	switch {
	case req.ExpiresAt != nil:
		if !req.ExpiresAt.After(now) {
			return nil, apperrors.ValidationError(map[string]string{"expiresAt": "Must be in the future"})
		}
		expiresAt := req.ExpiresAt.UTC()
		link.ExpiresAt = &expiresAt
	case req.ExpiresInHours != nil:
		expiresAt := now.Add(time.Duration(*req.ExpiresInHours) * time.Hour)
		link.ExpiresAt = &expiresAt
	}

	if err := s.linkRepo.Create(db, link); err != nil {
		return nil, storageError(ctx, "create link", err)
	}

	metrics.LinksCreatedTotal.Inc()
	logger.CtxInfo(ctx, "review link created", "link_id", link.ID, "shop_id", shopID)
	return toLinkResponse(link), nil
}

// ResolveLink - отсутствующая, истёкшая и исчерпанная ссылки дают один и тот же NotFound
func (s *linkService) ResolveLink(ctx context.Context, db *gorm.DB, linkID string) (*models.ReviewLink, error) {
	link, err := s.linkRepo.FindUsable(withCtx(ctx, db), linkID, nowFunc())
	if err != nil {
		if errors.Is(err, repositories.ErrLinkNotFound) {
			return nil, apperrors.ErrLinkNotFound
		}
		return nil, storageError(ctx, "resolve link", err)
	}
	return link, nil
}

// MarkConsumed - атомарный захват; проигравший в гонке получает LinkInvalid
func (s *linkService) MarkConsumed(ctx context.Context, db *gorm.DB, linkID string) error {
	if err := s.linkRepo.Claim(withCtx(ctx, db), linkID, nowFunc()); err != nil {
		if errors.Is(err, repositories.ErrLinkNotClaimable) {
			return apperrors.ErrLinkInvalid
		}
		return storageError(ctx, "claim link", err)
	}
	return nil
}

func (s *linkService) GetPublicLink(ctx context.Context, db *gorm.DB, linkID string) (*dto.PublicLinkResponse, error) {
	link, err := s.ResolveLink(ctx, db, linkID)
	if err != nil {
		return nil, err
	}

	shop, err := s.shopRepo.FindByID(withCtx(ctx, db), link.ShopID)
	if err != nil {
		if errors.Is(err, repositories.ErrShopNotFound) {
			return nil, apperrors.ErrLinkNotFound
		}
		return nil, storageError(ctx, "find shop", err)
	}

	return &dto.PublicLinkResponse{
		LinkID:        link.ID,
		ShopID:        shop.ID,
		ShopName:      shop.Name,
		CustomMessage: link.CustomMessage,
		MaxMedia:      s.maxMedia,
	}, nil
}

func (s *linkService) ListLinks(ctx context.Context, db *gorm.DB, shopID string, query *dto.ListLinksQuery) (*dto.LinkListResponse, error) {
	page := dto.PaginationQuery{Page: query.Page, PageSize: query.PageSize}
	limit, offset := page.Normalize()

	links, total, err := s.linkRepo.ListByShop(withCtx(ctx, db), shopID, query.ActiveOnly, limit, offset)
	if err != nil {
		return nil, storageError(ctx, "list links", err)
	}

	resp := &dto.LinkListResponse{
		Links:    make([]*dto.LinkResponse, 0, len(links)),
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for i := range links {
		resp.Links = append(resp.Links, toLinkResponse(&links[i]))
	}
	return resp, nil
}

func (s *linkService) DeactivateLink(ctx context.Context, db *gorm.DB, shopID, linkID string) error {
	if err := s.linkRepo.Deactivate(withCtx(ctx, db), shopID, linkID); err != nil {
		if errors.Is(err, repositories.ErrLinkNotFound) {
			return apperrors.ErrLinkNotFound
		}
		return storageError(ctx, "deactivate link", err)
	}
	logger.CtxInfo(ctx, "review link deactivated", "link_id", linkID, "shop_id", shopID)
	return nil
}

// RegenerateLink выдаёт новую ссылку с теми же настройками взамен использованной
func (s *linkService) RegenerateLink(ctx context.Context, db *gorm.DB, shopID, linkID string) (*dto.LinkResponse, error) {
	old, err := s.linkRepo.FindByID(withCtx(ctx, db), linkID)
	if err != nil || old.ShopID != shopID {
		if err == nil || errors.Is(err, repositories.ErrLinkNotFound) {
			return nil, apperrors.ErrLinkNotFound
		}
		return nil, storageError(ctx, "find link", err)
	}

	req := &dto.CreateLinkRequest{
		MaxUsage:      old.MaxUsage,
		CustomMessage: old.CustomMessage,
	}
	if old.ExpiresAt != nil {
		// сохраняем исходное время жизни ссылки
		hours := int(old.ExpiresAt.Sub(old.CreatedAt).Hours())
		if hours < 1 {
			hours = 1
		}
		req.ExpiresInHours = &hours
	}

	created, err := s.CreateLink(ctx, db, shopID, req)
	if err != nil {
		return nil, err
	}

	if old.IsActive {
		if err := s.linkRepo.Deactivate(withCtx(ctx, db), shopID, linkID); err != nil {
			logger.CtxWarn(ctx, "failed to deactivate replaced link", "link_id", linkID, "error", err)
		}
	}
	return created, nil
}

func toLinkResponse(link *models.ReviewLink) *dto.LinkResponse {
	return &dto.LinkResponse{
		ID:            link.ID,
		ShopID:        link.ShopID,
		IsActive:      link.IsActive,
		UsageCount:    link.UsageCount,
		MaxUsage:      link.EffectiveMaxUsage(),
		ExpiresAt:     link.ExpiresAt,
		CustomMessage: link.CustomMessage,
		ConsumedAt:    link.ConsumedAt,
		CreatedAt:     link.CreatedAt,
	}
}
