package services

import (
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"reviewhub_backend/internal/models"
	"reviewhub_backend/internal/repositories"
)

// memReviewRepo повторяет keyset-выборку ReviewRepositoryImpl в памяти
type memReviewRepo struct {
	mu      sync.Mutex
	reviews []models.Review
	lists   int
}

func (r *memReviewRepo) Create(_ *gorm.DB, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews = append(r.reviews, *review)
	return nil
}

func (r *memReviewRepo) FindByID(_ *gorm.DB, id string) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.reviews {
		if r.reviews[i].ID == id {
			review := r.reviews[i]
			return &review, nil
		}
	}
	return nil, repositories.ErrReviewNotFound
}

func (r *memReviewRepo) Delete(_ *gorm.DB, id, shopID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.reviews {
		if r.reviews[i].ID == id && r.reviews[i].ShopID == shopID {
			r.reviews = append(r.reviews[:i], r.reviews[i+1:]...)
			return nil
		}
	}
	return repositories.ErrReviewNotFound
}

func (r *memReviewRepo) CountByShop(_ *gorm.DB, shopID string, filterRating *int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rv := range r.reviews {
		if rv.ShopID == shopID && (filterRating == nil || rv.Rating == *filterRating) {
			n++
		}
	}
	return n, nil
}

func (r *memReviewRepo) RatingDistribution(_ *gorm.DB, shopID string) ([]repositories.RatingCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[int]int64{}
	for _, rv := range r.reviews {
		if rv.ShopID == shopID {
			counts[rv.Rating]++
		}
	}
	var out []repositories.RatingCount
	for rating := 1; rating <= 5; rating++ {
		if c := counts[rating]; c > 0 {
			out = append(out, repositories.RatingCount{Rating: rating, Count: c})
		}
	}
	return out, nil
}

func (r *memReviewRepo) List(_ *gorm.DB, filter repositories.ReviewFilter) ([]models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++

	var rows []models.Review
	for _, rv := range r.reviews {
		if rv.ShopID != filter.ShopID {
			continue
		}
		if filter.FilterRating != nil && rv.Rating != *filter.FilterRating {
			continue
		}
		rows = append(rows, rv)
	}

	less := func(a, b models.Review) bool {
		switch filter.Order {
		case repositories.OrderOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		case repositories.OrderRating:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			fallthrough
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	}
	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j]) })

	if filter.After != nil {
		pivot := models.Review{ID: filter.After.ID, CreatedAt: filter.After.CreatedAt, Rating: filter.After.Rating}
		kept := rows[:0]
		for _, rv := range rows {
			if less(pivot, rv) {
				kept = append(kept, rv)
			}
		}
		rows = kept
	}

	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return append([]models.Review(nil), rows...), nil
}

func (r *memReviewRepo) Lists() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

// memLinkRepo - захват ссылки под мьютексом, как условный UPDATE в БД
type memLinkRepo struct {
	mu    sync.Mutex
	links map[string]*models.ReviewLink
}

func newMemLinkRepo(links ...*models.ReviewLink) *memLinkRepo {
	r := &memLinkRepo{links: map[string]*models.ReviewLink{}}
	for _, l := range links {
		r.links[l.ID] = l
	}
	return r
}

func (r *memLinkRepo) Create(_ *gorm.DB, link *models.ReviewLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *link
	r.links[link.ID] = &copied
	return nil
}

func (r *memLinkRepo) FindByID(_ *gorm.DB, id string) (*models.ReviewLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return nil, repositories.ErrLinkNotFound
	}
	copied := *l
	return &copied, nil
}

func (r *memLinkRepo) FindUsable(_ *gorm.DB, id string, now time.Time) (*models.ReviewLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok || !l.Usable(now) {
		return nil, repositories.ErrLinkNotFound
	}
	copied := *l
	return &copied, nil
}

func (r *memLinkRepo) Claim(_ *gorm.DB, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok || !l.Usable(now) {
		return repositories.ErrLinkNotClaimable
	}
	l.UsageCount++
	if l.UsageCount >= l.EffectiveMaxUsage() {
		l.IsActive = false
		l.ConsumedAt = &now
	}
	return nil
}

func (r *memLinkRepo) ListByShop(_ *gorm.DB, shopID string, activeOnly bool, limit, offset int) ([]models.ReviewLink, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReviewLink
	for _, l := range r.links {
		if l.ShopID == shopID && (!activeOnly || l.IsActive) {
			out = append(out, *l)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memLinkRepo) Deactivate(_ *gorm.DB, shopID, linkID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[linkID]
	if !ok || l.ShopID != shopID {
		return repositories.ErrLinkNotFound
	}
	l.IsActive = false
	return nil
}

func (r *memLinkRepo) Get(id string) models.ReviewLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.links[id]
}
