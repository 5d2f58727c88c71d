package services

import (
	"context"

	"gorm.io/gorm"

	"reviewhub_backend/internal/services/dto"
)

const (
	DefaultFeedBatchSize = 50
	DefaultFeedPageSize  = 5
)

// FeedService режет блоки по 50 отзывов на страницы по 5 для интерфейса.
// Блок k грузится курсором, оставленным блоком k-1, поэтому страницы не пересекаются и не теряют строк.
type FeedService interface {
	GetFeedPage(ctx context.Context, db *gorm.DB, shopID string, query *dto.FeedQuery) (*dto.FeedPage, error)
}

type feedService struct {
	reviews   ReviewService
	cache     BatchCache
	batchSize int
	pageSize  int
}

func NewFeedService(reviews ReviewService, cache BatchCache, batchSize, pageSize int) FeedService {
	if cache == nil {
		cache = NewNoopBatchCache()
	}
	if batchSize <= 0 || batchSize > MaxReviewPageSize {
		batchSize = DefaultFeedBatchSize
	}
	if pageSize <= 0 || pageSize > batchSize {
		pageSize = DefaultFeedPageSize
	}
	return &feedService{
		reviews:   reviews,
		cache:     cache,
		batchSize: batchSize,
		pageSize:  pageSize,
	}
}

// feedRequest - состояние одного запроса страницы; memo спасает от повторной загрузки без кэша
type feedRequest struct {
	shopID  string
	order   string
	filter  *int
	version int64
	memo    map[int]*FeedBatch

	// anchor - курсор начала блока anchorIndex, присланный клиентом
	anchor      string
	anchorIndex int
}

func (s *feedService) GetFeedPage(ctx context.Context, db *gorm.DB, shopID string, query *dto.FeedQuery) (*dto.FeedPage, error) {
	page := query.Page
	if page < 0 {
		page = 0
	}

	start := page * s.pageSize
	end := start + s.pageSize

	req := &feedRequest{
		shopID:  shopID,
		order:   normalizeOrder(query.SortBy),
		filter:  query.FilterRating,
		version: s.cache.Version(ctx, shopID),
		memo:    map[int]*FeedBatch{},
	}
	if firstBatch := start / s.batchSize; query.BatchCursor != "" && firstBatch > 0 {
		req.anchor = query.BatchCursor
		req.anchorIndex = firstBatch
	}

	items := make([]*dto.ReviewResponse, 0, s.pageSize)
	var last *FeedBatch
	lastIdx := -1
	for pos := start; pos < end; {
		batchIdx := pos / s.batchSize
		batch, err := s.loadBatch(ctx, db, req, batchIdx)
		if err != nil {
			return nil, err
		}
		last, lastIdx = batch, batchIdx

		offset := pos - batchIdx*s.batchSize
		if offset >= len(batch.Items) {
			break
		}
		take := end - pos
		if remaining := len(batch.Items) - offset; take > remaining {
			take = remaining
		}
		items = append(items, batch.Items[offset:offset+take]...)
		pos += take

		if offset+take < len(batch.Items) || !batch.HasMore {
			break
		}
	}

	result := &dto.FeedPage{
		Items:    items,
		Page:     page,
		PageSize: s.pageSize,
	}
	if last != nil {
		result.TotalCount = last.TotalCount
		if len(items) == s.pageSize {
			endOffset := end - ((end-1)/s.batchSize)*s.batchSize
			result.HasMore = endOffset < len(last.Items) || last.HasMore
		}
		if result.HasMore {
			// следующая страница начинается либо в том же блоке, либо в следующем
			switch end / s.batchSize {
			case lastIdx:
				result.NextBatchCursor = last.StartCursor
			case lastIdx + 1:
				result.NextBatchCursor = last.NextCursor
			}
		}
	}
	return result, nil
}

// loadBatch поднимает блок из кэша, иначе грузит его курсором предыдущего блока.
// Блоки от курсора клиента кэшируются по курсору, а не по номеру: после новых отзывов номера сдвигаются.
func (s *feedService) loadBatch(ctx context.Context, db *gorm.DB, req *feedRequest, index int) (*FeedBatch, error) {
	if batch, ok := req.memo[index]; ok {
		return batch, nil
	}

	anchored := req.anchor != "" && index >= req.anchorIndex
	filter := ratingValue(req.filter)

	var key, cursor string
	switch {
	case anchored && index == req.anchorIndex:
		cursor = req.anchor
		key = anchoredBatchKey(req.shopID, req.version, req.order, filter, cursor)
	case anchored:
		prev, err := s.loadBatch(ctx, db, req, index-1)
		if err != nil {
			return nil, err
		}
		if !prev.HasMore {
			return s.endOfFeed(req, index, prev), nil
		}
		cursor = prev.NextCursor
		key = anchoredBatchKey(req.shopID, req.version, req.order, filter, cursor)
	default:
		key = feedBatchKey(req.shopID, req.version, req.order, filter, index)
	}

	if batch, ok := s.cache.Get(ctx, key); ok {
		req.memo[index] = batch
		return batch, nil
	}

	if !anchored && index > 0 {
		prev, err := s.loadBatch(ctx, db, req, index-1)
		if err != nil {
			return nil, err
		}
		if !prev.HasMore {
			return s.endOfFeed(req, index, prev), nil
		}
		cursor = prev.NextCursor
	}

	page, err := s.reviews.QueryReviews(ctx, db, req.shopID, &dto.ReviewQuery{
		SortBy:       req.order,
		FilterRating: req.filter,
		Cursor:       cursor,
		PageSize:     s.batchSize,
	})
	if err != nil {
		return nil, err
	}

	batch := &FeedBatch{
		Items:       page.Items,
		StartCursor: cursor,
		HasMore:     page.HasMore,
		TotalCount:  page.TotalCount,
	}
	if page.NextCursor != nil {
		batch.NextCursor = *page.NextCursor
	}

	req.memo[index] = batch
	s.cache.Set(ctx, key, batch)
	return batch, nil
}

func (s *feedService) endOfFeed(req *feedRequest, index int, prev *FeedBatch) *FeedBatch {
	empty := &FeedBatch{TotalCount: prev.TotalCount}
	req.memo[index] = empty
	return empty
}
