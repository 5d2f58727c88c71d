package dto

import "time"

type CreateReviewRequest struct {
	CustomerName string   `json:"customerName" validate:"required,notblank,max=255"`
	Rating       int      `json:"rating" validate:"required,min=1,max=5"`
	Text         string   `json:"text" validate:"required,notblank,max=5000"`
	Media        []string `json:"media" validate:"omitempty,max=5,dive,url"`
}

type ReviewResponse struct {
	ID           string    `json:"id"`
	ShopID       string    `json:"shopId"`
	LinkID       *string   `json:"linkId,omitempty"`
	CustomerName string    `json:"customerName"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text"`
	Media        []string  `json:"media"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ReviewQuery struct {
	SortBy       string `form:"sortBy" validate:"omitempty,is-sort-order"`
	FilterRating *int   `form:"filterRating" validate:"omitempty,min=1,max=5"`
	Cursor       string `form:"cursor" validate:"omitempty,max=512"`
	PageSize     int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type ReviewPage struct {
	Items      []*ReviewResponse `json:"items"`
	NextCursor *string           `json:"nextCursor"`
	HasMore    bool              `json:"hasMore"`
	TotalCount int64             `json:"totalCount"`
}

type FeedQuery struct {
	SortBy       string `form:"sortBy" validate:"omitempty,is-sort-order"`
	FilterRating *int   `form:"filterRating" validate:"omitempty,min=1,max=5"`
	Page         int    `form:"page" validate:"omitempty,min=0,max=10000"`
	// BatchCursor - nextBatchCursor из предыдущего ответа
	BatchCursor  string `form:"batchCursor" validate:"omitempty,max=512"`
}

type FeedPage struct {
	Items           []*ReviewResponse `json:"items"`
	Page            int               `json:"page"`
	PageSize        int               `json:"pageSize"`
	HasMore         bool              `json:"hasMore"`
	TotalCount      int64             `json:"totalCount"`
	// NextBatchCursor передаётся вместе с page+1, тогда страница стоит не больше одного чтения блока
	NextBatchCursor string            `json:"nextBatchCursor,omitempty"`
}

type RatingBucket struct {
	Rating     int   `json:"rating"`
	Count      int64 `json:"count"`
	Percentage int   `json:"percentage"`
}

type StatsResponse struct {
	TotalCount         int64          `json:"totalCount"`
	AverageRating      float64        `json:"averageRating"`
	AverageRatingExact float64        `json:"averageRatingExact"`
	RatingDistribution []RatingBucket `json:"ratingDistribution"`
}
