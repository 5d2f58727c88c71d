package models

import (
	"time"

	"gorm.io/datatypes"
)

const MaxReviewMedia = 5

// Review - ID это ULID: сортируется по времени и служит тай-брейком курсора
type Review struct {
	ID           string                      `gorm:"type:varchar(26);primaryKey;index:idx_reviews_shop_created,priority:3;index:idx_reviews_shop_rating,priority:4" json:"id"`
	ShopID       string                      `gorm:"type:varchar(36);not null;index:idx_reviews_shop_created,priority:1;index:idx_reviews_shop_rating,priority:1" json:"shopId"`
	LinkID       *string                     `gorm:"type:varchar(32);index" json:"linkId,omitempty"`
	CustomerName string                      `gorm:"type:varchar(255);not null" json:"customerName"`
	Rating       int                         `gorm:"not null;check:chk_reviews_rating,rating >= 1 AND rating <= 5;index:idx_reviews_shop_rating,priority:2" json:"rating"`
	Text         string                      `gorm:"type:text;not null" json:"text"`
	Media        datatypes.JSONSlice[string] `json:"media"`
	CreatedAt    time.Time                   `gorm:"not null;index:idx_reviews_shop_created,priority:2;index:idx_reviews_shop_rating,priority:3" json:"createdAt"`
}
