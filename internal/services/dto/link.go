package dto

import "time"

type CreateLinkRequest struct {
	MaxUsage       *int       `json:"maxUsage" validate:"omitempty,min=1,max=10000"`
	ExpiresInHours *int       `json:"expiresInHours" validate:"omitempty,min=1,max=8760"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	CustomMessage  *string    `json:"customMessage" validate:"omitempty,max=500"`
}

type ListLinksQuery struct {
	ActiveOnly bool `form:"active"`
	Page       int  `form:"page" validate:"omitempty,min=1"`
	PageSize   int  `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type LinkResponse struct {
	ID            string     `json:"id"`
	ShopID        string     `json:"shopId"`
	IsActive      bool       `json:"isActive"`
	UsageCount    int        `json:"usageCount"`
	MaxUsage      int        `json:"maxUsage"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CustomMessage *string    `json:"customMessage,omitempty"`
	ConsumedAt    *time.Time `json:"consumedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type LinkListResponse struct {
	Links    []*LinkResponse `json:"links"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// PublicLinkResponse - то, что видит покупатель, открыв ссылку
type PublicLinkResponse struct {
	LinkID        string  `json:"linkId"`
	ShopID        string  `json:"shopId"`
	ShopName      string  `json:"shopName"`
	CustomMessage *string `json:"customMessage,omitempty"`
	MaxMedia      int     `json:"maxMedia"`
}
