package models

import (
	"time"
)

// ReviewLink - одноразовое (или ограниченное) приглашение оставить отзыв.
// ID выдаёт сервер: 128 бит из crypto/rand в hex.
type ReviewLink struct {
	ID            string     `gorm:"type:varchar(32);primaryKey" json:"id"`
	ShopID        string     `gorm:"type:varchar(36);not null;index" json:"shopId"`
	IsActive      bool       `gorm:"not null;default:true" json:"isActive"`
	UsageCount    int        `gorm:"not null;default:0" json:"usageCount"`
	MaxUsage      *int       `json:"maxUsage,omitempty"` // nil = одно использование
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CustomMessage *string    `gorm:"type:text" json:"customMessage,omitempty"`
	ConsumedAt    *time.Time `json:"consumedAt,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Shop *Shop `gorm:"foreignKey:ShopID;constraint:OnDelete:CASCADE" json:"-"`
}

// EffectiveMaxUsage - NULL в max_usage означает одно использование
func (l *ReviewLink) EffectiveMaxUsage() int {
	if l.MaxUsage == nil || *l.MaxUsage < 1 {
		return 1
	}
	return *l.MaxUsage
}

// Usable - та же логика, что и в условии UPDATE при захвате ссылки
func (l *ReviewLink) Usable(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return false
	}
	return l.UsageCount < l.EffectiveMaxUsage()
}
