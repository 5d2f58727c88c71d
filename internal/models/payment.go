package models

import (
	"time"

	"gorm.io/datatypes"
)

// Payment - заказ на смену тарифа; order_reference уходит в WayForPay и возвращается в вебхуке
type Payment struct {
	OrderReference    string        `gorm:"type:varchar(64);primaryKey" json:"orderReference"`
	ShopID            string        `gorm:"type:varchar(36);not null;index" json:"shopId"`
	Plan              Plan          `gorm:"type:varchar(16);not null" json:"plan"`
	BillingPeriod     BillingPeriod `gorm:"type:varchar(16);not null" json:"billingPeriod"`
	Amount            float64       `gorm:"not null" json:"amount"`
	Currency          string        `gorm:"type:varchar(8);not null" json:"currency"`
	Status            PaymentStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	TransactionStatus string        `gorm:"type:varchar(32)" json:"transactionStatus,omitempty"`
	AuthCode          string        `gorm:"type:varchar(64)" json:"-"`
	CardPan           string        `gorm:"type:varchar(32)" json:"cardPan,omitempty"`
	ReasonCode        string        `gorm:"type:varchar(16)" json:"reasonCode,omitempty"`
	Reason            string        `gorm:"type:varchar(255)" json:"reason,omitempty"`
	PaidAt            *time.Time    `json:"paidAt,omitempty"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

// WebhookEvent - журнал входящих уведомлений; уникальный ключ даёт идемпотентность
type WebhookEvent struct {
	BaseModel
	Provider          string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_webhook_dedupe,priority:1"`
	OrderReference    string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_webhook_dedupe,priority:2"`
	TransactionStatus string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_webhook_dedupe,priority:3"`
	Payload           datatypes.JSON `gorm:"not null"`
	SignatureValid    bool           `gorm:"not null"`
	ProcessedAt       *time.Time
	ProcessingError   *string `gorm:"type:text"`
}
