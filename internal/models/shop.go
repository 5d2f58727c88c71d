package models

import (
	"time"
)

// Shop - аккаунт владельца магазина; тариф и счётчик использования живут здесь же
type Shop struct {
	BaseModel
	Email           string   `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash    string   `gorm:"type:varchar(255)" json:"-"`
	ExternalSubject *string  `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	Name            string   `gorm:"type:varchar(255)" json:"name"`
	Role            UserRole `gorm:"type:varchar(16);not null;default:'owner'" json:"role"`

	Plan        Plan `gorm:"type:varchar(16);not null;default:'FREE';index" json:"plan"`
	ReviewsUsed int  `gorm:"not null;default:0" json:"reviewsUsed"`
	// -1 - без ограничений
	ReviewLimit int `gorm:"not null;default:10" json:"reviewLimit"`

	SubscriptionStatus    SubscriptionStatus `gorm:"type:varchar(16);not null;default:'none'" json:"subscriptionStatus"`
	BillingPeriod         *BillingPeriod     `gorm:"type:varchar(16)" json:"billingPeriod,omitempty"`
	SubscriptionStartDate *time.Time         `json:"subscriptionStartDate,omitempty"`
	SubscriptionEndDate   *time.Time         `gorm:"index" json:"subscriptionEndDate,omitempty"`
	RenewalDate           *time.Time         `json:"renewalDate,omitempty"`
	PreviousPlan          *Plan              `gorm:"type:varchar(16)" json:"previousPlan,omitempty"`
}

func (s *Shop) IsAdmin() bool {
	return s.Role == UserRoleAdmin
}
