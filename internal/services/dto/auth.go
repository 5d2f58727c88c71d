package dto

import "time"

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,notblank,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string        `json:"accessToken"`
	TokenType   string        `json:"tokenType"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	Shop        *ShopResponse `json:"shop"`
}

// ShopResponse - аккаунт с текущим тарифом и использованием лимита
type ShopResponse struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Role                string     `json:"role"`
	Plan                string     `json:"plan"`
	ReviewsUsed         int        `json:"reviewsUsed"`
	ReviewLimit         *int       `json:"reviewLimit"`
	Unbounded           bool       `json:"unbounded"`
	Remaining           *int       `json:"remaining"`
	SubscriptionStatus  string     `json:"subscriptionStatus"`
	BillingPeriod       *string    `json:"billingPeriod,omitempty"`
	SubscriptionEndDate *time.Time `json:"subscriptionEndDate,omitempty"`
	RenewalDate         *time.Time `json:"renewalDate,omitempty"`
	PreviousPlan        *string    `json:"previousPlan,omitempty"`
}
