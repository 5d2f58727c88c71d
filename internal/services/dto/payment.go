package dto

import (
	"time"

	"reviewhub_backend/internal/services/subscription"
)

type CheckoutRequest struct {
	Plan          string `json:"plan" validate:"required,is-paid-plan"`
	BillingPeriod string `json:"billingPeriod" validate:"required,is-billing-period"`
}

type CheckoutResponse struct {
	OrderReference string                    `json:"orderReference"`
	Amount         float64                   `json:"amount"`
	Currency       string                    `json:"currency"`
	Form           subscription.CheckoutForm `json:"form"`
}

type PaymentResponse struct {
	OrderReference    string     `json:"orderReference"`
	Plan              string     `json:"plan"`
	BillingPeriod     string     `json:"billingPeriod"`
	Amount            float64    `json:"amount"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	TransactionStatus string     `json:"transactionStatus,omitempty"`
	CardPan           string     `json:"cardPan,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	PaidAt            *time.Time `json:"paidAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type PaymentListResponse struct {
	Payments []*PaymentResponse `json:"payments"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

type PaginationQuery struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// Normalize подставляет значения по умолчанию
func (q *PaginationQuery) Normalize() (limit, offset int) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	return q.PageSize, (q.Page - 1) * q.PageSize
}

type SweepResponse struct {
	Downgraded int64     `json:"downgraded"`
	RanAt      time.Time `json:"ranAt"`
}

type ReconcileResponse struct {
	Repaired int64     `json:"repaired"`
	RanAt    time.Time `json:"ranAt"`
}
