package models

type UserRole string
type Plan string
type BillingPeriod string
type SubscriptionStatus string
type PaymentStatus string

const (
	UserRoleOwner UserRole = "owner"
	UserRoleAdmin UserRole = "admin"

	PlanFree     Plan = "FREE"
	PlanPro      Plan = "PRO"
	PlanBusiness Plan = "BUSINESS"

	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"

	SubscriptionStatusNone    SubscriptionStatus = "none"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"

	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Провайдеры платежей (WebhookEvent.Provider)
const (
	ProviderWayForPay = "wayforpay"
)

func (p BillingPeriod) Valid() bool {
	return p == BillingPeriodMonthly || p == BillingPeriodYearly
}

func (r UserRole) Valid() bool {
	return r == UserRoleOwner || r == UserRoleAdmin
}
