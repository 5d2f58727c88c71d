package repositories

import "errors"

var (
	ErrShopNotFound         = errors.New("shop not found")
	ErrShopAlreadyExists    = errors.New("shop with this email already exists")
	ErrLinkNotFound         = errors.New("review link not found")
	ErrLinkNotClaimable     = errors.New("review link is not claimable")
	ErrReviewNotFound       = errors.New("review not found")
	ErrQuotaSlotUnavailable = errors.New("no quota slot available")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentExists        = errors.New("payment with this order reference already exists")
)
