package apperrors

import (
	"net/http"
)

// ErrNotFound - фабрика для "не найдено" (404)
func ErrNotFound(err error, domain, message string) *AppError {
	return Wrap(err, CodeNotFound, domain, message, http.StatusNotFound)
}

// ErrAlreadyExists - фабрика для "уже существует" (409)
func ErrAlreadyExists(err error, domain, message string) *AppError {
	return Wrap(err, CodeAlreadyExists, domain, message, http.StatusConflict)
}

// ErrStorage - ошибка хранилища/сети, безопасно повторить всю операцию
func ErrStorage(err error) *AppError {
	return Wrap(err, CodeStorageError, "storage", "Storage is temporarily unavailable, please retry", http.StatusServiceUnavailable)
}

// --- Links ---

// ErrLinkInvalid - ссылка отсутствует, истекла, исчерпана или уже использована.
// Клиент показывает "ссылка уже использована", повтор бессмысленен.
var ErrLinkInvalid = New(
	CodeLinkInvalid,
	"review_link",
	"This review link is no longer valid",
	http.StatusGone,
)

var ErrLinkNotFound = New(
	CodeNotFound,
	"review_link",
	"Review link not found",
	http.StatusNotFound,
)

// --- Reviews & quota ---

// ErrQuotaExceeded - лимит тарифа исчерпан (путь апселла)
var ErrQuotaExceeded = New(
	CodeQuotaExceeded,
	"subscription",
	"Review quota for the current plan has been reached",
	http.StatusPaymentRequired,
)

var ErrReviewNotFound = New(
	CodeNotFound,
	"review",
	"Review not found",
	http.StatusNotFound,
)

var ErrShopNotFound = New(
	CodeNotFound,
	"shop",
	"Shop not found",
	http.StatusNotFound,
)

var ErrTooManyMedia = New(
	CodeLimitExceeded,
	"review",
	"A review can have at most 5 media attachments",
	http.StatusBadRequest,
)

// --- Uploads ---

var ErrFileTooLarge = New(
	CodeLimitExceeded,
	"upload",
	"File size exceeds the allowed limit",
	http.StatusRequestEntityTooLarge,
)

var ErrInvalidFileType = New(
	CodeUnsupportedMedia,
	"upload",
	"Only image files are allowed",
	http.StatusUnsupportedMediaType,
)

// ErrVideoDisabled - видео зарезервировано в модели, но приём сейчас выключен
var ErrVideoDisabled = New(
	CodeUnsupportedMedia,
	"upload",
	"Video uploads are temporarily disabled, please attach photos instead",
	http.StatusUnsupportedMediaType,
)

// --- Payments ---

// ErrSignatureMismatch - подпись вебхука не сошлась, состояние не меняем
var ErrSignatureMismatch = New(
	CodeSignatureMismatch,
	"payment",
	"Signature verification failed",
	http.StatusBadRequest,
)

var ErrPaymentNotFound = New(
	CodeNotFound,
	"payment",
	"Payment not found",
	http.StatusNotFound,
)

var ErrInvalidPlan = New(
	CodeValidationFailed,
	"payment",
	"Plan is not available for purchase",
	http.StatusBadRequest,
)

var ErrPaymentProvider = New(
	CodeExternalServiceError,
	"payment",
	"Payment provider is not configured",
	http.StatusServiceUnavailable,
)

// --- Auth ---

var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"Email already in use",
	http.StatusConflict,
)

var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

var ErrInsufficientPermissions = New(
	CodeForbidden,
	"auth",
	"Insufficient permissions",
	http.StatusForbidden,
)

var ErrRateLimited = New(
	CodeRateLimited,
	"request",
	"Too many requests, slow down",
	http.StatusTooManyRequests,
)
