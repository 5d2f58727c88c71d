package apperrors

// ErrorCode - тип для кодов ошибок
type ErrorCode string

// Общие коды
const (
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeLimitExceeded    ErrorCode = "LIMIT_EXCEEDED"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"

	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeInvalidToken       ErrorCode = "INVALID_TOKEN"
)

// Коды отзывов и биллинга
const (
	CodeLinkInvalid       ErrorCode = "LINK_INVALID"
	CodeQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"
	CodeSignatureMismatch ErrorCode = "SIGNATURE_MISMATCH"
	CodeStorageError      ErrorCode = "STORAGE_ERROR"
	CodeUnsupportedMedia  ErrorCode = "UNSUPPORTED_MEDIA"
)
