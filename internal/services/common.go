package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/validator"
	"reviewhub_backend/pkg/apperrors"
)

// nowFunc подменяется в тестах
var nowFunc = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// События для дашборда магазина (websocket)
const (
	EventReviewCreated = "review.created"
	EventReviewDeleted = "review.deleted"
	EventPlanChanged   = "plan.changed"
)

// EventPublisher доставляет события подключённым клиентам магазина
type EventPublisher interface {
	PublishToShop(shopID, eventType string, payload interface{})
}

type noopPublisher struct{}

func (noopPublisher) PublishToShop(string, string, interface{}) {}

// NoopPublisher - когда websocket-хаб не подключён
var NoopPublisher EventPublisher = noopPublisher{}

func withCtx(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx)
}

// storageError - сбой хранилища логируется с контекстом и отдаётся как STORAGE_ERROR
func storageError(ctx context.Context, op string, err error) error {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	logger.CtxWithError(ctx, "storage operation failed", err, "operation", op)
	return apperrors.ErrStorage(err)
}

// validateRequest переводит ошибки валидатора в VALIDATION_FAILED с картой полей
func validateRequest(v *validator.Validator, req interface{}) error {
	if v == nil {
		return nil
	}
	if err := v.Validate(req); err != nil {
		var vErr *validator.ValidationError
		if errors.As(err, &vErr) {
			return apperrors.ValidationError(vErr.Errors)
		}
		return apperrors.ValidationError(map[string]string{"body": err.Error()})
	}
	return nil
}
