package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"reviewhub_backend/internal/logger"
	"reviewhub_backend/internal/models"
)

// registerCustomRules регистрирует кастомные правила в экземпляре валидатора
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// ошибка регистрации - ошибка сборки приложения, дальше не едем
			logger.Fatal("failed to register custom validation tag", "tag", tag, "error", err)
		}
	}

	mustRegister("is-plan", validatePlan)
	mustRegister("is-paid-plan", validatePaidPlan)
	mustRegister("is-billing-period", validateBillingPeriod)
	mustRegister("is-sort-order", validateSortOrder)
	mustRegister("notblank", validateNotBlank)
}

// Порядки сортировки ленты и выборки отзывов
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortRating = "rating"
)

func validatePlan(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // для пустых есть 'required'
	}
	switch models.Plan(value) {
	case models.PlanFree, models.PlanPro, models.PlanBusiness:
		return true
	default:
		return false
	}
}

func validatePaidPlan(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch models.Plan(value) {
	case models.PlanPro, models.PlanBusiness:
		return true
	default:
		return false
	}
}

func validateBillingPeriod(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.BillingPeriod(value).Valid()
}

func validateSortOrder(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", SortNewest, SortOldest, SortRating:
		return true
	default:
		return false
	}
}

// notblank - строка не пустая после trim (required пропускает "   ")
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
