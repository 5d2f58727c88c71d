package auth

import "errors"

// Роли совпадают с models.UserRole
const (
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

// Разрешения
const (
	PermLinksWrite      = "links:write"
	PermReviewsWrite    = "reviews:write:self"
	PermReviewsDelete   = "reviews:delete"
	PermBillingSelf     = "billing:self"
	PermBillingAdmin    = "billing:admin"
	PermEventsSubscribe = "events:subscribe"
)

// Permissions список разрешений
var Permissions = map[string][]string{
	RoleAdmin: {
		PermLinksWrite,
		PermReviewsWrite,
		PermReviewsDelete,
		PermBillingSelf,
		PermBillingAdmin,
		PermEventsSubscribe,
	},
	RoleOwner: {
		PermLinksWrite,
		PermReviewsWrite,
		PermBillingSelf,
		PermEventsSubscribe,
	},
}

// HasPermission проверяет есть ли у роли указанное разрешение
func HasPermission(role, permission string) bool {
	permissions, exists := Permissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// IsAdmin проверяет является ли пользователь администратором
func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// ValidateRole проверяет валидность роли
func ValidateRole(role string) error {
	switch role {
	case RoleAdmin, RoleOwner:
		return nil
	default:
		return errors.New("invalid role")
	}
}
