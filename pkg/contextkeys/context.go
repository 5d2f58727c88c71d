package contextkeys

// Используем кастомный тип, чтобы избежать коллизий
type contextKey string

const (
	// DBContextKey - ключ, по которому хранится *gorm.DB (пул или транзакция)
	DBContextKey = contextKey("db")
	// UserIDKey / RoleKey - выставляет AuthMiddleware
	UserIDKey = contextKey("userID")
	RoleKey   = contextKey("role")
)
