package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"reviewhub_backend/internal/auth"
	"reviewhub_backend/internal/logger"
	"reviewhub_backend/pkg/apperrors"
	"reviewhub_backend/pkg/contextkeys"
)

var (
	userIDKey = string(contextkeys.UserIDKey)
	roleKey   = string(contextkeys.RoleKey)
)

// AuthMiddleware - проверка Bearer токена (собственного или внешнего IdP)
func AuthMiddleware(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			// websocket из браузера не умеет заголовки
			token = c.Query("access_token")
			ok = token != "" && c.IsWebsocket()
		}
		if !ok {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		principal, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if appErr, isApp := apperrors.AsAppError(err); isApp {
				apperrors.HandleError(c, appErr)
				return
			}
			logger.CtxWarn(c.Request.Context(), "auth failure", "path", c.Request.URL.Path, "error", err)
			apperrors.HandleError(c, apperrors.ErrInvalidToken)
			return
		}

		ctx := logger.WithUserID(c.Request.Context(), principal.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(userIDKey, principal.UserID)
		c.Set(roleKey, principal.Role)
		c.Next()
	}
}

// RequireRoles - пропускает только перечисленные роли
func RequireRoles(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		if !roleSet[GetRole(c)] {
			apperrors.HandleError(c, apperrors.ErrInsufficientPermissions)
			return
		}
		c.Next()
	}
}

// RequirePermission - проверка по таблице разрешений auth.Permissions
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.HasPermission(GetRole(c), permission) {
			apperrors.HandleError(c, apperrors.ErrInsufficientPermissions)
			return
		}
		c.Next()
	}
}

// GetUserID извлекает ID пользователя (он же ID магазина) из контекста
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func GetRole(c *gin.Context) string {
	return c.GetString(roleKey)
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
