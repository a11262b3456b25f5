// Package middleware содержит HTTP middleware платёжного сервиса.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/storefront-payments/pkg/jwt"
	"example.com/storefront-payments/pkg/logger"
)

// TokenValidator — интерфейс для валидации токенов.
// Позволяет мокировать *jwt.Manager в тестах.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware — middleware для проверки JWT токенов.
// Токены выдаёт внешний auth-сервис; здесь проверяется подпись (RS256,
// публичный ключ), срок действия и издатель.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware создаёт новый middleware для аутентификации.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Handle возвращает Gin handler function для middleware.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		token := ExtractBearerToken(c)
		if token == "" {
			log.Debug().Msg("Отсутствует токен авторизации")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется авторизация",
			})
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка валидации токена")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Невалидный токен",
			})
			return
		}

		// Сохраняем данные пользователя в контекст Gin
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		log.Debug().
			Str("user_id", claims.UserID).
			Msg("Пользователь аутентифицирован")

		c.Next()
	}
}

// ExtractBearerToken извлекает токен из Authorization header.
// Формат: "Bearer <token>", префикс регистронезависимый.
func ExtractBearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
