// Package jwt предоставляет валидацию JWT токенов на основе RS256.
// Сервис платежей токены не выпускает: подпись проверяется публичным
// ключом издателя (auth-сервиса), приватный ключ здесь не нужен.
package jwt

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Claims содержит данные JWT токена.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`        // ID пользователя
	Role   string `json:"role,omitempty"` // Роль пользователя (опционально)
}

// Manager валидирует JWT токены по публичному ключу издателя.
type Manager struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// Config содержит параметры для создания Manager.
type Config struct {
	PublicKeyPath string // Путь к публичному ключу (обязательно)
	Issuer        string // Ожидаемый издатель токена
}

// NewManager создаёт новый валидатор JWT токенов.
func NewManager(cfg Config) (*Manager, error) {
	publicKey, err := LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки публичного ключа: %w", err)
	}

	return &Manager{
		publicKey: publicKey,
		issuer:    cfg.Issuer,
	}, nil
}

// ValidateToken проверяет подпись и claims токена.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем, что используется правильный алгоритм
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("ошибка валидации токена: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("невалидные claims токена")
	}

	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("неожиданный издатель токена: %s", claims.Issuer)
	}

	return claims, nil
}

// LoadPublicKey загружает RSA публичный ключ из PEM файла.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("не удалось декодировать PEM блок из %s", path)
	}

	// Пробуем PKIX формат (PUBLIC KEY)
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// Пробуем PKCS#1 формат (RSA PUBLIC KEY)
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("ключ не является RSA публичным ключом")
	}

	return rsaKey, nil
}
