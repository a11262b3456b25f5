package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "auth-service"

// =============================================================================
// Вспомогательные функции
// =============================================================================

// setupKeys генерирует RSA пару, пишет публичный ключ в PEM файл
// и возвращает приватный ключ для подписи тестовых токенов.
func setupKeys(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pemData, 0o600))

	return privateKey, path
}

// signToken подписывает токен с указанными claims.
func signToken(t *testing.T, key *rsa.PrivateKey, claims *Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: "user-1",
		Role:   "customer",
	}
}

// =============================================================================
// Тесты ValidateToken
// =============================================================================

func TestManager_ValidateToken_Success(t *testing.T) {
	key, pubPath := setupKeys(t)

	manager, err := NewManager(Config{PublicKeyPath: pubPath, Issuer: testIssuer})
	require.NoError(t, err)

	tokenString := signToken(t, key, validClaims())

	claims, err := manager.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "customer", claims.Role)
}

func TestManager_ValidateToken_Expired(t *testing.T) {
	key, pubPath := setupKeys(t)

	manager, err := NewManager(Config{PublicKeyPath: pubPath, Issuer: testIssuer})
	require.NoError(t, err)

	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	tokenString := signToken(t, key, claims)

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestManager_ValidateToken_WrongIssuer(t *testing.T) {
	key, pubPath := setupKeys(t)

	manager, err := NewManager(Config{PublicKeyPath: pubPath, Issuer: testIssuer})
	require.NoError(t, err)

	claims := validClaims()
	claims.Issuer = "unknown-service"
	tokenString := signToken(t, key, claims)

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestManager_ValidateToken_WrongKey(t *testing.T) {
	_, pubPath := setupKeys(t)
	otherKey, _ := setupKeys(t)

	manager, err := NewManager(Config{PublicKeyPath: pubPath, Issuer: testIssuer})
	require.NoError(t, err)

	// Токен подписан другим приватным ключом
	tokenString := signToken(t, otherKey, validClaims())

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestManager_ValidateToken_RejectsHMAC(t *testing.T) {
	_, pubPath := setupKeys(t)

	manager, err := NewManager(Config{PublicKeyPath: pubPath, Issuer: testIssuer})
	require.NoError(t, err)

	// Подмена алгоритма: HS256 вместо RS256
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = manager.ValidateToken(signed)
	assert.Error(t, err)
}

func TestManager_ValidateToken_Garbage(t *testing.T) {
	_, pubPath := setupKeys(t)

	manager, err := NewManager(Config{PublicKeyPath: pubPath, Issuer: testIssuer})
	require.NoError(t, err)

	_, err = manager.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

// =============================================================================
// Тесты LoadPublicKey
// =============================================================================

func TestLoadPublicKey(t *testing.T) {
	_, pubPath := setupKeys(t)

	key, err := LoadPublicKey(pubPath)
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestLoadPublicKey_PKCS1(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	// PKCS#1 формат (RSA PUBLIC KEY)
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&privateKey.PublicKey),
	})

	path := filepath.Join(t.TempDir(), "pkcs1.pem")
	require.NoError(t, os.WriteFile(path, pemData, 0o600))

	key, err := LoadPublicKey(path)
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestLoadPublicKey_Errors(t *testing.T) {
	t.Run("файл не существует", func(t *testing.T) {
		_, err := LoadPublicKey("/nonexistent/public.pem")
		assert.Error(t, err)
	})

	t.Run("не PEM", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.pem")
		require.NoError(t, os.WriteFile(path, []byte("не ключ"), 0o600))

		_, err := LoadPublicKey(path)
		assert.Error(t, err)
	})
}
