package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "TESTHASHSECRET123"

// =============================================================================
// Тесты CanonicalString
// =============================================================================

func TestCanonicalString_SortsKeys(t *testing.T) {
	params := map[string]string{
		"vnp_TxnRef":  "ref-1",
		"vnp_Amount":  "10000000",
		"vnp_Command": "pay",
	}

	got := CanonicalString(params)

	assert.Equal(t, "vnp_Amount=10000000&vnp_Command=pay&vnp_TxnRef=ref-1", got)
}

func TestCanonicalString_Deterministic(t *testing.T) {
	params := map[string]string{
		"vnp_Version":   "2.1.0",
		"vnp_TmnCode":   "DEMO",
		"vnp_Amount":    "10000000",
		"vnp_OrderInfo": "Оплата заказа O1",
		"vnp_TxnRef":    "O1|p-1|20260828120000",
	}

	first := CanonicalString(params)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, CanonicalString(params), "канонический вид должен быть детерминирован")
	}
}

func TestCanonicalString_ValuesVerbatim(t *testing.T) {
	// Значения попадают в строку как есть, без URL-кодирования
	params := map[string]string{
		"vnp_OrderInfo": "a b&c=d",
	}

	assert.Equal(t, "vnp_OrderInfo=a b&c=d", CanonicalString(params))
}

func TestCanonicalString_Empty(t *testing.T) {
	assert.Equal(t, "", CanonicalString(map[string]string{}))
}

// =============================================================================
// Тесты Sign
// =============================================================================

func TestSigner_Sign_LowercaseHex(t *testing.T) {
	signer := NewSigner(testSecret)

	hash := signer.Sign(map[string]string{"vnp_Amount": "100"})

	assert.Len(t, hash, 128, "HMAC-SHA512 в hex — 128 символов")
	assert.Equal(t, strings.ToLower(hash), hash, "подпись должна быть в нижнем регистре")
}

func TestSigner_Sign_MatchesReference(t *testing.T) {
	signer := NewSigner(testSecret)
	params := map[string]string{
		"vnp_Amount": "10000000",
		"vnp_TxnRef": "O1|p-1|20260828120000",
	}

	// Эталонное вычисление напрямую через crypto/hmac
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write([]byte("vnp_Amount=10000000&vnp_TxnRef=O1|p-1|20260828120000"))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, signer.Sign(params))
}

func TestSigner_Verify_IgnoresSignatureParamsInCanonical(t *testing.T) {
	signer := NewSigner(testSecret)

	// Подпись вычислена без полей подписи; их присутствие в callback
	// не должно ломать проверку
	params := map[string]string{
		"vnp_Amount": "100",
		"vnp_TxnRef": "ref",
	}
	hash := signer.Sign(params)
	params[ParamSecureHash] = hash
	params[ParamSecureHashType] = "HmacSHA512"

	ok, err := signer.Verify(params)
	require.NoError(t, err)
	assert.True(t, ok, "параметры подписи не участвуют в вычислении подписи")
}

// =============================================================================
// Тесты Verify
// =============================================================================

func TestSigner_Verify_ValidSignature(t *testing.T) {
	signer := NewSigner(testSecret)

	params := map[string]string{
		"vnp_Amount":       "10000000",
		"vnp_ResponseCode": "00",
		"vnp_TxnRef":       "O1|p-1|20260828120000",
	}
	params[ParamSecureHash] = signer.Sign(params)

	ok, err := signer.Verify(params)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSigner_Verify_UppercaseSignatureAccepted(t *testing.T) {
	signer := NewSigner(testSecret)

	params := map[string]string{"vnp_Amount": "100"}
	params[ParamSecureHash] = strings.ToUpper(signer.Sign(params))

	ok, err := signer.Verify(params)
	require.NoError(t, err)
	assert.True(t, ok, "регистр hex-подписи не должен влиять на проверку")
}

func TestSigner_Verify_TamperedValue(t *testing.T) {
	signer := NewSigner(testSecret)

	params := map[string]string{
		"vnp_Amount":       "10000000",
		"vnp_ResponseCode": "00",
	}
	params[ParamSecureHash] = signer.Sign(params)

	// Подменяем сумму после подписания
	params["vnp_Amount"] = "1"

	ok, err := signer.Verify(params)
	require.NoError(t, err, "неверная подпись — это false, а не ошибка")
	assert.False(t, ok)
}

func TestSigner_Verify_WrongSecret(t *testing.T) {
	signer := NewSigner(testSecret)
	other := NewSigner("ANOTHERSECRET")

	params := map[string]string{"vnp_Amount": "100"}
	params[ParamSecureHash] = other.Sign(params)

	ok, err := signer.Verify(params)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSigner_Verify_MissingSignature(t *testing.T) {
	signer := NewSigner(testSecret)

	ok, err := signer.Verify(map[string]string{"vnp_Amount": "100"})

	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestSigner_Verify_DoesNotMutateInput(t *testing.T) {
	signer := NewSigner(testSecret)

	params := map[string]string{"vnp_Amount": "100"}
	params[ParamSecureHash] = signer.Sign(params)
	params[ParamSecureHashType] = "HmacSHA512"

	_, err := signer.Verify(params)
	require.NoError(t, err)

	// Исходная map не тронута
	assert.Contains(t, params, ParamSecureHash)
	assert.Contains(t, params, ParamSecureHashType)
	assert.Len(t, params, 3)
}
