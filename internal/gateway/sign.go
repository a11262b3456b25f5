// Package gateway реализует протокол внешнего платёжного шлюза VNPAY:
// каноническую сериализацию параметров, подпись HMAC-SHA512 и типизированные
// структуры исходящего запроса и входящего callback.
//
// Конвенция подписи шлюза намеренно отличается от URL-кодирования:
// значения берутся как есть, без percent-encoding. Детерминизм канонической
// строки — базовый контракт: подпись и проверка обязаны получать байт в байт
// одинаковый вход независимо от порядка добавления параметров.
package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// Параметры подписи в запросах и callback шлюза.
const (
	// ParamSecureHash — подпись, завершающая набор параметров.
	ParamSecureHash = "vnp_SecureHash"

	// ParamSecureHashType — тип подписи; шлюз может прислать его в callback,
	// но в подписываемые данные он не входит.
	ParamSecureHashType = "vnp_SecureHashType"
)

// ErrMissingSignature — в параметрах callback отсутствует поле подписи.
// Это malformed input; неверная (но присутствующая) подпись ошибкой не является.
var ErrMissingSignature = errors.New("отсутствует параметр подписи " + ParamSecureHash)

// CanonicalString формирует каноническую строку для подписи:
// ключи сортируются побайтово по возрастанию, пары key=value соединяются "&",
// значения — без какого-либо экранирования.
func CanonicalString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}

// Signer подписывает и проверяет наборы параметров общим секретом шлюза.
// Не содержит состояния, безопасен для конкурентного использования.
type Signer struct {
	secret []byte
}

// NewSigner создаёт Signer с общим секретом мерчанта.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign вычисляет HMAC-SHA512 над канонической строкой параметров
// и возвращает подпись в нижнем регистре hex.
func (s *Signer) Sign(params map[string]string) string {
	return s.signString(CanonicalString(params))
}

// signString подписывает уже готовую каноническую строку.
func (s *Signer) signString(data string) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись набора параметров callback.
// Поля подписи исключаются из копии набора, остаток канонизируется и
// подписывается заново; сравнение — константное по времени.
// Возвращает false при несовпадении; ошибку — только при malformed input
// (подпись отсутствует вовсе).
func (s *Signer) Verify(params map[string]string) (bool, error) {
	received, ok := params[ParamSecureHash]
	if !ok || received == "" {
		return false, ErrMissingSignature
	}

	// Копируем, чтобы не мутировать параметры вызывающего.
	unsigned := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		unsigned[k] = v
	}

	expected := s.Sign(unsigned)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(received))), nil
}
