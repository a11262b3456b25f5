package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Константы протокола шлюза.
const (
	// Version — версия протокола шлюза.
	Version = "2.1.0"

	// CommandPay — команда создания платежа.
	CommandPay = "pay"

	// OrderTypeOther — категория товара по классификатору шлюза.
	OrderTypeOther = "other"

	// AmountScale — множитель суммы на wire-границе: шлюз принимает
	// и возвращает суммы, умноженные на 100.
	AmountScale = 100

	// wireTimeLayout — формат времени шлюза (YYYYMMDDhhmmss).
	wireTimeLayout = "20060102150405"

	// txnRefSeparator — разделитель частей транзакционной ссылки.
	// Не встречается ни в UUID, ни в wire-времени, переживает URL-декодирование.
	txnRefSeparator = "|"
)

// FormatWireTime форматирует время в формат шлюза YYYYMMDDhhmmss.
func FormatWireTime(t time.Time) string {
	return t.Format(wireTimeLayout)
}

// ParseWireTime разбирает время шлюза YYYYMMDDhhmmss в указанной локации.
func ParseWireTime(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(wireTimeLayout, s, loc)
}

// FormatTxnRef собирает транзакционную ссылку из ID заказа, ID платежа
// и времени создания. Время гарантирует уникальность при повторных
// попытках оплаты одного заказа.
func FormatTxnRef(orderID, paymentID string, createdAt time.Time) string {
	return strings.Join([]string{orderID, paymentID, FormatWireTime(createdAt)}, txnRefSeparator)
}

// ParseTxnRef разбирает транзакционную ссылку из callback
// и возвращает ID заказа и ID платежа.
func ParseTxnRef(ref string) (orderID, paymentID string, err error) {
	parts := strings.SplitN(ref, txnRefSeparator, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("некорректная транзакционная ссылка %q", ref)
	}
	return parts[0], parts[1], nil
}

// =============================================================================
// Исходящий запрос (redirect на шлюз)
// =============================================================================

// PayRequest — типизированный набор параметров исходящего redirect-запроса.
// Явные поля вместо словаря исключают опечатки в именах параметров.
type PayRequest struct {
	TmnCode    string    // Код мерчанта
	Locale     string    // Локаль платёжной страницы
	CurrCode   string    // Код валюты
	TxnRef     string    // Транзакционная ссылка (см. FormatTxnRef)
	OrderInfo  string    // Описание заказа
	Amount     int64     // Сумма в целых единицах валюты; ×100 применяется здесь
	ReturnURL  string    // URL возврата покупателя
	IPAddr     string    // IP адрес покупателя
	CreateDate time.Time // Время создания запроса
	ExpireDate time.Time // Время истечения (создание + окно оплаты)
}

// Params возвращает полный набор wire-параметров запроса.
// Масштабирование суммы ×100 происходит только здесь, на wire-границе.
func (r *PayRequest) Params() map[string]string {
	return map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    r.TmnCode,
		"vnp_Locale":     r.Locale,
		"vnp_CurrCode":   r.CurrCode,
		"vnp_TxnRef":     r.TxnRef,
		"vnp_OrderInfo":  r.OrderInfo,
		"vnp_OrderType":  OrderTypeOther,
		"vnp_Amount":     strconv.FormatInt(r.Amount*AmountScale, 10),
		"vnp_ReturnUrl":  r.ReturnURL,
		"vnp_IpAddr":     r.IPAddr,
		"vnp_CreateDate": FormatWireTime(r.CreateDate),
		"vnp_ExpireDate": FormatWireTime(r.ExpireDate),
	}
}

// RedirectURL собирает итоговый URL redirect.
// Подпись считается по канонической строке (значения без экранирования),
// но в сам URL параметры попадают percent-encoded: описание заказа —
// свободный текст, кириллица, пробелы и "&"/"=" в нём сломали бы query.
// Шлюз декодирует query перед повторной канонизацией, подпись сходится.
func (r *PayRequest) RedirectURL(baseURL string, signer *Signer) string {
	params := r.Params()
	hash := signer.Sign(params)

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set(ParamSecureHash, hash)

	return baseURL + "?" + query.Encode()
}

// =============================================================================
// Входящий callback
// =============================================================================

// Callback — типизированные поля callback, который шлюз присылает
// после завершения (или отклонения) платежа.
type Callback struct {
	TmnCode           string // Код мерчанта
	Amount            int64  // Сумма в wire-формате (×100)
	BankCode          string // Код банка (опционально)
	BankTranNo        string // Номер транзакции в банке (опционально)
	CardType          string // Тип карты (опционально)
	PayDate           string // Время оплаты в формате шлюза
	OrderInfo         string // Описание заказа
	TransactionNo     string // Номер транзакции на стороне шлюза
	ResponseCode      string // Код результата ("00" — успех)
	TransactionStatus string // Статус транзакции
	TxnRef            string // Транзакционная ссылка из исходного запроса
}

// ParseCallback строит Callback из сырых параметров запроса.
// Проверка подписи выполняется отдельно (Signer.Verify) ДО разбора —
// разбирать неподписанные данные смысла нет.
func ParseCallback(params map[string]string) (*Callback, error) {
	txnRef := params["vnp_TxnRef"]
	if txnRef == "" {
		return nil, fmt.Errorf("отсутствует обязательный параметр vnp_TxnRef")
	}

	responseCode := params["vnp_ResponseCode"]
	if responseCode == "" {
		return nil, fmt.Errorf("отсутствует обязательный параметр vnp_ResponseCode")
	}

	rawAmount := params["vnp_Amount"]
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректная сумма %q: %w", rawAmount, err)
	}

	return &Callback{
		TmnCode:           params["vnp_TmnCode"],
		Amount:            amount,
		BankCode:          params["vnp_BankCode"],
		BankTranNo:        params["vnp_BankTranNo"],
		CardType:          params["vnp_CardType"],
		PayDate:           params["vnp_PayDate"],
		OrderInfo:         params["vnp_OrderInfo"],
		TransactionNo:     params["vnp_TransactionNo"],
		ResponseCode:      responseCode,
		TransactionStatus: params["vnp_TransactionStatus"],
		TxnRef:            txnRef,
	}, nil
}

// IsSuccess возвращает true, если шлюз подтвердил успешную оплату.
func (c *Callback) IsSuccess() bool {
	return c.ResponseCode == ResponseCodeSuccess
}

// ResponseData возвращает копию параметров callback без полей подписи.
// В таком виде результат шлюза сохраняется у платежа: подпись — служебное
// поле транспорта, частью результата оплаты она не является.
func ResponseData(params map[string]string) map[string]string {
	data := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		data[k] = v
	}
	return data
}

// OriginalAmount возвращает сумму в целых единицах валюты
// (обратное масштабирование wire-значения).
func (c *Callback) OriginalAmount() int64 {
	return c.Amount / AmountScale
}
