package gateway

// ResponseCodeSuccess — код результата успешной оплаты.
const ResponseCodeSuccess = "00"

// responseMessages — статическая таблица кодов результата шлюза.
var responseMessages = map[string]string{
	"00": "Транзакция выполнена успешно",
	"07": "Средства списаны, транзакция помечена как подозрительная",
	"09": "Карта не зарегистрирована в интернет-банкинге",
	"10": "Превышено число попыток аутентификации карты",
	"11": "Истёк срок ожидания оплаты",
	"12": "Карта или счёт заблокированы",
	"13": "Неверный код подтверждения (OTP)",
	"24": "Транзакция отменена пользователем",
	"51": "Недостаточно средств на счёте",
	"65": "Превышен дневной лимит транзакций",
	"75": "Банк платёжной карты на техническом обслуживании",
	"79": "Превышено число попыток ввода платёжного пароля",
}

// ResponseMessage возвращает человекочитаемое описание кода результата.
func ResponseMessage(code string) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	return "Транзакция не выполнена (код " + code + ")"
}
