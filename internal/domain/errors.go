package domain

import "errors"

// Доменные ошибки платёжного ядра.
// Обработчики обязаны различать каждую категорию (см. internal/handler/errors.go).
var (
	// ErrOrderNotFound — заказ не найден.
	ErrOrderNotFound = errors.New("заказ не найден")

	// ErrPaymentNotFound — платёж не найден.
	ErrPaymentNotFound = errors.New("платёж не найден")

	// ErrInvalidOrderID — не указан ID заказа.
	ErrInvalidOrderID = errors.New("order_id обязателен")

	// ErrInvalidAmount — некорректная сумма платежа.
	ErrInvalidAmount = errors.New("сумма платежа должна быть больше нуля")

	// ErrInvalidTransition — недопустимый переход состояния.
	ErrInvalidTransition = errors.New("недопустимый переход состояния")

	// ErrInvalidCallback — callback шлюза не содержит обязательных полей.
	ErrInvalidCallback = errors.New("некорректный callback платёжного шлюза")

	// ErrInvalidSignature — подпись callback не прошла проверку.
	// Никакие записи при этом не изменяются.
	ErrInvalidSignature = errors.New("подпись callback недействительна")

	// ErrAlreadyProcessed — callback по платежу уже применён.
	// Не ошибка для вызывающего: возвращается ранее записанный результат.
	ErrAlreadyProcessed = errors.New("платёж уже обработан")

	// ErrNotRefundable — возврат возможен только для успешного платежа.
	ErrNotRefundable = errors.New("возврат возможен только для завершённого платежа")

	// ErrDuplicatePayment — у заказа уже есть активный платёж.
	ErrDuplicatePayment = errors.New("у заказа уже есть активный платёж")
)
