// Package domain содержит бизнес-сущности платёжного ядра витрины.
package domain

import (
	"time"
)

// PaymentStatus — статус платежа в системе.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан, ожидаем callback от шлюза.
	PaymentStatusPending PaymentStatus = "PENDING"

	// PaymentStatusCompleted — шлюз подтвердил успешную оплату.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"

	// PaymentStatusFailed — платёж не прошёл (отклонён шлюзом, отменён
	// пользователем) либо был возвращён после успешной оплаты.
	// Возврат переиспользует FAILED — отдельного статуса REFUNDED нет,
	// поведение сохранено как в продакшене (см. DESIGN.md).
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// IsFinal возвращает true, если callback по платежу уже применён.
// Именно эта проверка — guard идемпотентности Callback Reconciler:
// повторная доставка callback не должна менять финальное состояние.
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentMethod — способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodVNPay — redirect на внешний платёжный шлюз VNPAY.
	PaymentMethodVNPay PaymentMethod = "VNPAY"

	// PaymentMethodCashOnDelivery — оплата наличными при получении.
	PaymentMethodCashOnDelivery PaymentMethod = "COD"

	// PaymentMethodBankTransfer — прямой банковский перевод.
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// =============================================================================
// Допустимые переходы состояний (State Machine)
// =============================================================================

// allowedTransitions определяет валидные переходы состояний платежа.
// Из COMPLETED возможен только возврат (Reverse), который переводит в FAILED.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusFailed},
	// PaymentStatusFailed — терминальное состояние
}

// =============================================================================
// Payment — доменная сущность
// =============================================================================

// Payment — попытка оплаты заказа.
// У заказа может быть не более одного активного (не FAILED) платежа,
// но сколько угодно неудачных попыток.
type Payment struct {
	ID            string            // UUID платежа
	OrderID       string            // ID оплачиваемого заказа
	Amount        int64             // Сумма в целых единицах валюты (×100 только на wire-границе)
	Method        PaymentMethod     // Способ оплаты
	Status        PaymentStatus     // Текущий статус
	TransactionID *string           // Номер транзакции, присвоенный шлюзом (только при COMPLETED)
	PaidAt        *time.Time        // Время подтверждения оплаты (только при COMPLETED)
	ResponseData  map[string]string // Сырые поля результата от шлюза (COMPLETED и FAILED)
	CreatedAt     time.Time         // Дата создания
	UpdatedAt     time.Time         // Дата обновления
}

// CanTransitionTo проверяет, допустим ли переход в указанное состояние.
func (p *Payment) CanTransitionTo(newStatus PaymentStatus) bool {
	allowed, ok := allowedTransitions[p.Status]
	if !ok {
		return false // Терминальное состояние
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo выполняет переход в новое состояние.
func (p *Payment) TransitionTo(newStatus PaymentStatus) error {
	if !p.CanTransitionTo(newStatus) {
		return ErrInvalidTransition
	}
	p.Status = newStatus
	p.UpdatedAt = time.Now()
	return nil
}

// Complete подтверждает оплату по callback шлюза.
// transactionNo — номер транзакции на стороне шлюза,
// paidAt — время оплаты, responseData — сырые поля результата.
func (p *Payment) Complete(transactionNo string, paidAt time.Time, responseData map[string]string) error {
	if err := p.TransitionTo(PaymentStatusCompleted); err != nil {
		return err
	}
	p.TransactionID = &transactionNo
	p.PaidAt = &paidAt
	p.ResponseData = responseData
	return nil
}

// Fail помечает платёж как неуспешный с сохранением ответа шлюза.
func (p *Payment) Fail(responseData map[string]string) error {
	if err := p.TransitionTo(PaymentStatusFailed); err != nil {
		return err
	}
	p.ResponseData = responseData
	return nil
}

// Reverse выполняет возврат успешного платежа.
// Допустим только из COMPLETED; любое другое состояние — ErrNotRefundable.
// Платёж переходит в FAILED (переиспользование терминального статуса).
func (p *Payment) Reverse() error {
	if p.Status != PaymentStatusCompleted {
		return ErrNotRefundable
	}
	return p.TransitionTo(PaymentStatusFailed)
}

// Validate проверяет корректность полей платежа перед созданием.
func (p *Payment) Validate() error {
	if p.OrderID == "" {
		return ErrInvalidOrderID
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
