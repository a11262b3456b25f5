package domain

import (
	"time"
)

// OrderStatus — статус заказа в системе.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, ожидает подтверждения оплаты.
	OrderStatusPending OrderStatus = "PENDING"

	// OrderStatusCompleted — оплата заказа подтверждена шлюзом.
	OrderStatusCompleted OrderStatus = "COMPLETED"

	// OrderStatusCancelled — платёж не прошёл либо был возвращён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order — заказ витрины.
// Здесь только поля, которыми управляет платёжное ядро; позиции, доставка
// и скидки живут в CRUD-слое и приходят сюда как итоговая сумма.
type Order struct {
	ID            string      // Уникальный идентификатор заказа (UUID)
	UserID        string      // ID пользователя, создавшего заказ
	Amount        int64       // Итоговая сумма к оплате в целых единицах валюты
	Status        OrderStatus // Текущий статус заказа
	PaymentID     *string     // ID текущего платежа (nil, пока платёж не создан)
	PaymentMethod *string     // Выбранный способ оплаты
	CreatedAt     time.Time   // Дата создания заказа
	UpdatedAt     time.Time   // Дата последнего обновления
}

// AttachPayment привязывает к заказу созданный платёж.
// Инвариант: у заказа не более одного активного платежа. Неуспешный платёж
// отменяет заказ, поэтому повторная привязка к тому же заказу невозможна —
// оплатить можно только заказ в статусе PENDING.
func (o *Order) AttachPayment(paymentID string, method PaymentMethod) {
	o.PaymentID = &paymentID
	m := string(method)
	o.PaymentMethod = &m
	o.UpdatedAt = time.Now()
}

// CanComplete проверяет, можно ли подтвердить заказ.
func (o *Order) CanComplete() bool {
	return o.Status == OrderStatusPending
}

// Complete подтверждает заказ после успешной оплаты.
// Инвариант: Order.Status == COMPLETED ⇔ текущий Payment.Status == COMPLETED.
func (o *Order) Complete() error {
	if !o.CanComplete() {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusCompleted
	o.UpdatedAt = time.Now()
	return nil
}

// Cancel отменяет заказ после неуспешного платежа или возврата.
// Отмена уже подтверждённого заказа допустима — это сценарий возврата.
func (o *Order) Cancel() error {
	if o.Status == OrderStatusCancelled {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}
