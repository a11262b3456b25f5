// Package outbox реализует Outbox Pattern для гарантированной публикации
// платёжных событий в Kafka.
//
// Событие записывается в таблицу outbox в ОДНОЙ транзакции с изменением
// статуса платежа и заказа. Отдельный Worker читает outbox и отправляет
// события в Kafka (at-least-once).
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы платёжных событий.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// AggregatePayment — тип агрегата для платёжных событий.
const AggregatePayment = "payment"

// Record — запись в таблице outbox.
type Record struct {
	ID            string            // UUID записи
	AggregateType string            // Тип агрегата (payment)
	AggregateID   string            // ID платежа
	EventType     string            // Тип события (payment.completed / payment.failed / payment.refunded)
	Topic         string            // Kafka топик
	MessageKey    string            // Ключ сообщения (order_id — все события заказа в одной партиции)
	Payload       []byte            // JSON payload
	Headers       map[string]string // Headers для Kafka (trace_id, correlation_id)
	CreatedAt     time.Time         // Время создания
	ProcessedAt   *time.Time        // Время отправки в Kafka (nil = не отправлена)
	RetryCount    int               // Количество попыток отправки
	LastError     *string           // Последняя ошибка отправки
}

// PaymentEvent — payload платёжного события.
type PaymentEvent struct {
	EventType     string    `json:"event_type"`
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ResponseCode  string    `json:"response_code,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewPaymentRecord создаёт запись outbox для платёжного события.
// topic — Kafka топик назначения (обычно kafka.TopicPaymentEvents).
func NewPaymentRecord(eventType, topic string, event *PaymentEvent) (*Record, error) {
	event.EventType = eventType
	event.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Record{
		ID:            uuid.New().String(),
		AggregateType: AggregatePayment,
		AggregateID:   event.PaymentID,
		EventType:     eventType,
		Topic:         topic,
		MessageKey:    event.OrderID,
		Payload:       payload,
	}, nil
}

// HeadersJSON возвращает headers в формате JSON для БД.
func (r *Record) HeadersJSON() ([]byte, error) {
	if r.Headers == nil {
		return nil, nil
	}
	return json.Marshal(r.Headers)
}

// SetHeadersFromJSON устанавливает headers из JSON.
func (r *Record) SetHeadersFromJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &r.Headers)
}
