// Package kafka предоставляет обёртку над kafka-go для публикации
// платёжных событий. Включает Producer с поддержкой headers и трассировки.
package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/storefront-payments/pkg/logger"
)

// Топики платёжных событий.
const (
	// TopicPaymentEvents — жизненный цикл платежей
	// (payment.completed / payment.failed / payment.refunded).
	// Консьюмеры: нотификации, аналитика.
	TopicPaymentEvents = "payment.events"
)

// Ключи headers сообщений Kafka.
const (
	// HeaderTraceID — идентификатор трассировки для distributed tracing.
	HeaderTraceID = "trace_id"

	// HeaderCorrelationID — идентификатор корреляции (обычно order_id).
	HeaderCorrelationID = "correlation_id"

	// HeaderTimestamp — временная метка создания сообщения.
	HeaderTimestamp = "timestamp"
)

// Config содержит настройки подключения к Kafka.
type Config struct {
	// Brokers — список адресов брокеров Kafka.
	Brokers []string
}

// Message представляет сообщение Kafka с метаданными.
type Message struct {
	Key     []byte            // Ключ сообщения для партиционирования
	Value   []byte            // Тело сообщения (payload)
	Topic   string            // Топик сообщения
	Headers map[string]string // Заголовки (trace_id, correlation_id и т.д.)
	Time    time.Time         // Временная метка
}

// toKafkaMessage конвертирует Message в kafka.Message.
func (m *Message) toKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{
			Key:   k,
			Value: []byte(v),
		})
	}

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Topic:   m.Topic,
		Headers: headers,
		Time:    m.Time,
	}
}

// EnsureTopics создаёт топики, если они не существуют.
// Вызывается при старте сервиса; ошибка не фатальна — брокер может
// создавать топики автоматически.
func EnsureTopics(brokers []string, topics []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("не указаны брокеры Kafka")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("ошибка подключения к Kafka: %w", err)
	}
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("ошибка получения контроллера Kafka: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("ошибка подключения к контроллеру Kafka: %w", err)
	}
	defer func() { _ = controllerConn.Close() }()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
	}

	if err := controllerConn.CreateTopics(configs...); err != nil {
		return fmt.Errorf("ошибка создания топиков: %w", err)
	}

	logger.Info().Strs("topics", topics).Msg("Топики Kafka готовы")
	return nil
}

// TraceIDFromContext извлекает trace_id из context.
// Делегирует в pkg/logger для единообразной работы с контекстом.
func TraceIDFromContext(ctx context.Context) string {
	return logger.TraceIDFromContext(ctx)
}

// CorrelationIDFromContext извлекает correlation_id из context.
func CorrelationIDFromContext(ctx context.Context) string {
	return logger.CorrelationIDFromContext(ctx)
}
