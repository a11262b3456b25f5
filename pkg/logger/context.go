package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// Приватный тип ключей контекста — защита от коллизий с другими пакетами.
type ctxKey string

const (
	// traceIDKey — ключ trace_id: идентификатор запроса через всю систему.
	traceIDKey ctxKey = "trace_id"

	// correlationIDKey — ключ correlation_id: связывает операции одной
	// бизнес-цепочки (например, все события по одному платежу).
	correlationIDKey ctxKey = "correlation_id"

	// loggerKey — ключ настроенного логгера в контексте.
	loggerKey ctxKey = "logger"
)

// WithTraceID добавляет trace_id в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext извлекает trace_id из контекста.
// Возвращает пустую строку, если trace_id не установлен.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithCorrelationID добавляет correlation_id в контекст.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext извлекает correlation_id из контекста.
// Возвращает пустую строку, если correlation_id не установлен.
func CorrelationIDFromContext(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

// NewContextWithIDs добавляет trace_id и correlation_id в контекст за один вызов.
// Удобно для HTTP middleware.
func NewContextWithIDs(ctx context.Context, traceID, correlationID string) context.Context {
	ctx = WithTraceID(ctx, traceID)
	return WithCorrelationID(ctx, correlationID)
}

// WithLogger добавляет настроенный логгер в контекст.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext извлекает логгер из контекста и автоматически добавляет
// trace_id и correlation_id, если они присутствуют.
// Если логгер не был явно положен в контекст — возвращает глобальный.
// Это основной способ получения логгера в обработчиках и сервисах.
func FromContext(ctx context.Context) zerolog.Logger {
	var l zerolog.Logger
	if ctxLogger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		l = ctxLogger
	} else {
		l = log
	}

	if traceID := TraceIDFromContext(ctx); traceID != "" {
		l = l.With().Str("trace_id", traceID).Logger()
	}

	if correlationID := CorrelationIDFromContext(ctx); correlationID != "" {
		l = l.With().Str("correlation_id", correlationID).Logger()
	}

	return l
}

// Ctx возвращает указатель на zerolog.Logger из контекста.
// Альтернативная форма, совместимая с zerolog.Ctx().
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l
}
