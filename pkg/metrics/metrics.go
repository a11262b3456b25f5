// Package metrics предоставляет Prometheus метрики платёжного сервиса
// и HTTP сервер для /metrics endpoint.
//
// Типы метрик в Prometheus:
//   - Counter: только растёт (запросы, callback, ошибки)
//   - Histogram: распределение значений (latency)
//
// Использование:
//
//	go metrics.NewServer(":9090", "storefront-payments").Start()
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/storefront-payments/pkg/logger"
)

// =============================================================================
// Метрики
// =============================================================================

var (
	// RequestsTotal — счётчик HTTP запросов.
	// PromQL пример: rate(requests_total{service="storefront-payments"}[5m])
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Общее количество запросов по сервису, методу и статусу",
		},
		[]string{"service", "method", "status"},
	)

	// RequestDuration — гистограмма latency запросов.
	// PromQL пример: histogram_quantile(0.95, rate(request_duration_seconds_bucket[5m]))
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Время выполнения запроса в секундах",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method"},
	)

	// PaymentsCreatedTotal — счётчик созданных платёжных попыток.
	PaymentsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Количество созданных платежей (redirect на шлюз)",
		},
	)

	// GatewayCallbacksTotal — счётчик обработанных callback шлюза.
	// outcome: completed / failed / duplicate / rejected
	GatewayCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_callbacks_total",
			Help: "Количество callback платёжного шлюза по исходу обработки",
		},
		[]string{"outcome"},
	)
)

// Исходы обработки callback для GatewayCallbacksTotal.
const (
	CallbackOutcomeCompleted = "completed" // платёж подтверждён
	CallbackOutcomeFailed    = "failed"    // платёж отклонён шлюзом
	CallbackOutcomeDuplicate = "duplicate" // повторная доставка, сработал guard
	CallbackOutcomeRejected  = "rejected"  // невалидная подпись или параметры
)

// =============================================================================
// HTTP Server для /metrics endpoint
// =============================================================================

// ReadinessChecker — функция проверки готовности сервиса.
// Возвращает nil, если сервис готов принимать трафик.
type ReadinessChecker func(ctx context.Context) error

// Server — HTTP сервер для экспорта метрик Prometheus.
type Server struct {
	httpServer     *http.Server
	service        string
	readinessCheck ReadinessChecker // опциональная проверка готовности для /readyz
}

// Option — функциональная опция для настройки Server.
type Option func(*Server)

// WithReadinessCheck добавляет проверку готовности для /readyz endpoint.
// Если checker возвращает ошибку — /readyz вернёт 503 Service Unavailable.
func WithReadinessCheck(checker ReadinessChecker) Option {
	return func(s *Server) {
		s.readinessCheck = checker
	}
}

// NewServer создаёт новый metrics server.
// addr — адрес для прослушивания (например ":9090"),
// service — имя сервиса для логирования.
func NewServer(addr, service string, opts ...Option) *Server {
	s := &Server{
		service: service,
	}

	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()

	// /metrics — endpoint для Prometheus
	mux.Handle("/metrics", promhttp.Handler())

	// /healthz — liveness probe: процесс жив, если сервер отвечает
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})

	// /readyz — readiness probe: все зависимости доступны
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if s.readinessCheck == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.readinessCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			// Детали ошибки наружу не выводим
			_, _ = w.Write([]byte(`{"status":"not_ready"}`))
			logger.Warn().Err(err).Str("service", service).Msg("Readiness check не пройден")
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start запускает HTTP сервер для метрик.
// Блокирующий вызов — запускать в горутине.
func (s *Server) Start() error {
	log := logger.With().Str("service", s.service).Logger()
	log.Info().Str("addr", s.httpServer.Addr).Msg("Запуск Metrics Server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// =============================================================================
// Вспомогательные функции
// =============================================================================

// RecordRequest записывает метрики запроса (вызывать в конце обработки).
func RecordRequest(service, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(service, method, status).Inc()
	RequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// GinMetricsMiddleware возвращает Gin middleware для сбора HTTP метрик.
func GinMetricsMiddleware(service string) func(c *gin.Context) {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := "success"
		if c.Writer.Status() >= 400 {
			status = "error"
		}

		RecordRequest(service, c.FullPath(), status, time.Since(start))
	}
}
