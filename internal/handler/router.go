package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/storefront-payments/internal/middleware"
	"example.com/storefront-payments/internal/service"
	"example.com/storefront-payments/pkg/metrics"
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// Router — конфигурация HTTP роутера.
type Router struct {
	engine         *gin.Engine
	orderService   service.OrderService
	paymentService service.PaymentService
	authMW         *middleware.AuthMiddleware
	tracingMW      *middleware.TracingMiddleware
	readinessCheck ReadinessChecker
	serviceName    string
}

// RouterConfig — параметры для создания роутера.
type RouterConfig struct {
	OrderService   service.OrderService
	PaymentService service.PaymentService
	AuthMW         *middleware.AuthMiddleware
	TracingMW      *middleware.TracingMiddleware
	ReadinessCheck ReadinessChecker // опциональная проверка готовности для /readyz
	ServiceName    string           // Имя сервиса для метрик и tracing
	Debug          bool             // Режим отладки Gin
}

// NewRouter создаёт и настраивает HTTP роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "storefront-payments"
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	// OpenTelemetry tracing — создаёт spans для Jaeger
	engine.Use(otelgin.Middleware(cfg.ServiceName))

	// Prometheus метрики — requests_total, request_duration_seconds
	engine.Use(metrics.GinMetricsMiddleware(cfg.ServiceName))

	r := &Router{
		engine:         engine,
		orderService:   cfg.OrderService,
		paymentService: cfg.PaymentService,
		authMW:         cfg.AuthMW,
		tracingMW:      cfg.TracingMW,
		readinessCheck: cfg.ReadinessCheck,
		serviceName:    cfg.ServiceName,
	}

	r.setupRoutes()
	return r
}

// setupRoutes настраивает все маршруты API.
func (r *Router) setupRoutes() {
	if r.tracingMW != nil {
		r.engine.Use(r.tracingMW.Handle())
	}

	// Health endpoints (без auth)
	r.engine.GET("/healthz", r.livenessCheck)
	r.engine.GET("/readyz", r.readinessCheckHandler)

	paymentHandler := NewPaymentHandler(r.paymentService)
	orderHandler := NewOrderHandler(r.orderService)

	// === Маршруты шлюза (подпись вместо auth) ===
	// IPN и return аутентифицируются HMAC подписью параметров,
	// JWT middleware здесь неприменим.
	gatewayRoutes := r.engine.Group("/payments/vnpay")
	{
		gatewayRoutes.GET("/ipn", paymentHandler.HandleIPN)
		gatewayRoutes.GET("/return", paymentHandler.HandleReturn)
	}

	// === API v1 (защищённые маршруты) ===
	v1 := r.engine.Group("/api/v1")
	if r.authMW != nil {
		v1.Use(r.authMW.Handle())
	}

	orders := v1.Group("/orders")
	{
		orders.POST("", orderHandler.CreateOrder)
		orders.GET("", orderHandler.ListOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.GET("/:id/payments", paymentHandler.ListOrderPayments)
	}

	payments := v1.Group("/payments")
	{
		payments.POST("/vnpay", paymentHandler.CreatePayment)
		payments.GET("/:id", paymentHandler.GetPayment)
		payments.POST("/:id/refund", paymentHandler.RefundPayment)
	}
}

// livenessCheck — k8s liveness probe.
func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheckHandler — k8s readiness probe.
func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	if err := r.readinessCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Engine возвращает настроенный gin.Engine (для запуска и тестов).
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
