// Storefront Payments — сервис заказов и платежей с интеграцией VNPAY-шлюза.
// HTTP API создаёт заказы и платёжные URL, принимает server-to-server callback
// шлюза и публикует платёжные события в Kafka через Outbox Pattern.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/storefront-payments/internal/gateway"
	"example.com/storefront-payments/internal/handler"
	"example.com/storefront-payments/internal/middleware"
	"example.com/storefront-payments/internal/repository"
	"example.com/storefront-payments/internal/service"
	"example.com/storefront-payments/pkg/config"
	dbpkg "example.com/storefront-payments/pkg/db"
	"example.com/storefront-payments/pkg/healthcheck"
	"example.com/storefront-payments/pkg/jwt"
	"example.com/storefront-payments/pkg/kafka"
	"example.com/storefront-payments/pkg/logger"
	"example.com/storefront-payments/pkg/metrics"
	"example.com/storefront-payments/pkg/outbox"
	"example.com/storefront-payments/pkg/tracing"
)

// stuckRecoveryInterval — периодичность закрытия зависших платежей.
const stuckRecoveryInterval = 1 * time.Minute

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	log := logger.With().Str("service", cfg.App.Name).Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.Port).
		Msg("Запуск Storefront Payments")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	rdb := dbpkg.ConnectRedis(cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	pingCancel()
	log.Info().Msg("Подключение к Redis установлено")

	// ReadinessChecker для /readyz — проверяет MySQL и Redis
	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, db) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, rdb) },
	)

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			cfg.App.Name,
			metrics.WithReadinessCheck(readinessCheck),
		)
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Инициализация бизнес-логики ===

	timeLocation, err := time.LoadLocation(cfg.VNPay.TimeLocation)
	if err != nil {
		log.Fatal().Err(err).Str("location", cfg.VNPay.TimeLocation).Msg("Некорректный часовой пояс шлюза")
	}

	signer := gateway.NewSigner(cfg.VNPay.HashSecret)

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	reconcileRepo := repository.NewReconcileRepository(db)
	outboxRepo := outbox.NewRepository(db)

	orderService := service.NewOrderService(orderRepo)
	paymentService := service.NewPaymentService(
		orderRepo,
		paymentRepo,
		reconcileRepo,
		rdb,
		signer,
		service.GatewayConfig{
			TmnCode:   cfg.VNPay.TmnCode,
			BaseURL:   cfg.VNPay.BaseURL,
			ReturnURL: cfg.VNPay.ReturnURL,
			Locale:    cfg.VNPay.Locale,
			Currency:  cfg.VNPay.Currency,
			ExpireIn:  cfg.VNPay.ExpireIn,
			Location:  timeLocation,
		},
	)

	// JWT валидатор для защищённых маршрутов
	jwtManager, err := jwt.NewManager(jwt.Config{
		PublicKeyPath: cfg.JWT.PublicKeyPath,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка инициализации JWT валидатора")
	}

	// Контекст для graceful shutdown фоновых воркеров
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workersWg sync.WaitGroup

	// === Kafka + Outbox Worker ===

	var kafkaProducer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		if err := kafka.EnsureTopics(cfg.Kafka.Brokers, []string{kafka.TopicPaymentEvents}); err != nil {
			log.Warn().Err(err).Msg("Не удалось создать топики (возможно Kafka недоступна)")
		}

		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		outboxWorker := outbox.NewWorker(outboxRepo, kafkaProducer, outbox.DefaultWorkerConfig())
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Outbox Worker")
				}
			}()
			outboxWorker.Run(ctx)
		}()

		log.Info().Msg("Outbox Worker запущен")
	} else {
		log.Warn().Msg("Kafka не настроена — публикация платёжных событий отключена")
	}

	// === Фоновое закрытие зависших платежей ===

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		ticker := time.NewTicker(stuckRecoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				recovered, err := paymentService.RecoverStuckPayments(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Ошибка закрытия зависших платежей")
					continue
				}
				if recovered > 0 {
					log.Info().Int("recovered", recovered).Msg("Зависшие платежи закрыты")
				}
			}
		}
	}()

	// === HTTP сервер ===

	router := handler.NewRouter(handler.RouterConfig{
		OrderService:   orderService,
		PaymentService: paymentService,
		AuthMW:         middleware.NewAuthMiddleware(jwtManager),
		TracingMW:      middleware.NewTracingMiddleware(),
		ReadinessCheck: handler.ReadinessChecker(readinessCheck),
		ServiceName:    cfg.App.Name,
		Debug:          cfg.IsDevelopment(),
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Запуск HTTP сервера")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	// Останавливаем HTTP сервер
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	// Останавливаем фоновые воркеры и ждём их завершения
	cancel()
	workersWg.Wait()

	// Закрываем Kafka Producer
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
		}
	}

	// Закрываем подключение к MySQL
	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	// Останавливаем Metrics Server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	// Останавливаем Tracing
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Storefront Payments остановлен")
}
