// Package service содержит бизнес-логику платёжного сервиса.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"example.com/storefront-payments/internal/domain"
	"example.com/storefront-payments/internal/gateway"
	"example.com/storefront-payments/internal/repository"
	"example.com/storefront-payments/pkg/kafka"
	"example.com/storefront-payments/pkg/logger"
	"example.com/storefront-payments/pkg/metrics"
	"example.com/storefront-payments/pkg/outbox"
)

// =============================================================================
// Конфигурация
// =============================================================================

const (
	// callbackGuardPrefix — префикс ключей Redis для быстрой проверки
	// повторной доставки callback.
	callbackGuardPrefix = "payment:callback:"

	// callbackGuardTTL — время жизни ключа guard (24 часа).
	callbackGuardTTL = 24 * time.Hour

	// stuckBatchSize — размер пачки при закрытии зависших платежей.
	stuckBatchSize = 100

	// stuckSlack — запас сверх окна оплаты: callback может прийти
	// с опозданием, закрываем платёж не раньше expire + slack.
	stuckSlack = 5 * time.Minute
)

// GatewayConfig — параметры интеграции с платёжным шлюзом.
type GatewayConfig struct {
	TmnCode   string         // Код мерчанта
	BaseURL   string         // Базовый URL платёжной страницы
	ReturnURL string         // URL возврата покупателя
	Locale    string         // Локаль платёжной страницы
	Currency  string         // Код валюты
	ExpireIn  time.Duration  // Окно оплаты
	Location  *time.Location // Часовой пояс wire-времени
}

// =============================================================================
// Интерфейс сервиса
// =============================================================================

// CreatePaymentURLRequest — запрос на создание платёжного URL.
type CreatePaymentURLRequest struct {
	OrderID   string // ID оплачиваемого заказа
	UserID    string // ID пользователя (владелец заказа)
	ClientIP  string // IP адрес покупателя
	OrderInfo string // Описание заказа (опционально)
}

// CreatePaymentURLResult — результат создания платёжного URL.
type CreatePaymentURLResult struct {
	PaymentID   string    // ID созданного платежа
	RedirectURL string    // Подписанный URL платёжной страницы
	ExpiresAt   time.Time // Время истечения окна оплаты
}

// CallbackResult — результат сверки callback шлюза.
type CallbackResult struct {
	Payment   *domain.Payment // Платёж после сверки
	Duplicate bool            // true — повторная доставка, состояние не менялось
}

// ReturnResult — результат проверки return-запроса покупателя.
// Только чтение: состояние меняет server-to-server callback.
type ReturnResult struct {
	Success      bool   // Шлюз сообщил об успехе
	ResponseCode string // Код результата шлюза
	Message      string // Человекочитаемое сообщение
	OrderID      string // ID заказа из транзакционной ссылки
	PaymentID    string // ID платежа из транзакционной ссылки
}

// RefundPaymentRequest — запрос на возврат платежа.
type RefundPaymentRequest struct {
	PaymentID string // ID платежа
	Reason    string // Причина возврата
}

// PaymentService — интерфейс бизнес-логики платежей.
type PaymentService interface {
	// CreatePaymentURL создаёт PENDING платёж и подписанный URL
	// платёжной страницы шлюза.
	CreatePaymentURL(ctx context.Context, req CreatePaymentURLRequest) (*CreatePaymentURLResult, error)

	// HandleCallback сверяет server-to-server callback шлюза.
	// Подпись проверяется ДО любых изменений; повторная доставка
	// возвращает зафиксированный ранее результат.
	HandleCallback(ctx context.Context, params map[string]string) (*CallbackResult, error)

	// VerifyReturn проверяет подпись return-запроса покупателя
	// и возвращает результат только для отображения.
	VerifyReturn(ctx context.Context, params map[string]string) (*ReturnResult, error)

	// RefundPayment выполняет возврат успешного платежа.
	RefundPayment(ctx context.Context, req RefundPaymentRequest) error

	// GetPayment возвращает платёж по ID.
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)

	// GetOrderPayments возвращает платежи заказа.
	GetOrderPayments(ctx context.Context, orderID string) ([]*domain.Payment, error)

	// RecoverStuckPayments закрывает PENDING платежи, по которым шлюз
	// не прислал callback за окно оплаты. Вызывается периодически.
	RecoverStuckPayments(ctx context.Context) (int, error)
}

// =============================================================================
// Реализация сервиса
// =============================================================================

// paymentService — реализация PaymentService.
type paymentService struct {
	orderRepo     repository.OrderRepository
	paymentRepo   repository.PaymentRepository
	reconcileRepo repository.ReconcileRepository
	redis         *redis.Client
	signer        *gateway.Signer
	cfg           GatewayConfig
}

// NewPaymentService создаёт новый сервис платежей.
func NewPaymentService(
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	reconcileRepo repository.ReconcileRepository,
	redisClient *redis.Client,
	signer *gateway.Signer,
	cfg GatewayConfig,
) PaymentService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &paymentService{
		orderRepo:     orderRepo,
		paymentRepo:   paymentRepo,
		reconcileRepo: reconcileRepo,
		redis:         redisClient,
		signer:        signer,
		cfg:           cfg,
	}
}

// CreatePaymentURL создаёт платёж и подписанный redirect URL.
func (s *paymentService) CreatePaymentURL(ctx context.Context, req CreatePaymentURLRequest) (*CreatePaymentURLResult, error) {
	log := logger.Ctx(ctx)

	if req.OrderID == "" {
		return nil, domain.ErrInvalidOrderID
	}

	// 1. Загружаем заказ и проверяем, что его можно оплатить
	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки заказа: %w", err)
	}

	if req.UserID != "" && order.UserID != req.UserID {
		// Чужой заказ не раскрываем
		return nil, domain.ErrOrderNotFound
	}

	if order.Status != domain.OrderStatusPending {
		return nil, domain.ErrInvalidTransition
	}

	// 2. Создаём PENDING платёж
	now := time.Now().In(s.cfg.Location)
	payment := &domain.Payment{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Amount:    order.Amount,
		Method:    domain.PaymentMethodVNPay,
		Status:    domain.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	// 3. Собираем wire-параметры и подписываем URL
	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Оплата заказа " + order.ID
	}

	payReq := &gateway.PayRequest{
		TmnCode:    s.cfg.TmnCode,
		Locale:     s.cfg.Locale,
		CurrCode:   s.cfg.Currency,
		TxnRef:     gateway.FormatTxnRef(order.ID, payment.ID, now),
		OrderInfo:  orderInfo,
		Amount:     payment.Amount,
		ReturnURL:  s.cfg.ReturnURL,
		IPAddr:     req.ClientIP,
		CreateDate: now,
		ExpireDate: now.Add(s.cfg.ExpireIn),
	}
	redirectURL := payReq.RedirectURL(s.cfg.BaseURL, s.signer)

	// 4. Платёж и привязка к заказу — одна транзакция
	order.AttachPayment(payment.ID, payment.Method)
	if err := s.reconcileRepo.AttachPendingPayment(ctx, payment, order); err != nil {
		return nil, fmt.Errorf("ошибка создания платежа: %w", err)
	}

	metrics.PaymentsCreatedTotal.Inc()

	log.Info().
		Str("order_id", order.ID).
		Str("payment_id", payment.ID).
		Int64("amount", payment.Amount).
		Time("expires_at", payReq.ExpireDate).
		Msg("Создан платёж, покупатель направлен на шлюз")

	return &CreatePaymentURLResult{
		PaymentID:   payment.ID,
		RedirectURL: redirectURL,
		ExpiresAt:   payReq.ExpireDate,
	}, nil
}

// HandleCallback сверяет callback шлюза.
func (s *paymentService) HandleCallback(ctx context.Context, params map[string]string) (*CallbackResult, error) {
	log := logger.FromContext(ctx)

	// 1. Подпись проверяется раньше всего остального.
	// До валидной подписи данным верить нельзя — никаких изменений состояния.
	ok, err := s.signer.Verify(params)
	if err != nil {
		metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeRejected).Inc()
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCallback, err)
	}
	if !ok {
		metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeRejected).Inc()
		log.Warn().Msg("Callback с неверной подписью отклонён")
		return nil, domain.ErrInvalidSignature
	}

	// 2. Разбор параметров и транзакционной ссылки
	cb, err := gateway.ParseCallback(params)
	if err != nil {
		metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeRejected).Inc()
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCallback, err)
	}

	orderID, paymentID, err := gateway.ParseTxnRef(cb.TxnRef)
	if err != nil {
		metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeRejected).Inc()
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCallback, err)
	}

	log = log.With().
		Str("order_id", orderID).
		Str("payment_id", paymentID).
		Str("response_code", cb.ResponseCode).
		Logger()

	// 3. Загружаем платёж и заказ
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.OrderID != orderID {
		metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeRejected).Inc()
		return nil, fmt.Errorf("%w: платёж %s не принадлежит заказу %s", domain.ErrInvalidCallback, paymentID, orderID)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// 4. Guard идемпотентности: финальный платёж второй раз не трогаем
	if payment.Status.IsFinal() {
		metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeDuplicate).Inc()
		log.Info().Str("status", string(payment.Status)).Msg("Повторный callback, возвращаем зафиксированный результат")
		return &CallbackResult{Payment: payment, Duplicate: true}, nil
	}

	// Быстрая проверка через Redis (SETNX): параллельная доставка того же
	// callback перечитывает состояние из БД. При ошибке Redis продолжаем —
	// CAS в БД остаётся авторитетной защитой.
	guardKey := callbackGuardPrefix + payment.ID
	wasSet, redisErr := s.redis.SetNX(ctx, guardKey, "processing", callbackGuardTTL).Result()
	if redisErr != nil {
		log.Error().Err(redisErr).Msg("Ошибка Redis при проверке повторной доставки")
	}
	if !wasSet && redisErr == nil {
		fresh, dbErr := s.paymentRepo.GetByID(ctx, payment.ID)
		if dbErr == nil && fresh.Status.IsFinal() {
			metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeDuplicate).Inc()
			log.Info().Str("status", string(fresh.Status)).Msg("Повторный callback (Redis guard)")
			return &CallbackResult{Payment: fresh, Duplicate: true}, nil
		}
		// Платёж всё ещё PENDING — предыдущая обработка могла упасть, продолжаем
	}

	// 5. Сверка суммы: шлюз возвращает сумму ×100
	if cb.OriginalAmount() != payment.Amount {
		metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeRejected).Inc()
		return nil, fmt.Errorf("%w: сумма callback %d не совпадает с суммой платежа %d",
			domain.ErrInvalidAmount, cb.OriginalAmount(), payment.Amount)
	}

	// 6. Применяем исход к доменным сущностям.
	// Сохраняем результат шлюза без полей подписи, с расшифровкой кода.
	responseData := gateway.ResponseData(params)
	responseData["message"] = gateway.ResponseMessage(cb.ResponseCode)

	var eventType, outcome string
	if cb.IsSuccess() {
		paidAt := time.Now()
		if cb.PayDate != "" {
			if t, parseErr := gateway.ParseWireTime(cb.PayDate, s.cfg.Location); parseErr == nil {
				paidAt = t
			}
		}
		if err := payment.Complete(cb.TransactionNo, paidAt, responseData); err != nil {
			return nil, err
		}
		if err := order.Complete(); err != nil {
			return nil, err
		}
		eventType = outbox.EventPaymentCompleted
		outcome = metrics.CallbackOutcomeCompleted
	} else {
		if err := payment.Fail(responseData); err != nil {
			return nil, err
		}
		if err := order.Cancel(); err != nil {
			return nil, err
		}
		eventType = outbox.EventPaymentFailed
		outcome = metrics.CallbackOutcomeFailed
	}

	// 7. Платёж + заказ + событие outbox — одна транзакция с CAS по статусу
	event, err := s.buildPaymentEvent(ctx, eventType, payment, cb.ResponseCode)
	if err != nil {
		return nil, err
	}

	if err := s.reconcileRepo.FinalizeOutcome(ctx, payment, order, domain.PaymentStatusPending, event); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			// Проиграли гонку параллельной доставке — возвращаем её результат
			fresh, dbErr := s.paymentRepo.GetByID(ctx, payment.ID)
			if dbErr != nil {
				return nil, dbErr
			}
			metrics.GatewayCallbacksTotal.WithLabelValues(metrics.CallbackOutcomeDuplicate).Inc()
			return &CallbackResult{Payment: fresh, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("ошибка фиксации результата платежа: %w", err)
	}

	metrics.GatewayCallbacksTotal.WithLabelValues(outcome).Inc()

	log.Info().
		Str("payment_status", string(payment.Status)).
		Str("order_status", string(order.Status)).
		Str("message", gateway.ResponseMessage(cb.ResponseCode)).
		Msg("Callback шлюза сверен")

	return &CallbackResult{Payment: payment}, nil
}

// VerifyReturn проверяет подпись return-запроса покупателя.
func (s *paymentService) VerifyReturn(ctx context.Context, params map[string]string) (*ReturnResult, error) {
	ok, err := s.signer.Verify(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCallback, err)
	}
	if !ok {
		return nil, domain.ErrInvalidSignature
	}

	cb, err := gateway.ParseCallback(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCallback, err)
	}

	orderID, paymentID, err := gateway.ParseTxnRef(cb.TxnRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCallback, err)
	}

	return &ReturnResult{
		Success:      cb.IsSuccess(),
		ResponseCode: cb.ResponseCode,
		Message:      gateway.ResponseMessage(cb.ResponseCode),
		OrderID:      orderID,
		PaymentID:    paymentID,
	}, nil
}

// RefundPayment выполняет возврат успешного платежа.
func (s *paymentService) RefundPayment(ctx context.Context, req RefundPaymentRequest) error {
	log := logger.Ctx(ctx)

	payment, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		return err
	}

	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return err
	}

	// Возврат допустим только из COMPLETED
	if err := payment.Reverse(); err != nil {
		return err
	}
	if err := order.Cancel(); err != nil {
		return err
	}

	if payment.ResponseData == nil {
		payment.ResponseData = map[string]string{}
	}
	payment.ResponseData["refund_reason"] = req.Reason

	event, err := s.buildPaymentEvent(ctx, outbox.EventPaymentRefunded, payment, "")
	if err != nil {
		return err
	}

	if err := s.reconcileRepo.FinalizeOutcome(ctx, payment, order, domain.PaymentStatusCompleted, event); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			// Статус успел измениться — возврат уже невозможен
			return domain.ErrNotRefundable
		}
		return fmt.Errorf("ошибка фиксации возврата: %w", err)
	}

	log.Info().
		Str("payment_id", payment.ID).
		Str("order_id", order.ID).
		Str("reason", req.Reason).
		Msg("Платёж возвращён, заказ отменён")

	return nil
}

// GetPayment возвращает платёж по ID.
func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.paymentRepo.GetByID(ctx, paymentID)
}

// GetOrderPayments возвращает платежи заказа.
func (s *paymentService) GetOrderPayments(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	if _, err := s.orderRepo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetByOrderID(ctx, orderID)
}

// RecoverStuckPayments закрывает зависшие PENDING платежи.
// Окно оплаты истекло, callback не пришёл — платёж FAILED, заказ CANCELLED.
func (s *paymentService) RecoverStuckPayments(ctx context.Context) (int, error) {
	log := logger.Ctx(ctx)

	stuck, err := s.paymentRepo.GetStuckPending(ctx, s.cfg.ExpireIn+stuckSlack, stuckBatchSize)
	if err != nil {
		return 0, fmt.Errorf("ошибка поиска зависших платежей: %w", err)
	}

	recovered := 0
	for _, payment := range stuck {
		order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
		if err != nil {
			log.Error().Err(err).Str("payment_id", payment.ID).Msg("Ошибка загрузки заказа зависшего платежа")
			continue
		}

		if err := payment.Fail(map[string]string{"recovery_reason": "окно оплаты истекло, callback не получен"}); err != nil {
			continue
		}
		if err := order.Cancel(); err != nil {
			log.Error().Err(err).Str("payment_id", payment.ID).Msg("Ошибка отмены заказа зависшего платежа")
			continue
		}

		event, err := s.buildPaymentEvent(ctx, outbox.EventPaymentFailed, payment, "")
		if err != nil {
			continue
		}

		if err := s.reconcileRepo.FinalizeOutcome(ctx, payment, order, domain.PaymentStatusPending, event); err != nil {
			if errors.Is(err, domain.ErrAlreadyProcessed) {
				// Callback успел прийти между выборкой и закрытием
				continue
			}
			log.Error().Err(err).Str("payment_id", payment.ID).Msg("Ошибка закрытия зависшего платежа")
			continue
		}

		log.Warn().
			Str("payment_id", payment.ID).
			Str("order_id", order.ID).
			Time("created_at", payment.CreatedAt).
			Msg("Зависший платёж закрыт как FAILED")
		recovered++
	}

	return recovered, nil
}

// buildPaymentEvent собирает запись outbox для платёжного события.
func (s *paymentService) buildPaymentEvent(ctx context.Context, eventType string, payment *domain.Payment, responseCode string) (*outbox.Record, error) {
	transactionID := ""
	if payment.TransactionID != nil {
		transactionID = *payment.TransactionID
	}

	event, err := outbox.NewPaymentRecord(eventType, kafka.TopicPaymentEvents, &outbox.PaymentEvent{
		PaymentID:     payment.ID,
		OrderID:       payment.OrderID,
		Amount:        payment.Amount,
		Method:        string(payment.Method),
		Status:        string(payment.Status),
		TransactionID: transactionID,
		ResponseCode:  responseCode,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки платёжного события: %w", err)
	}

	headers := map[string]string{}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		headers[kafka.HeaderTraceID] = traceID
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		headers[kafka.HeaderCorrelationID] = correlationID
	}
	if len(headers) > 0 {
		event.Headers = headers
	}

	return event, nil
}
