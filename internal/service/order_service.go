package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/storefront-payments/internal/domain"
	"example.com/storefront-payments/internal/repository"
	"example.com/storefront-payments/pkg/logger"
)

// CreateOrderRequest — запрос на создание заказа.
type CreateOrderRequest struct {
	UserID string // ID пользователя
	Amount int64  // Сумма в целых единицах валюты
}

// OrderService — интерфейс бизнес-логики заказов.
type OrderService interface {
	// CreateOrder создаёт новый заказ в статусе PENDING.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)

	// GetOrder возвращает заказ по ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetUserOrders возвращает заказы пользователя.
	GetUserOrders(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, error)
}

// orderService — реализация OrderService.
type orderService struct {
	repo repository.OrderRepository
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(repo repository.OrderRepository) OrderService {
	return &orderService{repo: repo}
}

// CreateOrder создаёт новый заказ.
func (s *orderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	log := logger.Ctx(ctx)

	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := time.Now()
	order := &domain.Order{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Amount:    req.Amount,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("ошибка создания заказа: %w", err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("user_id", order.UserID).
		Int64("amount", order.Amount).
		Msg("Создан заказ")

	return order, nil
}

// GetOrder возвращает заказ по ID.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidOrderID
	}
	return s.repo.GetByID(ctx, orderID)
}

// GetUserOrders возвращает заказы пользователя.
func (s *orderService) GetUserOrders(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.GetByUserID(ctx, userID, limit, offset)
}
