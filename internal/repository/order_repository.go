package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/storefront-payments/internal/domain"
)

// OrderRepository определяет интерфейс для работы с заказами в БД.
type OrderRepository interface {
	// Create создаёт новый заказ.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID возвращает заказ по ID.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetByUserID возвращает заказы пользователя (последние первыми).
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, error)
}

// =============================================================================
// GORM модель
// =============================================================================

// OrderModel — GORM модель для таблицы orders.
type OrderModel struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID        string    `gorm:"column:user_id;type:varchar(36);not null;index"`
	Amount        int64     `gorm:"column:amount;not null"`
	Status        string    `gorm:"column:status;type:varchar(20);not null;index"`
	PaymentID     *string   `gorm:"column:payment_id;type:varchar(36)"`
	PaymentMethod *string   `gorm:"column:payment_method;type:varchar(20)"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (OrderModel) TableName() string {
	return "orders"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *OrderModel) toDomain() *domain.Order {
	return &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		Amount:        m.Amount,
		Status:        domain.OrderStatus(m.Status),
		PaymentID:     m.PaymentID,
		PaymentMethod: m.PaymentMethod,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// orderModelFromDomain конвертирует доменную сущность в GORM модель.
func orderModelFromDomain(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:            o.ID,
		UserID:        o.UserID,
		Amount:        o.Amount,
		Status:        string(o.Status),
		PaymentID:     o.PaymentID,
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// =============================================================================
// Реализация репозитория
// =============================================================================

// orderRepository — GORM реализация OrderRepository.
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create создаёт новый заказ.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := orderModelFromDomain(order)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt

	return nil
}

// GetByID возвращает заказ по ID.
func (r *orderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var model OrderModel

	if err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetByUserID возвращает заказы пользователя, последние первыми.
func (r *orderRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, error) {
	var models []OrderModel

	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, models[i].toDomain())
	}

	return orders, nil
}
