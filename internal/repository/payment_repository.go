// Package repository содержит реализацию доступа к данным платёжного сервиса.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/storefront-payments/internal/domain"
)

// PaymentRepository определяет интерфейс для работы с платежами в БД.
type PaymentRepository interface {
	// Create создаёт новый платёж.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID возвращает платёж по ID.
	GetByID(ctx context.Context, paymentID string) (*domain.Payment, error)

	// GetByOrderID возвращает платежи заказа (последние первыми).
	GetByOrderID(ctx context.Context, orderID string) ([]*domain.Payment, error)

	// GetStuckPending возвращает платежи в статусе PENDING старше указанного времени.
	GetStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)
}

// =============================================================================
// GORM модель
// =============================================================================

// PaymentModel — GORM модель для таблицы payments.
type PaymentModel struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID       string     `gorm:"column:order_id;type:varchar(36);not null;index"`
	Amount        int64      `gorm:"column:amount;not null"`
	Method        string     `gorm:"column:method;type:varchar(20);not null"`
	Status        string     `gorm:"column:status;type:varchar(20);not null;index"`
	TransactionID *string    `gorm:"column:transaction_id;type:varchar(100)"`
	PaidAt        *time.Time `gorm:"column:paid_at"`
	ResponseData  []byte     `gorm:"column:response_data;type:json"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (PaymentModel) TableName() string {
	return "payments"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *PaymentModel) toDomain() *domain.Payment {
	p := &domain.Payment{
		ID:            m.ID,
		OrderID:       m.OrderID,
		Amount:        m.Amount,
		Method:        domain.PaymentMethod(m.Method),
		Status:        domain.PaymentStatus(m.Status),
		TransactionID: m.TransactionID,
		PaidAt:        m.PaidAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}

	if len(m.ResponseData) > 0 {
		_ = json.Unmarshal(m.ResponseData, &p.ResponseData)
	}

	return p
}

// paymentModelFromDomain конвертирует доменную сущность в GORM модель.
func paymentModelFromDomain(p *domain.Payment) *PaymentModel {
	model := &PaymentModel{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}

	if p.ResponseData != nil {
		if data, err := json.Marshal(p.ResponseData); err == nil {
			model.ResponseData = data
		}
	}

	return model
}

// =============================================================================
// Реализация репозитория
// =============================================================================

// paymentRepository — GORM реализация PaymentRepository.
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository создаёт новый репозиторий платежей.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create создаёт новый платёж.
func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	model := paymentModelFromDomain(payment)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicatePayment
		}
		return err
	}

	// Обновляем timestamps в доменной сущности
	payment.CreatedAt = model.CreatedAt
	payment.UpdatedAt = model.UpdatedAt

	return nil
}

// GetByID возвращает платёж по ID.
func (r *paymentRepository) GetByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	var model PaymentModel

	if err := r.db.WithContext(ctx).
		Where("id = ?", paymentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetByOrderID возвращает платежи заказа, последние первыми.
func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	var models []PaymentModel

	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	payments := make([]*domain.Payment, 0, len(models))
	for i := range models {
		payments = append(payments, models[i].toDomain())
	}

	return payments, nil
}

// GetStuckPending возвращает платежи в статусе PENDING старше указанного времени.
// Используется фоновой задачей для закрытия платежей, по которым шлюз
// так и не прислал callback.
func (r *paymentRepository) GetStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	var models []PaymentModel

	threshold := time.Now().Add(-olderThan)

	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domain.PaymentStatusPending), threshold).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	payments := make([]*domain.Payment, 0, len(models))
	for i := range models {
		payments = append(payments, models[i].toDomain())
	}

	return payments, nil
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
