package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"example.com/storefront-payments/internal/domain"
	"example.com/storefront-payments/pkg/outbox"
)

// ReconcileRepository выполняет кросс-агрегатные транзакции платёж + заказ.
//
// Смена статуса платежа, смена статуса заказа и запись события в outbox
// происходят в ОДНОЙ транзакции БД: либо все изменения применяются,
// либо ни одно (атомарность сверки callback).
type ReconcileRepository interface {
	// AttachPendingPayment создаёт PENDING платёж и привязывает его к заказу.
	AttachPendingPayment(ctx context.Context, payment *domain.Payment, order *domain.Order) error

	// FinalizeOutcome атомарно переводит платёж из expectedFrom в новый статус,
	// обновляет заказ и записывает событие в outbox.
	//
	// Переход платежа выполняется через compare-and-swap по статусу:
	// если к моменту UPDATE статус уже не expectedFrom (параллельный или
	// повторный callback успел раньше) — возвращает domain.ErrAlreadyProcessed,
	// транзакция откатывается и никакие данные не меняются.
	FinalizeOutcome(ctx context.Context, payment *domain.Payment, order *domain.Order, expectedFrom domain.PaymentStatus, event *outbox.Record) error
}

// reconcileRepository — GORM реализация ReconcileRepository.
type reconcileRepository struct {
	db *gorm.DB
}

// NewReconcileRepository создаёт новый репозиторий сверки.
func NewReconcileRepository(db *gorm.DB) ReconcileRepository {
	return &reconcileRepository{db: db}
}

// AttachPendingPayment создаёт платёж и привязывает его к заказу в одной транзакции.
func (r *reconcileRepository) AttachPendingPayment(ctx context.Context, payment *domain.Payment, order *domain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := paymentModelFromDomain(payment)

		if err := tx.Create(model).Error; err != nil {
			if isDuplicateKeyError(err) {
				return domain.ErrDuplicatePayment
			}
			return err
		}

		payment.CreatedAt = model.CreatedAt
		payment.UpdatedAt = model.UpdatedAt

		result := tx.Model(&OrderModel{}).
			Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"payment_id":     order.PaymentID,
				"payment_method": order.PaymentMethod,
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrOrderNotFound
		}

		return nil
	})
}

// FinalizeOutcome атомарно применяет исход платежа.
func (r *reconcileRepository) FinalizeOutcome(ctx context.Context, payment *domain.Payment, order *domain.Order, expectedFrom domain.PaymentStatus, event *outbox.Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var responseData []byte
		if payment.ResponseData != nil {
			data, err := json.Marshal(payment.ResponseData)
			if err != nil {
				return err
			}
			responseData = data
		}

		// Compare-and-swap: защита от повторной и параллельной доставки callback
		result := tx.Model(&PaymentModel{}).
			Where("id = ? AND status = ?", payment.ID, string(expectedFrom)).
			Updates(map[string]interface{}{
				"status":         string(payment.Status),
				"transaction_id": payment.TransactionID,
				"paid_at":        payment.PaidAt,
				"response_data":  responseData,
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrAlreadyProcessed
		}

		result = tx.Model(&OrderModel{}).
			Where("id = ?", order.ID).
			Updates(map[string]interface{}{
				"status":     string(order.Status),
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrOrderNotFound
		}

		if event != nil {
			if err := tx.Create(outbox.ModelFromDomain(event)).Error; err != nil {
				return err
			}
		}

		payment.UpdatedAt = now
		order.UpdatedAt = now
		return nil
	})
}
