// Package repository содержит unit тесты репозиториев платёжного сервиса.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/storefront-payments/internal/domain"
)

// =============================================================================
// Вспомогательные функции
// =============================================================================

// setupMockDB создаёт мок базы данных с GORM.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Ошибка создания sqlmock")

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Ошибка инициализации GORM")

	return gormDB, mock, func() { _ = db.Close() }
}

func paymentRows(id, orderID string, amount int64, status string, responseData []byte) *sqlmock.Rows {
	now := time.Now().Truncate(time.Second)
	return sqlmock.NewRows([]string{
		"id", "order_id", "amount", "method", "status",
		"transaction_id", "paid_at", "response_data", "created_at", "updated_at",
	}).AddRow(id, orderID, amount, "VNPAY", status, nil, nil, responseData, now, now)
}

// =============================================================================
// Тесты Create
// =============================================================================

func TestPaymentRepository_Create(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "успешное создание",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payments`")).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
			expectedErr: nil,
		},
		{
			name: "дубликат платежа",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payments`")).
					WillReturnError(errors.New("Error 1062: Duplicate entry"))
				mock.ExpectRollback()
			},
			expectedErr: domain.ErrDuplicatePayment,
		},
		{
			name: "ошибка БД",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payments`")).
					WillReturnError(sql.ErrConnDone)
				mock.ExpectRollback()
			},
			expectedErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			repo := NewPaymentRepository(gormDB)
			tt.mockSetup(mock)

			payment := &domain.Payment{
				ID:      "payment-1",
				OrderID: "O1",
				Amount:  100000,
				Method:  domain.PaymentMethodVNPay,
				Status:  domain.PaymentStatusPending,
			}

			err := repo.Create(context.Background(), payment)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// =============================================================================
// Тесты GetByID
// =============================================================================

func TestPaymentRepository_GetByID(t *testing.T) {
	tests := []struct {
		name         string
		paymentID    string
		mockSetup    func(mock sqlmock.Sqlmock, paymentID string)
		expectedErr  error
		checkPayment func(t *testing.T, p *domain.Payment)
	}{
		{
			name:      "успешное получение",
			paymentID: "payment-1",
			mockSetup: func(mock sqlmock.Sqlmock, paymentID string) {
				rows := paymentRows(paymentID, "O1", 100000, "COMPLETED", []byte(`{"vnp_ResponseCode":"00"}`))
				mock.ExpectQuery("SELECT \\* FROM `payments` WHERE id = \\? ORDER BY `payments`.`id` LIMIT \\?").
					WithArgs(paymentID, 1).WillReturnRows(rows)
			},
			expectedErr: nil,
			checkPayment: func(t *testing.T, p *domain.Payment) {
				assert.Equal(t, "payment-1", p.ID)
				assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
				// JSON из response_data разворачивается в map
				assert.Equal(t, "00", p.ResponseData["vnp_ResponseCode"])
			},
		},
		{
			name:      "не найден",
			paymentID: "missing",
			mockSetup: func(mock sqlmock.Sqlmock, paymentID string) {
				rows := sqlmock.NewRows([]string{"id"})
				mock.ExpectQuery("SELECT \\* FROM `payments` WHERE id = \\? ORDER BY `payments`.`id` LIMIT \\?").
					WithArgs(paymentID, 1).WillReturnRows(rows)
			},
			expectedErr: domain.ErrPaymentNotFound,
		},
		{
			name:      "ошибка БД",
			paymentID: "payment-2",
			mockSetup: func(mock sqlmock.Sqlmock, paymentID string) {
				mock.ExpectQuery("SELECT \\* FROM `payments` WHERE id = \\? ORDER BY `payments`.`id` LIMIT \\?").
					WithArgs(paymentID, 1).WillReturnError(sql.ErrConnDone)
			},
			expectedErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			repo := NewPaymentRepository(gormDB)
			tt.mockSetup(mock, tt.paymentID)

			payment, err := repo.GetByID(context.Background(), tt.paymentID)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, payment)
			} else {
				require.NoError(t, err)
				require.NotNil(t, payment)
				if tt.checkPayment != nil {
					tt.checkPayment(t, payment)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// =============================================================================
// Тесты GetByOrderID / GetStuckPending
// =============================================================================

func TestPaymentRepository_GetByOrderID(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)

	rows := paymentRows("payment-1", "O1", 100000, "FAILED", nil)
	mock.ExpectQuery("SELECT \\* FROM `payments` WHERE order_id = \\? ORDER BY created_at DESC").
		WithArgs("O1").WillReturnRows(rows)

	payments, err := repo.GetByOrderID(context.Background(), "O1")

	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "payment-1", payments[0].ID)
	assert.Equal(t, domain.PaymentStatusFailed, payments[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_GetStuckPending(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewPaymentRepository(gormDB)

	rows := paymentRows("payment-stuck", "O1", 100000, "PENDING", nil)
	mock.ExpectQuery("SELECT \\* FROM `payments` WHERE status = \\? AND created_at < \\? ORDER BY created_at ASC LIMIT \\?").
		WithArgs(string(domain.PaymentStatusPending), sqlmock.AnyArg(), 100).
		WillReturnRows(rows)

	payments, err := repo.GetStuckPending(context.Background(), 20*time.Minute, 100)

	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "payment-stuck", payments[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Тесты конвертации Domain <-> Model
// =============================================================================

func TestPaymentModel_RoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	txID := "14226112"
	payment := &domain.Payment{
		ID:            "payment-1",
		OrderID:       "O1",
		Amount:        100000,
		Method:        domain.PaymentMethodVNPay,
		Status:        domain.PaymentStatusCompleted,
		TransactionID: &txID,
		PaidAt:        &now,
		ResponseData:  map[string]string{"vnp_ResponseCode": "00"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	model := paymentModelFromDomain(payment)
	assert.Equal(t, payment.ID, model.ID)
	assert.Equal(t, string(payment.Status), model.Status)
	assert.JSONEq(t, `{"vnp_ResponseCode":"00"}`, string(model.ResponseData))

	back := model.toDomain()
	assert.Equal(t, payment.ID, back.ID)
	assert.Equal(t, payment.Status, back.Status)
	assert.Equal(t, payment.ResponseData, back.ResponseData)
	require.NotNil(t, back.TransactionID)
	assert.Equal(t, txID, *back.TransactionID)
}

func TestPaymentModel_TableName(t *testing.T) {
	assert.Equal(t, "payments", PaymentModel{}.TableName())
}

// =============================================================================
// Тесты isDuplicateKeyError
// =============================================================================

func TestIsDuplicateKeyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil ошибка", nil, false},
		{"MySQL Error 1062", errors.New("Error 1062: Duplicate entry"), true},
		{"Duplicate entry в тексте", errors.New("Duplicate entry 'payment-1'"), true},
		{"GORM ErrDuplicatedKey", gorm.ErrDuplicatedKey, true},
		{"обычная ошибка", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isDuplicateKeyError(tt.err))
		})
	}
}
