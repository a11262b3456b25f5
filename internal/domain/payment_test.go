package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingPayment() *Payment {
	return &Payment{
		ID:      "payment-1",
		OrderID: "order-1",
		Amount:  100000,
		Method:  PaymentMethodVNPay,
		Status:  PaymentStatusPending,
	}
}

// =============================================================================
// Тесты переходов состояний
// =============================================================================

func TestPayment_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{"PENDING → COMPLETED", PaymentStatusPending, PaymentStatusCompleted, true},
		{"PENDING → FAILED", PaymentStatusPending, PaymentStatusFailed, true},
		{"COMPLETED → FAILED (возврат)", PaymentStatusCompleted, PaymentStatusFailed, true},
		{"COMPLETED → COMPLETED", PaymentStatusCompleted, PaymentStatusCompleted, false},
		{"COMPLETED → PENDING", PaymentStatusCompleted, PaymentStatusPending, false},
		{"FAILED → COMPLETED", PaymentStatusFailed, PaymentStatusCompleted, false},
		{"FAILED → PENDING", PaymentStatusFailed, PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pendingPayment()
			p.Status = tt.from

			err := p.TransitionTo(tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, p.Status)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, p.Status, "статус не должен меняться при отказе")
			}
		})
	}
}

func TestPaymentStatus_IsFinal(t *testing.T) {
	assert.False(t, PaymentStatusPending.IsFinal())
	assert.True(t, PaymentStatusCompleted.IsFinal())
	assert.True(t, PaymentStatusFailed.IsFinal())
}

// =============================================================================
// Тесты Complete / Fail / Reverse
// =============================================================================

func TestPayment_Complete(t *testing.T) {
	p := pendingPayment()
	paidAt := time.Date(2026, 8, 28, 12, 5, 0, 0, time.UTC)
	response := map[string]string{"vnp_ResponseCode": "00", "vnp_TransactionNo": "14226112"}

	err := p.Complete("14226112", paidAt, response)
	require.NoError(t, err)

	assert.Equal(t, PaymentStatusCompleted, p.Status)
	require.NotNil(t, p.TransactionID)
	assert.Equal(t, "14226112", *p.TransactionID)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, paidAt, *p.PaidAt)
	assert.Equal(t, response, p.ResponseData)
}

func TestPayment_Complete_Twice(t *testing.T) {
	p := pendingPayment()
	require.NoError(t, p.Complete("tx-1", time.Now(), nil))

	err := p.Complete("tx-2", time.Now(), nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "tx-1", *p.TransactionID, "повторное подтверждение не должно перезаписывать данные")
}

func TestPayment_Fail(t *testing.T) {
	p := pendingPayment()
	response := map[string]string{"vnp_ResponseCode": "24"}

	err := p.Fail(response)
	require.NoError(t, err)

	assert.Equal(t, PaymentStatusFailed, p.Status)
	assert.Nil(t, p.TransactionID)
	assert.Equal(t, response, p.ResponseData)
}

func TestPayment_Reverse(t *testing.T) {
	p := pendingPayment()
	require.NoError(t, p.Complete("tx-1", time.Now(), nil))

	err := p.Reverse()
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusFailed, p.Status)
}

func TestPayment_Reverse_NotRefundable(t *testing.T) {
	tests := []struct {
		name   string
		status PaymentStatus
	}{
		{"PENDING платёж", PaymentStatusPending},
		{"FAILED платёж", PaymentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pendingPayment()
			p.Status = tt.status

			err := p.Reverse()
			assert.ErrorIs(t, err, ErrNotRefundable)
			assert.Equal(t, tt.status, p.Status)
		})
	}
}

// =============================================================================
// Тесты Validate
// =============================================================================

func TestPayment_Validate(t *testing.T) {
	p := pendingPayment()
	assert.NoError(t, p.Validate())

	noOrder := pendingPayment()
	noOrder.OrderID = ""
	assert.ErrorIs(t, noOrder.Validate(), ErrInvalidOrderID)

	zeroAmount := pendingPayment()
	zeroAmount.Amount = 0
	assert.ErrorIs(t, zeroAmount.Validate(), ErrInvalidAmount)

	negativeAmount := pendingPayment()
	negativeAmount.Amount = -5
	assert.ErrorIs(t, negativeAmount.Validate(), ErrInvalidAmount)
}
