package outbox

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentRecord(t *testing.T) {
	record, err := NewPaymentRecord(EventPaymentCompleted, "payment.events", &PaymentEvent{
		PaymentID:     "payment-1",
		OrderID:       "O1",
		Amount:        100000,
		Method:        "VNPAY",
		Status:        "COMPLETED",
		TransactionID: "14226112",
		ResponseCode:  "00",
	})
	require.NoError(t, err)

	_, err = uuid.Parse(record.ID)
	assert.NoError(t, err, "ID записи — валидный UUID")

	assert.Equal(t, AggregatePayment, record.AggregateType)
	assert.Equal(t, "payment-1", record.AggregateID)
	assert.Equal(t, EventPaymentCompleted, record.EventType)
	assert.Equal(t, "payment.events", record.Topic)
	// Ключ сообщения — order_id: все события заказа попадают в одну партицию
	assert.Equal(t, "O1", record.MessageKey)

	var event PaymentEvent
	require.NoError(t, json.Unmarshal(record.Payload, &event))
	assert.Equal(t, EventPaymentCompleted, event.EventType)
	assert.Equal(t, "payment-1", event.PaymentID)
	assert.Equal(t, int64(100000), event.Amount)
	assert.Equal(t, "14226112", event.TransactionID)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestRecord_HeadersJSON(t *testing.T) {
	record := &Record{Headers: map[string]string{"trace_id": "trace-1"}}

	data, err := record.HeadersJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"trace_id":"trace-1"}`, string(data))

	restored := &Record{}
	require.NoError(t, restored.SetHeadersFromJSON(data))
	assert.Equal(t, record.Headers, restored.Headers)
}

func TestRecord_HeadersJSON_Nil(t *testing.T) {
	record := &Record{}

	data, err := record.HeadersJSON()
	require.NoError(t, err)
	assert.Nil(t, data)

	assert.NoError(t, record.SetHeadersFromJSON(nil))
	assert.Nil(t, record.Headers)
}
