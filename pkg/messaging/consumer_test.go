package messaging

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturo/facturo-backend/pkg/logger"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

// recordingAck records how a delivery was settled.
type recordingAck struct {
	acked, nacked, rejected bool
	requeue                 bool
}

func (a *recordingAck) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *recordingAck) Reject(_ uint64, requeue bool) error {
	a.rejected, a.requeue = true, requeue
	return nil
}

func newTestConsumer() *Consumer {
	return &Consumer{queueName: "test", handlers: map[string]MessageHandler{}, logger: logger.Nop()}
}

func delivery(t *testing.T, ack *recordingAck, event *Event, headers amqp.Table) amqp.Delivery {
	t.Helper()
	body := []byte("{")
	if event != nil {
		var err error
		body, err = json.Marshal(event)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: body, Headers: headers}
}

func TestHandleMessage_DispatchesWithTenantAndCorrelation(t *testing.T) {
	c := newTestConsumer()
	var gotTenant, gotCorrelation string
	var payload InvoiceImportedEvent
	c.RegisterHandler(EventInvoiceImported, func(ctx context.Context, e *Event) error {
		gotTenant = tenant.TenantIDOrDefault(ctx)
		gotCorrelation = CorrelationID(ctx)
		return e.UnmarshalData(&payload)
	})

	event, err := NewEvent(EventInvoiceImported, "ingest", "corr-1", InvoiceImportedEvent{Collection: "invoices", InvoiceID: "abc"})
	require.NoError(t, err)
	event.TenantID = "acme"

	ack := &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, event, nil))

	assert.True(t, ack.acked)
	assert.Equal(t, "acme", gotTenant)
	assert.Equal(t, "corr-1", gotCorrelation)
	assert.Equal(t, "abc", payload.InvoiceID)
}

func TestHandleMessage_MalformedIsRejected(t *testing.T) {
	ack := &recordingAck{}
	newTestConsumer().handleMessage(context.Background(), delivery(t, ack, nil, nil))

	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
}

func TestHandleMessage_UnknownTypeIsAcked(t *testing.T) {
	event, err := NewEvent("invoice.archived", "ingest", "", struct{}{})
	require.NoError(t, err)

	ack := &recordingAck{}
	newTestConsumer().handleMessage(context.Background(), delivery(t, ack, event, nil))
	assert.True(t, ack.acked)
}

func TestHandleMessage_FailuresRetryThenDeadLetter(t *testing.T) {
	c := newTestConsumer()
	c.RegisterHandler(EventInvoiceImported, func(context.Context, *Event) error {
		return stderrors.New("store unavailable")
	})
	var retried []int
	c.retry = func(_ context.Context, _ amqp.Delivery, attempts int) error {
		retried = append(retried, attempts)
		return nil
	}
	event, err := NewEvent(EventInvoiceImported, "ingest", "", InvoiceImportedEvent{})
	require.NoError(t, err)

	ack := &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, event, nil))
	assert.True(t, ack.acked)
	assert.Equal(t, []int{1}, retried)

	ack = &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, event, amqp.Table{AttemptsHeader: int32(2)}))
	assert.True(t, ack.acked)
	assert.Equal(t, []int{1, 3}, retried)

	ack = &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, event, amqp.Table{AttemptsHeader: int32(MaxRedeliveries)}))
	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
	assert.Len(t, retried, 2)
}

func TestHandleMessage_RetryPublishFailureRequeues(t *testing.T) {
	c := newTestConsumer()
	c.RegisterHandler(EventInvoiceImported, func(context.Context, *Event) error {
		return stderrors.New("store unavailable")
	})
	c.retry = func(context.Context, amqp.Delivery, int) error {
		return stderrors.New("channel closed")
	}
	event, err := NewEvent(EventInvoiceImported, "ingest", "", InvoiceImportedEvent{})
	require.NoError(t, err)

	ack := &recordingAck{}
	c.handleMessage(context.Background(), delivery(t, ack, event, nil))
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestAttempts(t *testing.T) {
	assert.Equal(t, 0, Attempts(amqp.Delivery{}))
	assert.Equal(t, 2, Attempts(amqp.Delivery{Headers: amqp.Table{AttemptsHeader: int64(2)}}))
	assert.Equal(t, 0, Attempts(amqp.Delivery{Headers: amqp.Table{AttemptsHeader: "x"}}))
}

func TestExchangeFor(t *testing.T) {
	assert.Equal(t, ExchangeSchemaEvents, ExchangeFor(EventFieldsDiscovered))
	assert.Equal(t, ExchangeSchemaEvents, ExchangeFor(EventFieldsReset))
	assert.Equal(t, ExchangeInvoiceEvents, ExchangeFor(EventInvoiceCreated))
	assert.Equal(t, ExchangeInvoiceEvents, ExchangeFor(EventInvoiceImported))
}
