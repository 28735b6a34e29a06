package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercore/internal/pkg/mq"
	"ordercore/internal/pkg/mq/mqtest"
	"ordercore/internal/service/order/domain"
)

// scriptedRecorder 按订单返回预设的错误序列，序列用完后成功。
type scriptedRecorder struct {
	mu      sync.Mutex
	script  map[string][]error
	calls   map[string]int
	applied []domain.PaymentStatusObserved
}

func (r *scriptedRecorder) RecordPaymentStatus(_ context.Context, e domain.PaymentStatusObserved) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	n := r.calls[e.OrderID]
	r.calls[e.OrderID]++
	if errs := r.script[e.OrderID]; n < len(errs) {
		return nil, errs[n]
	}
	r.applied = append(r.applied, e)
	return &domain.Order{ID: e.OrderID, PaymentStatus: e.Status}, nil
}

func (r *scriptedRecorder) callCount(orderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[orderID]
}

func paymentMessage(t *testing.T, offset int64, e domain.PaymentStatusObserved) kafka.Message {
	t.Helper()
	body, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Topic: "payment-events", Offset: offset, Key: []byte(e.OrderID), Value: body}
}

func TestPaymentConsumer(t *testing.T) {
	transient := errors.New("database is locked")
	recorder := &scriptedRecorder{script: map[string][]error{
		"o-retry":    {transient, transient},
		"o-gone":     {errors.Wrap(domain.ErrNotFound, "order o-gone")},
		"o-hopeless": {transient, transient, transient},
	}}
	reader := mqtest.NewReader(
		paymentMessage(t, 1, domain.PaymentStatusObserved{OrderID: "o-ok", Status: domain.PaymentPaid}),
		paymentMessage(t, 2, domain.PaymentStatusObserved{OrderID: "o-retry", Status: domain.PaymentPaid}),
		paymentMessage(t, 3, domain.PaymentStatusObserved{OrderID: "o-gone", Status: domain.PaymentPaid}),
		kafka.Message{Topic: "payment-events", Offset: 4, Value: []byte("{not json")},
		paymentMessage(t, 5, domain.PaymentStatusObserved{Status: domain.PaymentPaid}),
		paymentMessage(t, 6, domain.PaymentStatusObserved{OrderID: "o-hopeless", Status: domain.PaymentFailed}),
	)
	dlt := &mqtest.Writer{}

	consumer := NewPaymentConsumerAdapter(reader, "payment-events", recorder, dlt)
	consumer.backoff = time.Millisecond
	consumer.Start(context.Background())

	require.Eventually(t, func() bool { return len(reader.Committed()) == 6 }, 5*time.Second, 10*time.Millisecond)
	consumer.Stop(context.Background())
	assert.True(t, reader.Closed())

	assert.Equal(t, 3, recorder.callCount("o-retry"), "transient errors are retried")
	assert.Equal(t, 1, recorder.callCount("o-gone"), "missing orders are not retried")
	assert.Equal(t, maxPaymentAttempts, recorder.callCount("o-hopeless"))
	require.Len(t, recorder.applied, 2)

	dead := dlt.Messages()
	require.Len(t, dead, 4)
	offsets := make([]string, 0, len(dead))
	for _, m := range dead {
		h := mq.HeaderMap(m)
		assert.Equal(t, "payment-events", h[mq.HeaderOriginalTopic])
		assert.NotEmpty(t, h[mq.HeaderErrorMessage])
		offsets = append(offsets, h[mq.HeaderOriginalOffset])
	}
	assert.Equal(t, []string{"3", "4", "5", "6"}, offsets)
}

func TestDltConsumerCommitsEverything(t *testing.T) {
	reader := mqtest.NewReader(
		kafka.Message{Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: mq.HeaderErrorMessage, Value: []byte("boom")}}},
		kafka.Message{Offset: 2, Value: []byte("b")},
	)
	consumer := NewDltConsumerAdapter(reader, "payment-events-dlt")
	consumer.Start(context.Background())
	require.Eventually(t, func() bool { return len(reader.Committed()) == 2 }, 5*time.Second, 10*time.Millisecond)
	consumer.Stop(context.Background())
	assert.True(t, reader.Closed())
}
