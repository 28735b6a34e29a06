package mq_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercore/internal/pkg/mq"
	"ordercore/internal/pkg/mq/mqtest"
)

func TestSendToDeadLetter_KeepsPayloadAndRecordsOrigin(t *testing.T) {
	w := &mqtest.Writer{}
	msg := kafka.Message{
		Topic:     "payment-events",
		Partition: 2,
		Offset:    41,
		Key:       []byte("o-1"),
		Value:     []byte(`{"orderId":"o-1"}`),
		Headers:   []kafka.Header{{Key: "traceparent", Value: []byte("00-abc-def-01")}},
	}
	require.NoError(t, mq.SendToDeadLetter(context.Background(), w, msg, errors.New("order gone")))

	sent := w.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, msg.Value, sent[0].Value)
	assert.Equal(t, msg.Key, sent[0].Key)

	headers := mq.HeaderMap(sent[0])
	assert.Equal(t, "payment-events", headers[mq.HeaderOriginalTopic])
	assert.Equal(t, "2", headers[mq.HeaderOriginalPartition])
	assert.Equal(t, "41", headers[mq.HeaderOriginalOffset])
	assert.Equal(t, "order gone", headers[mq.HeaderErrorMessage])
	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
}

func TestKafkaHeaderCarrier(t *testing.T) {
	var c mq.KafkaHeaderCarrier
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "3")
	assert.Equal(t, "3", c.Get("a"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"a", "b"}, c.Keys())
}
