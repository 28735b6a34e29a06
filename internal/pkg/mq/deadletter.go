package mq

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// 死信消息头，记录原始位置和失败原因。
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderErrorMessage      = "x-error-message"
)

// Reader 是 *kafka.Reader 的最小子集。
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SendToDeadLetter 把无法处理的消息原样转发到死信主题，保留原有的追踪头。
func SendToDeadLetter(ctx context.Context, w Writer, msg kafka.Message, cause error) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderErrorMessage, Value: []byte(cause.Error())},
	)
	return w.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers})
}

// HeaderMap 把消息头转成 map，同名头取最后一个。
func HeaderMap(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
