// internal/service/order/interfaces/payment_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/mq"
	"ordercore/internal/service/order/domain"
)

const maxPaymentAttempts = 3

// PaymentRecorder 是消费者依赖的应用服务能力。
type PaymentRecorder interface {
	RecordPaymentStatus(ctx context.Context, event domain.PaymentStatusObserved) (*domain.Order, error)
}

// PaymentConsumerAdapter 监听 payment-events 主题，把上游支付结果写回订单。
// 无法处理的消息转发到死信主题后提交位点，不阻塞分区。
type PaymentConsumerAdapter struct {
	reader     mq.Reader
	topic      string
	recorder   PaymentRecorder
	deadLetter mq.Writer // 可以为 nil，此时只记日志
	backoff    time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewPaymentConsumerAdapter(reader mq.Reader, topic string, recorder PaymentRecorder, deadLetter mq.Writer) *PaymentConsumerAdapter {
	return &PaymentConsumerAdapter{
		reader:     reader,
		topic:      topic,
		recorder:   recorder,
		deadLetter: deadLetter,
		backoff:    200 * time.Millisecond,
	}
}

// Start 在后台循环拉取消息，直到 ctx 结束或调用 Stop。
func (a *PaymentConsumerAdapter) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("payment consumer started")
		for {
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("payment consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch message, retrying")
				time.Sleep(time.Second)
				continue
			}
			a.handle(ctx, msg)
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
			}
		}
	}()
}

func (a *PaymentConsumerAdapter) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if err := a.reader.Close(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to close payment reader")
	}
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("payment consumer stopped")
}

// handle 处理单条消息。只有冲突和基础设施错误会重试，其余错误直接进死信。
func (a *PaymentConsumerAdapter) handle(parent context.Context, msg kafka.Message) {
	ctx := mq.ExtractTraceContext(parent, msg)

	var event domain.PaymentStatusObserved
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		a.toDeadLetter(ctx, msg, errors.Wrap(err, "decode payment event"))
		return
	}
	if event.OrderID == "" {
		a.toDeadLetter(ctx, msg, errors.New("payment event without order id"))
		return
	}

	var err error
	for attempt := 1; attempt <= maxPaymentAttempts; attempt++ {
		if _, err = a.recorder.RecordPaymentStatus(ctx, event); err == nil {
			return
		}
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		time.Sleep(time.Duration(attempt) * a.backoff)
	}
	a.toDeadLetter(ctx, msg, err)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrForbidden):
		return false
	}
	return true
}

func (a *PaymentConsumerAdapter) toDeadLetter(ctx context.Context, msg kafka.Message, cause error) {
	logger.Ctx(ctx).Error().Err(cause).
		Str("topic", msg.Topic).
		Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).
		Msg("payment event rejected")
	if a.deadLetter == nil {
		return
	}
	if err := mq.SendToDeadLetter(ctx, a.deadLetter, msg, cause); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to forward payment event to dead letter topic")
	}
}
