// internal/service/order/interfaces/dlt_handler.go
package interfaces

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"

	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/mq"
)

// DltConsumerAdapter 监听支付死信主题并记录日志，供人工排查。
type DltConsumerAdapter struct {
	reader mq.Reader
	topic  string
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewDltConsumerAdapter(reader mq.Reader, topic string) *DltConsumerAdapter {
	return &DltConsumerAdapter{reader: reader, topic: topic}
}

func (a *DltConsumerAdapter) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("dead letter consumer started")
		for {
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			logDeadLetter(ctx, msg)
			// 死信只记录，记录即视为处理完成
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("failed to commit dead letter")
			}
		}
	}()
}

func (a *DltConsumerAdapter) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	_ = a.reader.Close()
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("dead letter consumer stopped")
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	headers := mq.HeaderMap(msg)
	logger.Ctx(mq.ExtractTraceContext(ctx, msg)).Error().
		Str("original_topic", headers[mq.HeaderOriginalTopic]).
		Str("original_partition", headers[mq.HeaderOriginalPartition]).
		Str("original_offset", headers[mq.HeaderOriginalOffset]).
		Str("error_message", headers[mq.HeaderErrorMessage]).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("dead letter payment event")
}
