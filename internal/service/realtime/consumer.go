package realtime

import (
	"context"
	"time"

	"ordercore/internal/pkg/feed"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/mq"
)

// Consume 从变更流主题读取信封并交给 Hub，直到 ctx 结束。
// 网关是实时通道，不需要补发，解析失败的消息直接跳过。
func Consume(ctx context.Context, reader mq.Reader, hub *Hub) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not fetch feed message, retrying")
			time.Sleep(time.Second)
			continue
		}
		msgCtx := mq.ExtractTraceContext(ctx, msg)
		if env, err := feed.Decode(msg.Value); err != nil {
			logger.Ctx(msgCtx).Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed feed message")
		} else {
			hub.Publish(ctx, env)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to commit feed message")
		}
	}
}
