// cmd/feed-gateway/main.go
package main

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ordercore/internal/pkg/bootstrap"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/mq"
	"ordercore/internal/service/realtime"
)

const serviceName = "feed-gateway"

// feed-gateway 消费变更流，通过 WebSocket 推给在线的看板。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8088,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) (func(ctx context.Context), error) {
			kafkaCfg := appCtx.Config.Infra.Kafka
			reader := mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.ChangeFeedTopic, kafkaCfg.FeedGroupID)
			hub := realtime.NewHub()

			ctx, cancel := context.WithCancel(context.Background())
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return hub.Run(gctx) })
			g.Go(func() error { return realtime.Consume(gctx, reader, hub) })

			appCtx.Mux.HandleFunc("GET /ws", realtime.ServeWs(gctx, hub))

			return func(shutdownCtx context.Context) {
				cancel()
				if err := g.Wait(); err != nil {
					logger.Ctx(shutdownCtx).Error().Err(err).Msg("feed gateway stopped with error")
				}
				_ = reader.Close()
			}, nil
		},
	})
}
