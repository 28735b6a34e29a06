// cmd/order-service/main.go
package main

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"ordercore/internal/pkg/bootstrap"
	"ordercore/internal/pkg/feed"
	"ordercore/internal/pkg/httpclient"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/mq"
	"ordercore/internal/pkg/redis"
	napp "ordercore/internal/service/notification/application"
	ninfra "ordercore/internal/service/notification/infrastructure"
	nhttp "ordercore/internal/service/notification/interfaces"
	"ordercore/internal/service/order/application"
	"ordercore/internal/service/order/domain"
	"ordercore/internal/service/order/infrastructure"
	"ordercore/internal/service/order/infrastructure/adapter"
	"ordercore/internal/service/order/infrastructure/rule"
	"ordercore/internal/service/order/interfaces"
)

const serviceName = "order-service"

// main 是组装根：创建所有依赖，交给 bootstrap 启动。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             8081,
		RegisterHandlers: wire,
	})
}

func wire(appCtx bootstrap.AppCtx) (func(ctx context.Context), error) {
	cfg := appCtx.Config
	tracer := otel.Tracer(serviceName)

	db, err := infrastructure.OpenMySQL(cfg.Infra.MySQL.DSN())
	if err != nil {
		return nil, err
	}
	if err := infrastructure.AutoMigrate(db, false); err != nil {
		return nil, err
	}
	if err := ninfra.AutoMigrate(db, false); err != nil {
		return nil, err
	}

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password)
	if err != nil {
		return nil, err
	}
	ledger, err := adapter.NewLedgerRedisAdapter(redisClient)
	if err != nil {
		return nil, err
	}
	rewards, err := rule.NewCELRewardPolicy(cfg.App.Loyalty.RewardExpression)
	if err != nil {
		return nil, err
	}

	brokers := cfg.Infra.Kafka.Brokers
	feedWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.ChangeFeedTopic)
	dltWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.PaymentDLTTopic)
	publisher := feed.NewPublisher(feedWriter)

	var resolver httpclient.Resolver
	if appCtx.Nacos != nil {
		resolver = appCtx.Nacos
	}
	inventory := adapter.NewInventoryHTTPAdapter(httpclient.NewClient(tracer, resolver), cfg.Infra.Services.Inventory)

	dispatcher := napp.NewDispatcher(
		ninfra.NewGormNotificationRepository(db),
		ninfra.NewGormDirectory(db),
		ninfra.NewFeedPublisher(publisher),
		otel.Tracer("notification"),
	)

	orders := infrastructure.NewGormOrderRepository(db)
	svc, err := application.NewOrderApplicationService(application.Deps{
		Orders:        orders,
		Cancellations: orders,
		Returns:       orders,
		Reader:        orders,
		Notifier:      dispatcher,
		Feed:          adapter.NewChangeFeedKafkaAdapter(publisher),
		Ledger:        ledger,
		Inventory:     inventory,
		Rewards:       rewards,
		Affiliates:    adapter.NewGormAffiliateDirectory(db),
		RefundPolicy:  domain.RefundPolicy(cfg.App.Returns.RefundPolicy),
		Tracer:        tracer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build order service")
	}

	interfaces.NewOrderHandler(svc).RegisterRoutes(appCtx.Mux)
	nhttp.NewNotificationHandler(dispatcher).RegisterRoutes(appCtx.Mux)

	ctx, cancel := context.WithCancel(context.Background())
	payments := interfaces.NewPaymentConsumerAdapter(
		mq.NewKafkaReader(brokers, cfg.Infra.Kafka.PaymentTopic, cfg.Infra.Kafka.PaymentGroupID),
		cfg.Infra.Kafka.PaymentTopic, svc, dltWriter,
	)
	payments.Start(ctx)
	deadLetters := interfaces.NewDltConsumerAdapter(
		mq.NewKafkaReader(brokers, cfg.Infra.Kafka.PaymentDLTTopic, cfg.Infra.Kafka.PaymentGroupID+"-dlt"),
		cfg.Infra.Kafka.PaymentDLTTopic,
	)
	deadLetters.Start(ctx)

	return func(shutdownCtx context.Context) {
		cancel()
		payments.Stop(shutdownCtx)
		deadLetters.Stop(shutdownCtx)
		log := logger.Ctx(shutdownCtx)
		if err := feedWriter.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close change feed writer")
		}
		if err := dltWriter.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close dead letter writer")
		}
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}
