package adapter

import (
	"context"

	"ordercore/internal/pkg/feed"
	"ordercore/internal/service/order/domain"
	"ordercore/internal/tracing"
)

// ChangeFeedKafkaAdapter 实现了 port.ChangeFeed，订单变更同时推给顾客本人和所有在线管理员。
type ChangeFeedKafkaAdapter struct {
	publisher *feed.Publisher
}

func NewChangeFeedKafkaAdapter(publisher *feed.Publisher) *ChangeFeedKafkaAdapter {
	return &ChangeFeedKafkaAdapter{publisher: publisher}
}

func (a *ChangeFeedKafkaAdapter) Publish(ctx context.Context, event domain.OrderChanged) error {
	event.TraceID = tracing.TraceID(ctx)
	env, err := feed.NewEnvelope(feed.KindOrder, event.OrderID, event, event.OccurredAt)
	if err != nil {
		return err
	}
	env.UserIDs = []string{event.UserID}
	env.Admins = true
	return a.publisher.Publish(ctx, env)
}
