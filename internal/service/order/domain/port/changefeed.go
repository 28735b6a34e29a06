package port

import (
	"context"

	"ordercore/internal/service/order/domain"
)

// ChangeFeed 把已接受的写入推给看板。推送允许丢失。
type ChangeFeed interface {
	Publish(ctx context.Context, event domain.OrderChanged) error
}
