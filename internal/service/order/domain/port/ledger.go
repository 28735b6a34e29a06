package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger 是积分/退款账本的出站端口。
// 账本按 (order_id, event_type) 去重，重复调用返回 queued=false 而不是错误。
type Ledger interface {
	CreditDeliveryReward(ctx context.Context, orderID, userID string, points int64) (queued bool, err error)
	QueueRefund(ctx context.Context, orderID, userID string, amount decimal.Decimal, reason string) (queued bool, err error)
}
