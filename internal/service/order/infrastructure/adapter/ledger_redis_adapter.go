package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"ordercore/internal/pkg/redis"
)

const (
	ledgerScriptName = "ledger_enqueue"

	// 两个 key 使用同一个 hash tag，集群模式下落在同一个 slot
	ledgerDedupKey = "ledger:{order-events}:dedup"
	ledgerQueueKey = "ledger:{order-events}:queue"
)

// LedgerEvent 是账本去重的第二个维度。
type LedgerEvent string

const (
	LedgerDeliveryReward LedgerEvent = "delivery_reward"
	LedgerRefund         LedgerEvent = "refund"
)

// LedgerEntry 是推给积分/退款账本的一条待处理记录。
type LedgerEntry struct {
	OrderID  string      `json:"orderId"`
	UserID   string      `json:"userId"`
	Event    LedgerEvent `json:"event"`
	Points   int64       `json:"points,omitempty"`
	Amount   string      `json:"amount,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	QueuedAt time.Time   `json:"queuedAt"`
}

// LedgerRedisAdapter 实现了 port.Ledger。去重与入队在同一个 Lua 脚本里完成，重复调用是安全的。
type LedgerRedisAdapter struct {
	redisClient *redis.Client
	now         func() time.Time
}

func NewLedgerRedisAdapter(redisClient *redis.Client) (*LedgerRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(ledgerScriptName, ledgerScript); err != nil {
		return nil, errors.Wrap(err, "load ledger script")
	}
	return &LedgerRedisAdapter{redisClient: redisClient, now: time.Now}, nil
}

func (a *LedgerRedisAdapter) CreditDeliveryReward(ctx context.Context, orderID, userID string, points int64) (bool, error) {
	return a.enqueue(ctx, LedgerEntry{OrderID: orderID, UserID: userID, Event: LedgerDeliveryReward, Points: points})
}

func (a *LedgerRedisAdapter) QueueRefund(ctx context.Context, orderID, userID string, amount decimal.Decimal, reason string) (bool, error) {
	return a.enqueue(ctx, LedgerEntry{OrderID: orderID, UserID: userID, Event: LedgerRefund, Amount: amount.StringFixed(2), Reason: reason})
}

func (a *LedgerRedisAdapter) enqueue(ctx context.Context, entry LedgerEntry) (bool, error) {
	entry.QueuedAt = a.now().UTC()
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, errors.Wrap(err, "marshal ledger entry")
	}
	member := entry.OrderID + ":" + string(entry.Event)
	result, err := a.redisClient.RunScript(ctx, ledgerScriptName, []string{ledgerDedupKey, ledgerQueueKey}, member, payload)
	if err != nil {
		return false, errors.Wrapf(err, "enqueue %s for order %s", entry.Event, entry.OrderID)
	}
	code, ok := result.(int64)
	if !ok {
		return false, errors.Errorf("unexpected result type from ledger script: %T", result)
	}
	return code == 1, nil
}

// Pending 返回队列中尚未被账本消费的记录，供对账使用。
func (a *LedgerRedisAdapter) Pending(ctx context.Context) ([]LedgerEntry, error) {
	raw, err := a.redisClient.GetClient().LRange(ctx, ledgerQueueKey, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read ledger queue")
	}
	entries := make([]LedgerEntry, 0, len(raw))
	for _, r := range raw {
		var e LedgerEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, errors.Wrap(err, "decode ledger entry")
		}
		entries = append(entries, e)
	}
	return entries, nil
}

var ledgerScript = `
-- KEYS[1]: 已入队事件的集合，成员为 order_id:event_type
-- KEYS[2]: 待处理队列
-- ARGV[1]: order_id:event_type
-- ARGV[2]: 记录内容

if redis.call('sadd', KEYS[1], ARGV[1]) == 0 then
    return 0 -- 已经入队过
end
redis.call('rpush', KEYS[2], ARGV[2])
return 1
`
