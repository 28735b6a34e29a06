// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/metrics"
	"ordercore/internal/service/order/domain"
	"ordercore/internal/service/order/domain/port"
)

// Deps 是应用服务的全部依赖。Feed、Inventory 和 Affiliates 可以为 nil。
type Deps struct {
	Orders        domain.OrderRepository
	Cancellations domain.CancellationRepository
	Returns       domain.ReturnRepository
	Reader        domain.OrderReader

	Notifier   port.Notifier
	Feed       port.ChangeFeed
	Ledger     port.Ledger
	Inventory  port.InventoryService
	Rewards    port.RewardPolicy
	Affiliates port.AffiliateDirectory

	RefundPolicy domain.RefundPolicy
	Tracer       trace.Tracer
	Clock        func() time.Time
}

// OrderApplicationService 编排订单状态机和申请流程。
// 守卫更新在仓储的事务里完成；通知、账本和变更流都在提交之后尽力而为。
type OrderApplicationService struct {
	orders        domain.OrderRepository
	cancellations domain.CancellationRepository
	returns       domain.ReturnRepository
	reader        domain.OrderReader

	notifier   port.Notifier
	feed       port.ChangeFeed
	ledger     port.Ledger
	inventory  port.InventoryService
	rewards    port.RewardPolicy
	affiliates port.AffiliateDirectory

	refundPolicy domain.RefundPolicy
	tracer       trace.Tracer
	now          func() time.Time
}

func NewOrderApplicationService(d Deps) (*OrderApplicationService, error) {
	if d.Orders == nil || d.Cancellations == nil || d.Returns == nil || d.Reader == nil {
		return nil, errors.New("order repositories are required")
	}
	if d.Notifier == nil || d.Ledger == nil || d.Rewards == nil || d.Tracer == nil {
		return nil, errors.New("notifier, ledger, reward policy and tracer are required")
	}
	policy := d.RefundPolicy
	if policy == "" {
		policy = domain.RefundKeepDelivered
	}
	if !policy.Valid() {
		return nil, errors.Errorf("unknown refund policy %q", policy)
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	return &OrderApplicationService{
		orders: d.Orders, cancellations: d.Cancellations, returns: d.Returns, reader: d.Reader,
		notifier: d.Notifier, feed: d.Feed, ledger: d.Ledger, inventory: d.Inventory,
		rewards: d.Rewards, affiliates: d.Affiliates,
		refundPolicy: policy, tracer: d.Tracer, now: clock,
	}, nil
}

func (s *OrderApplicationService) clock() time.Time {
	return s.now().UTC()
}

// fail 记录被拒绝的命令并原样返回错误。
func (s *OrderApplicationService) fail(ctx context.Context, span trace.Span, operation string, err error) error {
	metrics.Rejections.WithLabelValues(operation, errorClass(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, operation+" rejected")
	logger.Ctx(ctx).Info().Err(err).Str("operation", operation).Msg("order command rejected")
	return err
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	}
	return "internal"
}

// publish 把变更推到实时流，失败只记日志，看板轮询是兜底。
func (s *OrderApplicationService) publish(ctx context.Context, o *domain.Order, kind domain.ChangeKind) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, domain.NewOrderChanged(o, kind, s.clock())); err != nil {
		metrics.FeedPublishFailures.WithLabelValues("order").Inc()
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", o.ID).Str("kind", string(kind)).Msg("failed to publish order change")
	}
}

// releaseStock 释放库存是外部补偿，失败需要人工跟进，但不影响已经提交的取消。
func (s *OrderApplicationService) releaseStock(ctx context.Context, o *domain.Order) {
	if s.inventory == nil || len(o.Items) == 0 {
		return
	}
	items := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		items[it.ProductID] += it.Quantity
	}
	if err := s.inventory.ReleaseStock(ctx, o.ID, items); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", o.ID).Msg("failed to release reserved stock")
	}
}

// creditDelivery 每次进入 delivered 都调用，账本按订单去重。
func (s *OrderApplicationService) creditDelivery(ctx context.Context, o *domain.Order) {
	points, err := s.rewards.Points(ctx, o)
	if err != nil {
		metrics.LedgerCalls.WithLabelValues("delivery_reward", "error").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("order_id", o.ID).Msg("failed to compute delivery reward")
		return
	}
	queued, err := s.ledger.CreditDeliveryReward(ctx, o.ID, o.UserID, points)
	s.recordLedger(ctx, "delivery_reward", o.ID, queued, err)
}

func (s *OrderApplicationService) queueRefund(ctx context.Context, o *domain.Order, amount decimal.Decimal, reason string) {
	queued, err := s.ledger.QueueRefund(ctx, o.ID, o.UserID, amount, reason)
	s.recordLedger(ctx, "refund", o.ID, queued, err)
}

func (s *OrderApplicationService) recordLedger(ctx context.Context, event, orderID string, queued bool, err error) {
	switch {
	case err != nil:
		metrics.LedgerCalls.WithLabelValues(event, "error").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Str("event", event).Msg("ledger call failed")
	case queued:
		metrics.LedgerCalls.WithLabelValues(event, "queued").Inc()
	default:
		metrics.LedgerCalls.WithLabelValues(event, "duplicate").Inc()
	}
}
