package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/metrics"
	ndomain "ordercore/internal/service/notification/domain"
	"ordercore/internal/service/order/domain"
)

// Transition 是管理员推进订单主状态的入口。
func (s *OrderApplicationService) Transition(ctx context.Context, actor identity.Actor, orderID string, target domain.Status, note string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.Transition", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, s.fail(ctx, span, "transition", errors.Wrap(domain.ErrForbidden, "only admins can change order status"))
	}
	o, err := s.orders.Update(ctx, orderID, note, func(o *domain.Order) error {
		return o.Advance(target, s.clock())
	})
	if err != nil {
		return nil, s.fail(ctx, span, "transition", err)
	}
	metrics.Transitions.WithLabelValues(string(target)).Inc()
	logger.Ctx(ctx).Info().Str("order_id", o.ID).Str("status", string(o.Status)).Str("admin", actor.UserID).Msg("order status changed")

	s.afterStatusChange(ctx, o, note)
	return o, nil
}

// afterStatusChange 是主状态变化提交后的副作用。
func (s *OrderApplicationService) afterStatusChange(ctx context.Context, o *domain.Order, note string) {
	switch o.Status {
	case domain.StatusCancelled:
		s.releaseStock(ctx, o)
		if o.PaymentStatus == domain.PaymentRefundPending {
			s.queueRefund(ctx, o, o.TotalAmount, "order cancelled")
		}
	case domain.StatusDelivered:
		s.creditDelivery(ctx, o)
	}
	s.notifyTransition(ctx, o, note)
	s.publish(ctx, o, domain.ChangeStatus)
}

// ConfirmDelivery 由顾客确认收货。非本人调用一律 Forbidden，与订单状态无关。
func (s *OrderApplicationService) ConfirmDelivery(ctx context.Context, actor identity.Actor, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmDelivery", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.orders.Update(ctx, orderID, "delivery confirmed by customer", func(o *domain.Order) error {
		return o.ConfirmDelivery(actor.UserID, s.clock())
	})
	if err != nil {
		return nil, s.fail(ctx, span, "confirm_delivery", err)
	}
	metrics.Transitions.WithLabelValues(string(domain.StatusDelivered)).Inc()
	s.afterStatusChange(ctx, o, "")
	return o, nil
}

// AssignShipment 登记承运商和运单号。
func (s *OrderApplicationService) AssignShipment(ctx context.Context, actor identity.Actor, orderID, carrier, trackingNumber string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.AssignShipment", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, s.fail(ctx, span, "assign_shipment", errors.Wrap(domain.ErrForbidden, "only admins can assign shipments"))
	}
	o, err := s.orders.Update(ctx, orderID, "", func(o *domain.Order) error {
		return o.AssignShipment(carrier, trackingNumber, s.clock())
	})
	if err != nil {
		return nil, s.fail(ctx, span, "assign_shipment", err)
	}

	e := customerEvent(o, ndomain.TypeShipmentUpdated, "Shipment updated",
		fmt.Sprintf("Your order %s ships with %s, tracking number %s.", o.OrderNumber, o.Shipment.Carrier, o.Shipment.TrackingNumber))
	e.Module = ndomain.ModuleShipping
	s.notify(ctx, e)
	s.publish(ctx, o, domain.ChangeShipment)
	return o, nil
}

// RecordPaymentStatus 记录上游支付系统观察到的支付状态，可能来自 HTTP 回调或 payment-events 主题。
func (s *OrderApplicationService) RecordPaymentStatus(ctx context.Context, event domain.PaymentStatusObserved) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.RecordPaymentStatus", trace.WithAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("payment.status", string(event.Status)),
	))
	defer span.End()

	at := event.ObservedAt
	if at.IsZero() {
		at = s.clock()
	}
	var changed, refundDue bool
	o, err := s.orders.Update(ctx, event.OrderID, "", func(o *domain.Order) error {
		var err error
		changed, refundDue, err = o.RecordPayment(event.Status, at.UTC())
		if changed && event.Method != "" {
			o.PaymentMethod = event.Method
		}
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, "record_payment", err)
	}
	if !changed {
		logger.Ctx(ctx).Info().Str("order_id", o.ID).Str("payment_status", string(o.PaymentStatus)).
			Str("ignored", string(event.Status)).Msg("stale payment event ignored")
		return o, nil
	}
	if refundDue {
		s.queueRefund(ctx, o, o.TotalAmount, "payment captured after cancellation")
	}
	s.publish(ctx, o, domain.ChangePayment)
	return o, nil
}

// BulkTransition 逐个推进，单个失败不影响其他订单。
func (s *OrderApplicationService) BulkTransition(ctx context.Context, actor identity.Actor, orderIDs []string, target domain.Status, note string) (*BulkResult, error) {
	if !actor.IsAdmin() {
		return nil, errors.Wrap(domain.ErrForbidden, "only admins can change order status")
	}
	return runBulk(ctx, orderIDs, func(ctx context.Context, id string) error {
		_, err := s.Transition(ctx, actor, id, target, note)
		return err
	}), nil
}
