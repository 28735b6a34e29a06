package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/metrics"
	ndomain "ordercore/internal/service/notification/domain"
	"ordercore/internal/service/order/domain"
)

// FileReturn 顾客对已送达的订单发起退货。每个订单只退一次，被驳回后才能重新提交。
func (s *OrderApplicationService) FileReturn(ctx context.Context, actor identity.Actor, orderID, reason string) (*domain.Return, error) {
	ctx, span := s.tracer.Start(ctx, "app.FileReturn", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	ret, o, err := s.returns.FileReturn(ctx, orderID, func(o *domain.Order) (*domain.Return, error) {
		if err := o.CanFileReturn(actor.UserID); err != nil {
			return nil, err
		}
		return domain.NewReturn(uuid.NewString(), o, actor.UserID, reason, s.clock())
	})
	if err != nil {
		return nil, s.fail(ctx, span, "file_return", err)
	}

	s.notify(ctx, customerEvent(o, ndomain.TypeReturnRequested, "Return requested",
		fmt.Sprintf("We received your return request for order %s.", o.OrderNumber)))
	s.notifyAdmins(ctx, adminEvent(ndomain.TypeReturnRequested, "Return request",
		fmt.Sprintf("Customer %s asked to return order %s: %s", o.CustomerName, o.OrderNumber, ret.Reason),
		ret.ID, "return", "/admin/returns/"+ret.ID))
	s.publish(ctx, o, domain.ChangeReturnRequested)
	return ret, nil
}

// ApproveReturn amount 为空时按订单总额退款。退款在这里排入账本，完成后再调用 CompleteRefund。
func (s *OrderApplicationService) ApproveReturn(ctx context.Context, actor identity.Actor, returnID string, amount *decimal.Decimal) (*domain.Return, error) {
	ctx, span := s.tracer.Start(ctx, "app.ApproveReturn", trace.WithAttributes(attribute.String("return.id", returnID)))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, s.fail(ctx, span, "approve_return", errors.Wrap(domain.ErrForbidden, "only admins can review returns"))
	}
	ret, o, err := s.returns.ReviewReturn(ctx, returnID, "", func(r *domain.Return, o *domain.Order) error {
		at := s.clock()
		if err := r.Approve(actor.UserID, amount, o.TotalAmount, at); err != nil {
			return err
		}
		o.MarkRefundPending(at)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "approve_return", err)
	}

	s.queueRefund(ctx, o, *ret.RefundAmount, "return approved")
	s.notify(ctx, customerEvent(o, ndomain.TypeReturnApproved, "Return approved",
		fmt.Sprintf("Your return for order %s was approved. A refund of %s is on its way.", o.OrderNumber, ret.RefundAmount.StringFixed(2))))
	s.publish(ctx, o, domain.ChangeReturnReviewed)
	return ret, nil
}

func (s *OrderApplicationService) RejectReturn(ctx context.Context, actor identity.Actor, returnID, note string) (*domain.Return, error) {
	ctx, span := s.tracer.Start(ctx, "app.RejectReturn", trace.WithAttributes(attribute.String("return.id", returnID)))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, s.fail(ctx, span, "reject_return", errors.Wrap(domain.ErrForbidden, "only admins can review returns"))
	}
	ret, o, err := s.returns.ReviewReturn(ctx, returnID, "", func(r *domain.Return, o *domain.Order) error {
		return r.Reject(actor.UserID, note, s.clock())
	})
	if err != nil {
		return nil, s.fail(ctx, span, "reject_return", err)
	}

	s.notify(ctx, customerEvent(o, ndomain.TypeReturnRejected, "Return rejected",
		fmt.Sprintf("Your return for order %s was rejected: %s", o.OrderNumber, ret.AdminNotes)))
	s.publish(ctx, o, domain.ChangeReturnReviewed)
	return ret, nil
}

// CompleteRefund 标记退款完成。refund policy 为 mark_returned 时订单在同一事务内进入 returned。
func (s *OrderApplicationService) CompleteRefund(ctx context.Context, actor identity.Actor, returnID string) (*domain.Return, error) {
	ctx, span := s.tracer.Start(ctx, "app.CompleteRefund", trace.WithAttributes(
		attribute.String("return.id", returnID),
		attribute.String("refund.policy", string(s.refundPolicy)),
	))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, s.fail(ctx, span, "complete_refund", errors.Wrap(domain.ErrForbidden, "only admins can complete refunds"))
	}
	var advanced bool
	ret, o, err := s.returns.ReviewReturn(ctx, returnID, "refund completed", func(r *domain.Return, o *domain.Order) error {
		at := s.clock()
		if err := r.CompleteRefund(at); err != nil {
			return err
		}
		o.MarkRefunded(at)
		// 管理员可能已经手动把订单转成 returned
		if s.refundPolicy == domain.RefundMarkReturned && o.Status != domain.StatusReturned {
			advanced = true
			return o.Advance(domain.StatusReturned, at)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "complete_refund", err)
	}
	if advanced {
		metrics.Transitions.WithLabelValues(string(domain.StatusReturned)).Inc()
	}

	s.notify(ctx, customerEvent(o, ndomain.TypeRefundCompleted, "Refund completed",
		fmt.Sprintf("The refund of %s for order %s has been completed.", ret.RefundAmount.StringFixed(2), o.OrderNumber)))
	s.publish(ctx, o, domain.ChangeRefundCompleted)
	return ret, nil
}
