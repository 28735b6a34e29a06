package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/metrics"
	ndomain "ordercore/internal/service/notification/domain"
	"ordercore/internal/service/order/domain"
)

// FileCancellation 顾客提交取消申请。主状态不变，只把 cancellation_status 置为 requested。
func (s *OrderApplicationService) FileCancellation(ctx context.Context, actor identity.Actor, orderID, reason, comment string) (*domain.CancellationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "app.FileCancellation", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	req, o, err := s.cancellations.FileCancellation(ctx, orderID, func(o *domain.Order) (*domain.CancellationRequest, error) {
		at := s.clock()
		if err := o.RequestCancellation(actor.UserID, at); err != nil {
			return nil, err
		}
		return domain.NewCancellationRequest(uuid.NewString(), o, actor.UserID, reason, comment, at)
	})
	if err != nil {
		return nil, s.fail(ctx, span, "file_cancellation", err)
	}
	logger.Ctx(ctx).Info().Str("order_id", o.ID).Str("request_id", req.ID).Msg("cancellation requested")

	s.notify(ctx, customerEvent(o, ndomain.TypeCancellationRequested, "Cancellation requested",
		fmt.Sprintf("We received your request to cancel order %s. We will let you know once it is reviewed.", o.OrderNumber)))
	s.notifyAdmins(ctx, adminEvent(ndomain.TypeCancellationRequested, "Cancellation request",
		fmt.Sprintf("Customer %s asked to cancel order %s: %s", o.CustomerName, o.OrderNumber, req.Reason),
		req.ID, "cancellation_request", "/admin/cancellations/"+req.ID))
	s.publish(ctx, o, domain.ChangeCancellationRequested)
	return req, nil
}

// ApproveCancellation 是一次比较并交换：申请必须仍是 pending，订单必须仍在可取消的状态。
// 两个条件都在同一个事务里检查，输掉竞争的一方得到 Conflict 或 InvalidTransition。
func (s *OrderApplicationService) ApproveCancellation(ctx context.Context, actor identity.Actor, requestID string) (*domain.CancellationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "app.ApproveCancellation", trace.WithAttributes(attribute.String("request.id", requestID)))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, s.fail(ctx, span, "approve_cancellation", errors.Wrap(domain.ErrForbidden, "only admins can review cancellation requests"))
	}
	req, o, err := s.cancellations.ReviewCancellation(ctx, requestID, "cancellation request approved", func(req *domain.CancellationRequest, o *domain.Order) error {
		at := s.clock()
		if err := req.Approve(actor.UserID, at); err != nil {
			return err
		}
		return o.ApproveCancellation(at)
	})
	if err != nil {
		return nil, s.fail(ctx, span, "approve_cancellation", err)
	}
	metrics.Transitions.WithLabelValues(string(domain.StatusCancelled)).Inc()
	logger.Ctx(ctx).Info().Str("order_id", o.ID).Str("request_id", req.ID).Str("admin", actor.UserID).Msg("cancellation approved")

	s.releaseStock(ctx, o)
	if o.PaymentStatus == domain.PaymentRefundPending {
		s.queueRefund(ctx, o, o.TotalAmount, "cancellation approved")
	}
	e := customerEvent(o, ndomain.TypeCancellationApproved, "Cancellation approved",
		fmt.Sprintf("Your request to cancel order %s was approved.", o.OrderNumber))
	e.Priority = ndomain.PriorityHigh
	s.notify(ctx, e)
	s.notifyAffiliate(ctx, o, ndomain.TypeAffiliateOrderCancelled, "Referred order cancelled",
		fmt.Sprintf("Order %s placed with your code %s was cancelled.", o.OrderNumber, o.CouponCode))
	s.publish(ctx, o, domain.ChangeCancellationApproved)
	return req, nil
}

// RejectCancellation 驳回申请。cancellation_status 保留为 rejected，让顾客看到驳回原因。
func (s *OrderApplicationService) RejectCancellation(ctx context.Context, actor identity.Actor, requestID, adminNote string) (*domain.CancellationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "app.RejectCancellation", trace.WithAttributes(attribute.String("request.id", requestID)))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, s.fail(ctx, span, "reject_cancellation", errors.Wrap(domain.ErrForbidden, "only admins can review cancellation requests"))
	}
	req, o, err := s.cancellations.ReviewCancellation(ctx, requestID, "", func(req *domain.CancellationRequest, o *domain.Order) error {
		at := s.clock()
		if err := req.Reject(actor.UserID, adminNote, at); err != nil {
			return err
		}
		o.RejectCancellation(at)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, "reject_cancellation", err)
	}

	s.notify(ctx, customerEvent(o, ndomain.TypeCancellationRejected, "Cancellation rejected",
		fmt.Sprintf("Your request to cancel order %s was rejected: %s", o.OrderNumber, req.AdminNote)))
	s.publish(ctx, o, domain.ChangeCancellationRejected)
	return req, nil
}

// BulkApproveCancellations 逐个审批，返回成功和失败的汇总。
func (s *OrderApplicationService) BulkApproveCancellations(ctx context.Context, actor identity.Actor, requestIDs []string) (*BulkResult, error) {
	if !actor.IsAdmin() {
		return nil, errors.Wrap(domain.ErrForbidden, "only admins can review cancellation requests")
	}
	return runBulk(ctx, requestIDs, func(ctx context.Context, id string) error {
		_, err := s.ApproveCancellation(ctx, actor, id)
		return err
	}), nil
}
