package application

import (
	"context"
	"fmt"
	"strings"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/metrics"
	ndomain "ordercore/internal/service/notification/domain"
	"ordercore/internal/service/order/domain"
)

// 通知都在订单事务提交之后发出。失败只记日志和指标，不会回滚订单。

func (s *OrderApplicationService) notify(ctx context.Context, e ndomain.Event) {
	if _, err := s.notifier.Dispatch(ctx, e); err != nil {
		s.notifyFailed(ctx, e, err)
	}
}

func (s *OrderApplicationService) notifyAdmins(ctx context.Context, e ndomain.Event) {
	if _, err := s.notifier.BroadcastAdmins(ctx, e); err != nil {
		s.notifyFailed(ctx, e, err)
	}
}

func (s *OrderApplicationService) notifyFailed(ctx context.Context, e ndomain.Event, err error) {
	metrics.NotificationFailures.WithLabelValues(string(e.Type)).Inc()
	logger.Ctx(ctx).Warn().Err(err).
		Str("type", string(e.Type)).
		Str("recipient", e.RecipientID).
		Str("reference", e.ReferenceID).
		Msg("notification dispatch failed, discarded")
}

// notifyAffiliate 优惠码关联了推广者时才发。
func (s *OrderApplicationService) notifyAffiliate(ctx context.Context, o *domain.Order, typ ndomain.Type, title, message string) {
	if s.affiliates == nil || o.CouponCode == "" {
		return
	}
	affiliateID, found, err := s.affiliates.AffiliateForCoupon(ctx, o.CouponCode)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("coupon", o.CouponCode).Msg("affiliate lookup failed")
		return
	}
	if !found {
		return
	}
	s.notify(ctx, ndomain.Event{
		RecipientID:   affiliateID,
		Role:          identity.RoleAffiliate,
		Module:        ndomain.ModuleAffiliate,
		Type:          typ,
		Title:         title,
		Message:       message,
		Priority:      ndomain.PriorityMedium,
		ReferenceID:   o.ID,
		ReferenceType: "order",
	})
}

func customerEvent(o *domain.Order, typ ndomain.Type, title, message string) ndomain.Event {
	return ndomain.Event{
		RecipientID:   o.UserID,
		Role:          identity.RoleUser,
		Module:        ndomain.ModuleOrder,
		Type:          typ,
		Title:         title,
		Message:       message,
		Priority:      ndomain.PriorityMedium,
		ReferenceID:   o.ID,
		ReferenceType: "order",
		ActionURL:     "/orders/" + o.ID,
		ActionLabel:   "View order",
	}
}

func adminEvent(typ ndomain.Type, title, message, refID, refType, url string) ndomain.Event {
	return ndomain.Event{
		Role:          identity.RoleAdmin,
		Module:        ndomain.ModuleOrder,
		Type:          typ,
		Title:         title,
		Message:       message,
		Priority:      ndomain.PriorityHigh,
		ReferenceID:   refID,
		ReferenceType: refType,
		ActionURL:     url,
		ActionLabel:   "Review",
	}
}

// statusLabel 把 out_for_delivery 变成 "out for delivery"。
func statusLabel(s domain.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// notifyTransition 对应一次主状态变化的全部通知。
func (s *OrderApplicationService) notifyTransition(ctx context.Context, o *domain.Order, note string) {
	switch o.Status {
	case domain.StatusCancelled:
		msg := fmt.Sprintf("Your order %s has been cancelled.", o.OrderNumber)
		if note != "" {
			msg += " " + note
		}
		e := customerEvent(o, ndomain.TypeOrderCancelled, "Order cancelled", msg)
		e.Priority = ndomain.PriorityHigh
		s.notify(ctx, e)
		s.notifyAdmins(ctx, adminEvent(ndomain.TypeOrderCancelled, "Order cancelled",
			fmt.Sprintf("Order %s was cancelled.", o.OrderNumber), o.ID, "order", "/admin/orders/"+o.ID))
		s.notifyAffiliate(ctx, o, ndomain.TypeAffiliateOrderCancelled, "Referred order cancelled",
			fmt.Sprintf("Order %s placed with your code %s was cancelled.", o.OrderNumber, o.CouponCode))
	case domain.StatusDelivered:
		s.notify(ctx, customerEvent(o, ndomain.TypeOrderDelivered, "Order delivered",
			fmt.Sprintf("Your order %s has been delivered.", o.OrderNumber)))
		s.notifyAffiliate(ctx, o, ndomain.TypeAffiliateOrderDelivered, "Referred order delivered",
			fmt.Sprintf("Order %s placed with your code %s was delivered.", o.OrderNumber, o.CouponCode))
	default:
		e := customerEvent(o, ndomain.TypeOrderStatusChanged, "Order "+statusLabel(o.Status),
			fmt.Sprintf("Your order %s is now %s.", o.OrderNumber, statusLabel(o.Status)))
		if o.Status == domain.StatusShipped || o.Status == domain.StatusOutForDelivery {
			e.Module = ndomain.ModuleShipping
		}
		s.notify(ctx, e)
	}
}
