package client

import (
	"context"

	"ordercore/internal/service/order/application"
	"ordercore/internal/service/order/domain"
)

// Commands 是服务端提供的写操作，HTTPBackend 实现了它。
type Commands interface {
	Transition(ctx context.Context, orderID string, target domain.Status, note string) (*application.OrderView, error)
	ConfirmDelivery(ctx context.Context, orderID string) (*application.OrderView, error)
	FileCancellation(ctx context.Context, orderID, reason, comment string) error
	ApproveCancellation(ctx context.Context, requestID string) error
	RejectCancellation(ctx context.Context, requestID, note string) error
}

// Transition 本地先把主状态改成目标状态。
func Transition(c Commands, orderID string, target domain.Status, note string) Command {
	return Command{
		OrderID: orderID,
		Optimistic: func(v *application.OrderView) {
			v.Status = target
			v.DisplayStatus = domain.DisplayStatus(target, v.CancellationStatus)
		},
		Execute: func(ctx context.Context) (*application.OrderView, error) {
			return c.Transition(ctx, orderID, target, note)
		},
	}
}

func ConfirmDelivery(c Commands, orderID string) Command {
	return Command{
		OrderID: orderID,
		Optimistic: func(v *application.OrderView) {
			v.Status = domain.StatusDelivered
			v.DisplayStatus = string(domain.StatusDelivered)
		},
		Execute: func(ctx context.Context) (*application.OrderView, error) {
			return c.ConfirmDelivery(ctx, orderID)
		},
	}
}

// FileCancellation 本地立刻显示 "取消申请中"。
func FileCancellation(c Commands, orderID, reason, comment string) Command {
	return Command{
		OrderID: orderID,
		Optimistic: func(v *application.OrderView) {
			v.CancellationStatus = domain.CancellationRequested
			v.DisplayStatus = domain.DisplayStatus(v.Status, domain.CancellationRequested)
		},
		Execute: func(ctx context.Context) (*application.OrderView, error) {
			return nil, c.FileCancellation(ctx, orderID, reason, comment)
		},
	}
}

// ApproveCancellation 审批结果以服务端为准，批准可能因为订单已经发货而失败。
func ApproveCancellation(c Commands, orderID, requestID string) Command {
	return Command{
		OrderID: orderID,
		Optimistic: func(v *application.OrderView) {
			v.Status = domain.StatusCancelled
			v.CancellationStatus = domain.CancellationApproved
			v.DisplayStatus = string(domain.StatusCancelled)
		},
		Execute: func(ctx context.Context) (*application.OrderView, error) {
			return nil, c.ApproveCancellation(ctx, requestID)
		},
	}
}

func RejectCancellation(c Commands, orderID, requestID, note string) Command {
	return Command{
		OrderID: orderID,
		Optimistic: func(v *application.OrderView) {
			v.CancellationStatus = domain.CancellationRejected
			v.DisplayStatus = string(v.Status)
		},
		Execute: func(ctx context.Context) (*application.OrderView, error) {
			return nil, c.RejectCancellation(ctx, requestID, note)
		},
	}
}
