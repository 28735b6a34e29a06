package port

import (
	"context"

	ndomain "ordercore/internal/service/notification/domain"
)

// Notifier 是通知分发器的出站端口。
// 调用方在订单事务提交后调用它，失败只记录日志，不回滚订单变更。
type Notifier interface {
	Dispatch(ctx context.Context, event ndomain.Event) (*ndomain.Notification, error)

	// BroadcastAdmins 在投递时枚举当前活跃管理员，为每人生成一条通知，返回生成条数。
	BroadcastAdmins(ctx context.Context, event ndomain.Event) (int, error)
}
