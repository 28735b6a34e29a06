package domain

import (
	"context"
	"time"

	"ordercore/internal/pkg/identity"
)

// Repository 是通知表的持久化接口。
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, id string) (*Notification, error)
	// MarkRead 只在 status='unread' 时生效，返回是否真的发生了翻转。
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, role identity.Role, at time.Time) (int64, error)
	List(ctx context.Context, filter Filter) ([]Notification, int64, error)
	CountUnread(ctx context.Context, userID string, role identity.Role) (int64, error)
}

// Directory 查询收件人名册。管理员名册在投递时枚举，而不是存储订阅组。
type Directory interface {
	RecipientExists(ctx context.Context, userID string) (bool, error)
	ActiveAdmins(ctx context.Context) ([]string, error)
}

// Publisher 把新建的通知推到实时变更流。
type Publisher interface {
	NotificationCreated(ctx context.Context, n *Notification) error
}

type Filter struct {
	UserID string
	Role   identity.Role
	Status Status
	Module Module
	Offset int
	Limit  int
}
