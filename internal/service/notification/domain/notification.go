// internal/service/notification/domain/notification.go
package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"ordercore/internal/pkg/identity"
)

var (
	ErrRecipientNotFound = errors.New("notification recipient does not exist")
	ErrNotFound          = errors.New("notification not found")
	ErrForbidden         = errors.New("notification belongs to another user")
	ErrInvalidEvent      = errors.New("invalid notification event")
)

// Module 是通知所属的业务模块。
type Module string

const (
	ModuleOrder     Module = "order"
	ModuleShipping  Module = "shipping"
	ModuleInstagram Module = "instagram"
	ModuleAffiliate Module = "affiliate"
)

// Type 是封闭的事件种类集合。
type Type string

const (
	TypeOrderStatusChanged      Type = "order_status_changed"
	TypeOrderCancelled          Type = "order_cancelled"
	TypeOrderDelivered          Type = "order_delivered"
	TypeCancellationRequested   Type = "cancellation_requested"
	TypeCancellationApproved    Type = "cancellation_approved"
	TypeCancellationRejected    Type = "cancellation_rejected"
	TypeReturnRequested         Type = "return_requested"
	TypeReturnApproved          Type = "return_approved"
	TypeReturnRejected          Type = "return_rejected"
	TypeRefundCompleted         Type = "refund_completed"
	TypeShipmentUpdated         Type = "shipment_updated"
	TypeAffiliateOrderDelivered Type = "affiliate_order_delivered"
	TypeAffiliateOrderCancelled Type = "affiliate_order_cancelled"
)

var knownTypes = map[Type]struct{}{
	TypeOrderStatusChanged: {}, TypeOrderCancelled: {}, TypeOrderDelivered: {},
	TypeCancellationRequested: {}, TypeCancellationApproved: {}, TypeCancellationRejected: {},
	TypeReturnRequested: {}, TypeReturnApproved: {}, TypeReturnRejected: {}, TypeRefundCompleted: {},
	TypeShipmentUpdated: {}, TypeAffiliateOrderDelivered: {}, TypeAffiliateOrderCancelled: {},
}

func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

type Priority string

const (
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Event 是一次待投递的通知，由调用方决定何时触发。
type Event struct {
	RecipientID   string
	Role          identity.Role
	Module        Module
	Type          Type
	Title         string
	Message       string
	Priority      Priority
	ReferenceID   string
	ReferenceType string
	ActionURL     string
	ActionLabel   string
}

func (e Event) Validate() error {
	switch {
	case e.RecipientID == "":
		return errors.Wrap(ErrInvalidEvent, "recipient is required")
	case !e.Role.Valid():
		return errors.Wrapf(ErrInvalidEvent, "unknown role %q", e.Role)
	case !e.Type.Valid():
		return errors.Wrapf(ErrInvalidEvent, "unknown type %q", e.Type)
	case strings.TrimSpace(e.Title) == "":
		return errors.Wrap(ErrInvalidEvent, "title is required")
	}
	return nil
}

// Notification 创建后只允许把 status 翻转为 read，本服务不删除通知。
type Notification struct {
	ID            string
	UserID        string
	Role          identity.Role
	Module        Module
	Type          Type
	Title         string
	Message       string
	Status        Status
	Priority      Priority
	ReferenceID   string
	ReferenceType string
	ActionURL     string
	ActionLabel   string
	CreatedAt     time.Time
	ReadAt        *time.Time
}

func New(id string, e Event, at time.Time) *Notification {
	module := e.Module
	if module == "" {
		module = ModuleOrder
	}
	priority := e.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	return &Notification{
		ID:            id,
		UserID:        e.RecipientID,
		Role:          e.Role,
		Module:        module,
		Type:          e.Type,
		Title:         e.Title,
		Message:       e.Message,
		Status:        StatusUnread,
		Priority:      priority,
		ReferenceID:   e.ReferenceID,
		ReferenceType: e.ReferenceType,
		ActionURL:     e.ActionURL,
		ActionLabel:   e.ActionLabel,
		CreatedAt:     at,
	}
}
