// internal/service/order/domain/request.go
package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const maxReasonLength = 500

// CancellationReasons 是前端下拉框提供的常见原因，reason 本身仍接受自由文本。
var CancellationReasons = []string{
	"Changed my mind",
	"Found a better price",
	"Ordered by mistake",
	"Delivery takes too long",
	"Other",
}

// ReturnReasons 同上，用于退货申请。
var ReturnReasons = []string{
	"Size/fit issue",
	"Damaged or defective",
	"Not as described",
	"Wrong item received",
	"Other",
}

// RequestStatus 是取消申请的二级状态机：pending -> approved | rejected，两端都是终态。
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// CancellationRequest 是顾客发起、管理员审批的取消申请。
// PreviousOrderStatus 是提交时的主状态快照，驳回时用于核对订单未被回滚。
type CancellationRequest struct {
	ID                  string
	OrderID             string
	UserID              string
	Reason              string
	Comment             string
	Status              RequestStatus
	AdminNote           string
	PreviousOrderStatus Status
	CreatedAt           time.Time
	ReviewedAt          *time.Time
	ReviewedBy          string
}

// NewCancellationRequest 创建申请并快照订单当前主状态。
func NewCancellationRequest(id string, order *Order, userID, reason, comment string, at time.Time) (*CancellationRequest, error) {
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}
	return &CancellationRequest{
		ID:                  id,
		OrderID:             order.ID,
		UserID:              userID,
		Reason:              reason,
		Comment:             strings.TrimSpace(comment),
		Status:              RequestPending,
		PreviousOrderStatus: order.Status,
		CreatedAt:           at,
	}, nil
}

func (r *CancellationRequest) Approve(adminID string, at time.Time) error {
	if r.Status != RequestPending {
		return errors.Wrapf(ErrConflict, "cancellation request %s is already %s", r.ID, r.Status)
	}
	r.Status = RequestApproved
	r.ReviewedAt = &at
	r.ReviewedBy = adminID
	return nil
}

func (r *CancellationRequest) Reject(adminID, note string, at time.Time) error {
	if r.Status != RequestPending {
		return errors.Wrapf(ErrConflict, "cancellation request %s is already %s", r.ID, r.Status)
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return errors.Wrap(ErrValidation, "a rejection note is required")
	}
	r.Status = RequestRejected
	r.AdminNote = note
	r.ReviewedAt = &at
	r.ReviewedBy = adminID
	return nil
}

// ReturnStatus 是退货记录的生命周期。
type ReturnStatus string

const (
	ReturnPending         ReturnStatus = "pending"
	ReturnApproved        ReturnStatus = "approved"
	ReturnRejected        ReturnStatus = "rejected"
	ReturnRefundCompleted ReturnStatus = "refund_completed"
)

// RefundPolicy 决定退款完成后订单主状态是否进入 returned。
type RefundPolicy string

const (
	RefundKeepDelivered RefundPolicy = "keep_delivered"
	RefundMarkReturned  RefundPolicy = "mark_returned"
)

func (p RefundPolicy) Valid() bool {
	return p == RefundKeepDelivered || p == RefundMarkReturned
}

// Return 是针对已送达订单的退货申请。
type Return struct {
	ID           string
	OrderID      string
	UserID       string
	Reason       string
	Status       ReturnStatus
	RefundAmount *decimal.Decimal
	AdminNotes   string
	CreatedAt    time.Time
	ReviewedAt   *time.Time
	ReviewedBy   string
	RefundedAt   *time.Time
}

func NewReturn(id string, order *Order, userID, reason string, at time.Time) (*Return, error) {
	reason, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}
	return &Return{
		ID:        id,
		OrderID:   order.ID,
		UserID:    userID,
		Reason:    reason,
		Status:    ReturnPending,
		CreatedAt: at,
	}, nil
}

// Approve 批准退货。amount 为空时按订单总额退款。
func (r *Return) Approve(adminID string, amount *decimal.Decimal, orderTotal decimal.Decimal, at time.Time) error {
	if r.Status != ReturnPending {
		return errors.Wrapf(ErrConflict, "return %s is already %s", r.ID, r.Status)
	}
	refund := orderTotal
	if amount != nil {
		refund = *amount
	}
	if !refund.IsPositive() || refund.GreaterThan(orderTotal) {
		return errors.Wrapf(ErrValidation, "refund amount %s must be positive and at most %s", refund, orderTotal)
	}
	r.Status = ReturnApproved
	r.RefundAmount = &refund
	r.ReviewedAt = &at
	r.ReviewedBy = adminID
	return nil
}

func (r *Return) Reject(adminID, note string, at time.Time) error {
	if r.Status != ReturnPending {
		return errors.Wrapf(ErrConflict, "return %s is already %s", r.ID, r.Status)
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return errors.Wrap(ErrValidation, "a rejection note is required")
	}
	r.Status = ReturnRejected
	r.AdminNotes = note
	r.ReviewedAt = &at
	r.ReviewedBy = adminID
	return nil
}

// CompleteRefund 只能在批准之后执行一次。
func (r *Return) CompleteRefund(at time.Time) error {
	if r.Status != ReturnApproved {
		return errors.Wrapf(ErrConflict, "return %s is %s, refund cannot be completed", r.ID, r.Status)
	}
	r.Status = ReturnRefundCompleted
	r.RefundedAt = &at
	return nil
}

func normalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", errors.Wrap(ErrValidation, "a reason is required")
	}
	if len(reason) > maxReasonLength {
		return "", errors.Wrapf(ErrValidation, "reason must be at most %d characters", maxReasonLength)
	}
	return reason, nil
}
