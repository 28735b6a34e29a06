// internal/service/order/domain/order.go
package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Address 是下单时的收货地址快照。
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Complete 报告发货所需的字段是否齐全。
func (a Address) Complete() bool {
	return a.Line1 != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// OrderItem 是商品快照，下单后不再随商品目录变化。
type OrderItem struct {
	ID           string
	ProductID    string
	ProductName  string
	ProductImage string
	Quantity     int
	UnitPrice    decimal.Decimal
	TotalPrice   decimal.Decimal
}

func (i OrderItem) Validate() error {
	if i.Quantity < 1 {
		return errors.Wrapf(ErrValidation, "item %s: quantity must be at least 1", i.ProductID)
	}
	if !i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Equal(i.TotalPrice) {
		return errors.Wrapf(ErrValidation, "item %s: total_price must equal unit_price * quantity", i.ProductID)
	}
	return nil
}

// Shipment 记录承运商和运单号。
type Shipment struct {
	Carrier        string
	TrackingNumber string
	Status         Status
	UpdatedAt      time.Time
}

// Order 是订单聚合的根实体。
// 订单在结账时由外部系统创建，这里只通过状态机和申请流程修改它，永不物理删除。
type Order struct {
	ID          string
	OrderNumber string
	UserID      string

	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress Address

	Subtotal       decimal.Decimal
	ShippingCost   decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	CouponCode     string

	Status             Status
	PaymentStatus      PaymentStatus
	PaymentMethod      string
	CancellationStatus CancellationStatus

	Items    []OrderItem
	Shipment *Shipment

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	ReturnedAt  *time.Time
}

// CheckAmounts 校验 total == subtotal + shipping - discount 且各项非负。
func (o *Order) CheckAmounts() error {
	for _, v := range []decimal.Decimal{o.Subtotal, o.ShippingCost, o.DiscountAmount, o.TotalAmount} {
		if v.IsNegative() {
			return errors.Wrapf(ErrValidation, "order %s: monetary fields must be non-negative", o.OrderNumber)
		}
	}
	expected := o.Subtotal.Add(o.ShippingCost).Sub(o.DiscountAmount)
	if !expected.Equal(o.TotalAmount) {
		return errors.Wrapf(ErrValidation, "order %s: total %s does not match %s", o.OrderNumber, o.TotalAmount, expected)
	}
	for _, item := range o.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

// DisplayStatus 返回组合后的展示状态。
func (o *Order) DisplayStatus() string {
	return DisplayStatus(o.Status, o.CancellationStatus)
}

// Advance 按状态图推进主状态，是 transition 操作的领域规则。
// 只允许进入直接后继，或满足守卫条件的 cancelled / returned。
func (o *Order) Advance(target Status, at time.Time) error {
	if !target.Valid() {
		return errors.Wrapf(ErrValidation, "unknown status %q", target)
	}
	if o.Status.IsTerminal() {
		return errors.Wrapf(ErrInvalidTransition, "order %s is already %s", o.OrderNumber, o.Status)
	}

	switch target {
	case StatusCancelled:
		if !o.Status.AdminCancellable() {
			return errors.Wrapf(ErrInvalidTransition, "order %s cannot be cancelled once %s", o.OrderNumber, o.Status)
		}
		if o.CancellationStatus == CancellationRequested {
			return errors.Wrapf(ErrInvalidTransition, "order %s has a pending cancellation request that must be resolved first", o.OrderNumber)
		}
	case StatusReturned:
		if o.Status != StatusDelivered {
			return errors.Wrapf(ErrInvalidTransition, "order %s can only be returned after delivery", o.OrderNumber)
		}
	default:
		next, ok := o.Status.Next()
		if !ok || next != target {
			return errors.Wrapf(ErrInvalidTransition, "order %s cannot move from %s to %s", o.OrderNumber, o.Status, target)
		}
		if target == StatusShipped && !o.ShippingAddress.Complete() {
			return errors.Wrapf(ErrValidation, "order %s: shipping address is incomplete", o.OrderNumber)
		}
	}

	if target == StatusCancelled {
		o.cancel(at)
		return nil
	}
	o.enter(target, at)
	return nil
}

// ConfirmDelivery 由顾客确认收货。归属校验优先于状态校验。
func (o *Order) ConfirmDelivery(userID string, at time.Time) error {
	if !o.OwnedBy(userID) {
		return errors.Wrapf(ErrForbidden, "order %s does not belong to user %s", o.OrderNumber, userID)
	}
	if o.Status != StatusShipped && o.Status != StatusOutForDelivery {
		return errors.Wrapf(ErrInvalidTransition, "order %s cannot be confirmed as delivered while %s", o.OrderNumber, o.Status)
	}
	o.enter(StatusDelivered, at)
	return nil
}

// RequestCancellation 标记取消申请，主状态保持不变。
func (o *Order) RequestCancellation(userID string, at time.Time) error {
	if !o.OwnedBy(userID) {
		return errors.Wrapf(ErrForbidden, "order %s does not belong to user %s", o.OrderNumber, userID)
	}
	if !o.Status.CustomerCancellable() {
		return errors.Wrapf(ErrInvalidTransition, "order %s can no longer be cancelled (%s)", o.OrderNumber, o.Status)
	}
	if o.CancellationStatus == CancellationRequested {
		return errors.Wrapf(ErrConflict, "order %s already has a pending cancellation request", o.OrderNumber)
	}
	o.CancellationStatus = CancellationRequested
	o.UpdatedAt = at
	return nil
}

// ApproveCancellation 是审批通过后的补偿迁移：进入 cancelled，已付款的转为待退款。
func (o *Order) ApproveCancellation(at time.Time) error {
	if !o.Status.AdminCancellable() {
		return errors.Wrapf(ErrInvalidTransition, "order %s advanced to %s and can no longer be cancelled", o.OrderNumber, o.Status)
	}
	o.cancel(at)
	o.CancellationStatus = CancellationApproved
	return nil
}

// RejectCancellation 保留 rejected 让顾客看到驳回结果，主状态不动。
func (o *Order) RejectCancellation(at time.Time) {
	o.CancellationStatus = CancellationRejected
	o.UpdatedAt = at
}

// CanFileReturn 退货只针对已送达的订单。
func (o *Order) CanFileReturn(userID string) error {
	if !o.OwnedBy(userID) {
		return errors.Wrapf(ErrForbidden, "order %s does not belong to user %s", o.OrderNumber, userID)
	}
	if o.Status != StatusDelivered {
		return errors.Wrapf(ErrInvalidTransition, "order %s must be delivered before a return can be filed", o.OrderNumber)
	}
	return nil
}

// AssignShipment 登记或更换承运商和运单号，运单状态跟随主状态。
func (o *Order) AssignShipment(carrier, trackingNumber string, at time.Time) error {
	carrier, trackingNumber = strings.TrimSpace(carrier), strings.TrimSpace(trackingNumber)
	if carrier == "" || trackingNumber == "" {
		return errors.Wrap(ErrValidation, "carrier and tracking number are required")
	}
	if o.Status.IsTerminal() {
		return errors.Wrapf(ErrInvalidTransition, "order %s is already %s", o.OrderNumber, o.Status)
	}
	o.Shipment = &Shipment{Carrier: carrier, TrackingNumber: trackingNumber, Status: o.Status, UpdatedAt: at}
	o.UpdatedAt = at
	return nil
}

// MarkRefundPending 退货获批后，已付款的订单进入待退款。
func (o *Order) MarkRefundPending(at time.Time) {
	if o.PaymentStatus == PaymentPaid {
		o.PaymentStatus = PaymentRefundPending
		o.UpdatedAt = at
	}
}

// MarkRefunded 退款完成。
func (o *Order) MarkRefunded(at time.Time) {
	if o.PaymentStatus == PaymentPaid || o.PaymentStatus == PaymentRefundPending {
		o.PaymentStatus = PaymentRefunded
		o.UpdatedAt = at
	}
}

// RecordPayment 记录上游支付状态。乱序或重复的事件直接忽略，changed 为 false。
// 已取消的订单收到 paid 时转为 refund_pending，refundDue 为 true，由调用方排队退款。
func (o *Order) RecordPayment(ps PaymentStatus, at time.Time) (changed, refundDue bool, err error) {
	if !ps.Valid() {
		return false, false, errors.Wrapf(ErrValidation, "unknown payment status %q", ps)
	}
	if !o.PaymentStatus.Accepts(ps) {
		return false, false, nil
	}
	if ps == PaymentPaid && o.Status == StatusCancelled {
		ps, refundDue = PaymentRefundPending, true
	}
	o.PaymentStatus = ps
	if at.After(o.UpdatedAt) {
		o.UpdatedAt = at
	}
	return true, refundDue, nil
}

// cancel 进入 cancelled，已收的款项转为待退款。
func (o *Order) cancel(at time.Time) {
	o.enter(StatusCancelled, at)
	if o.PaymentStatus == PaymentPaid {
		o.PaymentStatus = PaymentRefundPending
	}
}

func (o *Order) enter(target Status, at time.Time) {
	o.Status = target
	o.UpdatedAt = at
	t := at
	switch target {
	case StatusConfirmed:
		o.ConfirmedAt = &t
	case StatusShipped:
		o.ShippedAt = &t
	case StatusDelivered:
		o.DeliveredAt = &t
	case StatusCancelled:
		o.CancelledAt = &t
	case StatusReturned:
		o.ReturnedAt = &t
	}
	if o.Shipment != nil && target.Rank() >= StatusShipped.Rank() {
		o.Shipment.Status = target
		o.Shipment.UpdatedAt = at
	}
}
