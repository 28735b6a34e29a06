// internal/service/order/domain/event.go
package domain

import "time"

// ChangeKind 描述一次被接受的写入属于哪类变化。
type ChangeKind string

const (
	ChangeStatus                ChangeKind = "status_changed"
	ChangeCancellationRequested ChangeKind = "cancellation_requested"
	ChangeCancellationApproved  ChangeKind = "cancellation_approved"
	ChangeCancellationRejected  ChangeKind = "cancellation_rejected"
	ChangeReturnRequested       ChangeKind = "return_requested"
	ChangeReturnReviewed        ChangeKind = "return_reviewed"
	ChangeRefundCompleted       ChangeKind = "refund_completed"
	ChangePayment               ChangeKind = "payment_updated"
	ChangeShipment              ChangeKind = "shipment_updated"
)

// OrderChanged 是推送到实时变更流的事件，看板据此刷新而无需轮询。
// 变更流不保证无丢失，轮询读取始终是兜底。
type OrderChanged struct {
	OrderID            string             `json:"orderId"`
	OrderNumber        string             `json:"orderNumber"`
	UserID             string             `json:"userId"`
	Kind               ChangeKind         `json:"kind"`
	Status             Status             `json:"status"`
	DisplayStatus      string             `json:"displayStatus"`
	CancellationStatus CancellationStatus `json:"cancellationStatus"`
	PaymentStatus      PaymentStatus      `json:"paymentStatus"`
	OccurredAt         time.Time          `json:"occurredAt"`
	TraceID            string             `json:"traceId,omitempty"`
}

func NewOrderChanged(o *Order, kind ChangeKind, at time.Time) OrderChanged {
	return OrderChanged{
		OrderID:            o.ID,
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		Kind:               kind,
		Status:             o.Status,
		DisplayStatus:      o.DisplayStatus(),
		CancellationStatus: o.CancellationStatus,
		PaymentStatus:      o.PaymentStatus,
		OccurredAt:         at,
	}
}

// PaymentStatusObserved 是上游支付系统投递到 payment-events 主题的消息。
type PaymentStatusObserved struct {
	OrderID    string        `json:"orderId"`
	Status     PaymentStatus `json:"status"`
	Method     string        `json:"method,omitempty"`
	ObservedAt time.Time     `json:"observedAt"`
}
