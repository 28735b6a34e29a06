// internal/service/order/application/dto.go
package application

import (
	"time"

	"github.com/shopspring/decimal"

	"ordercore/internal/service/order/domain"
	"ordercore/internal/service/order/domain/projection"
)

// ListOrdersQuery 是订单列表的外部查询条件，Page 从 1 开始。
type ListOrdersQuery struct {
	Status        string
	UserID        string
	PaymentStatus domain.PaymentStatus
	Search        string
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}

// RequestQuery 用于取消申请和退货列表。
type RequestQuery struct {
	Status   string
	OrderID  string
	UserID   string
	Page     int
	PageSize int
}

type AddressView struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type ItemView struct {
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

type ShipmentView struct {
	Carrier        string        `json:"carrier"`
	TrackingNumber string        `json:"trackingNumber"`
	Status         domain.Status `json:"status"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// OrderView 是订单对外的展示形态，DisplayStatus 是组合后的标签。
type OrderView struct {
	ID                 string                    `json:"id"`
	OrderNumber        string                    `json:"orderNumber"`
	UserID             string                    `json:"userId"`
	CustomerName       string                    `json:"customerName"`
	CustomerEmail      string                    `json:"customerEmail"`
	CustomerPhone      string                    `json:"customerPhone,omitempty"`
	ShippingAddress    AddressView               `json:"shippingAddress"`
	Subtotal           decimal.Decimal           `json:"subtotal"`
	ShippingCost       decimal.Decimal           `json:"shippingCost"`
	DiscountAmount     decimal.Decimal           `json:"discountAmount"`
	TotalAmount        decimal.Decimal           `json:"totalAmount"`
	CouponCode         string                    `json:"couponCode,omitempty"`
	Status             domain.Status             `json:"status"`
	DisplayStatus      string                    `json:"displayStatus"`
	CancellationStatus domain.CancellationStatus `json:"cancellationStatus"`
	PaymentStatus      domain.PaymentStatus      `json:"paymentStatus"`
	PaymentMethod      string                    `json:"paymentMethod,omitempty"`
	Items              []ItemView                `json:"items"`
	Shipment           *ShipmentView             `json:"shipment,omitempty"`
	CreatedAt          time.Time                 `json:"createdAt"`
	UpdatedAt          time.Time                 `json:"updatedAt"`
	ConfirmedAt        *time.Time                `json:"confirmedAt,omitempty"`
	ShippedAt          *time.Time                `json:"shippedAt,omitempty"`
	DeliveredAt        *time.Time                `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time                `json:"cancelledAt,omitempty"`
	ReturnedAt         *time.Time                `json:"returnedAt,omitempty"`
}

// OrderDetail 附带时间线。
type OrderDetail struct {
	OrderView
	Timeline []projection.TimelineStep `json:"timeline"`
}

type CancellationView struct {
	ID                  string               `json:"id"`
	OrderID             string               `json:"orderId"`
	UserID              string               `json:"userId"`
	Reason              string               `json:"reason"`
	Comment             string               `json:"comment,omitempty"`
	Status              domain.RequestStatus `json:"status"`
	AdminNote           string               `json:"adminNote,omitempty"`
	PreviousOrderStatus domain.Status        `json:"previousOrderStatus"`
	CreatedAt           time.Time            `json:"createdAt"`
	ReviewedAt          *time.Time           `json:"reviewedAt,omitempty"`
	ReviewedBy          string               `json:"reviewedBy,omitempty"`
}

type ReturnView struct {
	ID           string              `json:"id"`
	OrderID      string              `json:"orderId"`
	UserID       string              `json:"userId"`
	Reason       string              `json:"reason"`
	Status       domain.ReturnStatus `json:"status"`
	RefundAmount *decimal.Decimal    `json:"refundAmount,omitempty"`
	AdminNotes   string              `json:"adminNotes,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	ReviewedAt   *time.Time          `json:"reviewedAt,omitempty"`
	ReviewedBy   string              `json:"reviewedBy,omitempty"`
	RefundedAt   *time.Time          `json:"refundedAt,omitempty"`
}

func ToOrderView(o *domain.Order) OrderView {
	v := OrderView{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CustomerPhone: o.CustomerPhone,
		ShippingAddress: AddressView{
			Line1:      o.ShippingAddress.Line1,
			Line2:      o.ShippingAddress.Line2,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		Subtotal:           o.Subtotal,
		ShippingCost:       o.ShippingCost,
		DiscountAmount:     o.DiscountAmount,
		TotalAmount:        o.TotalAmount,
		CouponCode:         o.CouponCode,
		Status:             o.Status,
		DisplayStatus:      o.DisplayStatus(),
		CancellationStatus: o.CancellationStatus,
		PaymentStatus:      o.PaymentStatus,
		PaymentMethod:      o.PaymentMethod,
		Items:              make([]ItemView, 0, len(o.Items)),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		ConfirmedAt:        o.ConfirmedAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		ReturnedAt:         o.ReturnedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, ItemView{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
		})
	}
	if o.Shipment != nil {
		v.Shipment = &ShipmentView{
			Carrier:        o.Shipment.Carrier,
			TrackingNumber: o.Shipment.TrackingNumber,
			Status:         o.Shipment.Status,
			UpdatedAt:      o.Shipment.UpdatedAt,
		}
	}
	return v
}

func ToCancellationView(r *domain.CancellationRequest) CancellationView {
	return CancellationView{
		ID:                  r.ID,
		OrderID:             r.OrderID,
		UserID:              r.UserID,
		Reason:              r.Reason,
		Comment:             r.Comment,
		Status:              r.Status,
		AdminNote:           r.AdminNote,
		PreviousOrderStatus: r.PreviousOrderStatus,
		CreatedAt:           r.CreatedAt,
		ReviewedAt:          r.ReviewedAt,
		ReviewedBy:          r.ReviewedBy,
	}
}

func ToReturnView(r *domain.Return) ReturnView {
	return ReturnView{
		ID:           r.ID,
		OrderID:      r.OrderID,
		UserID:       r.UserID,
		Reason:       r.Reason,
		Status:       r.Status,
		RefundAmount: r.RefundAmount,
		AdminNotes:   r.AdminNotes,
		CreatedAt:    r.CreatedAt,
		ReviewedAt:   r.ReviewedAt,
		ReviewedBy:   r.ReviewedBy,
		RefundedAt:   r.RefundedAt,
	}
}
