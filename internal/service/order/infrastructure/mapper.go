package infrastructure

import (
	"github.com/shopspring/decimal"

	"ordercore/internal/service/order/domain"
)

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		CustomerName:       o.CustomerName,
		CustomerEmail:      o.CustomerEmail,
		CustomerPhone:      o.CustomerPhone,
		AddressLine1:       o.ShippingAddress.Line1,
		AddressLine2:       o.ShippingAddress.Line2,
		City:               o.ShippingAddress.City,
		State:              o.ShippingAddress.State,
		PostalCode:         o.ShippingAddress.PostalCode,
		Country:            o.ShippingAddress.Country,
		Subtotal:           o.Subtotal,
		ShippingCost:       o.ShippingCost,
		DiscountAmount:     o.DiscountAmount,
		TotalAmount:        o.TotalAmount,
		CouponCode:         o.CouponCode,
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
		PaymentMethod:      o.PaymentMethod,
		CancellationStatus: string(o.CancellationStatus),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		ConfirmedAt:        o.ConfirmedAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		ReturnedAt:         o.ReturnedAt,
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:           it.ID,
			OrderID:      o.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
		})
	}
	if o.Shipment != nil {
		m.Shipment = toShipmentModel(o.ID, o.Shipment)
	}
	return m
}

func toShipmentModel(orderID string, s *domain.Shipment) *ShipmentModel {
	return &ShipmentModel{
		OrderID:        orderID,
		Carrier:        s.Carrier,
		TrackingNumber: s.TrackingNumber,
		Status:         string(s.Status),
		UpdatedAt:      s.UpdatedAt,
	}
}

func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:            m.ID,
		OrderNumber:   m.OrderNumber,
		UserID:        m.UserID,
		CustomerName:  m.CustomerName,
		CustomerEmail: m.CustomerEmail,
		CustomerPhone: m.CustomerPhone,
		ShippingAddress: domain.Address{
			Line1:      m.AddressLine1,
			Line2:      m.AddressLine2,
			City:       m.City,
			State:      m.State,
			PostalCode: m.PostalCode,
			Country:    m.Country,
		},
		Subtotal:           m.Subtotal,
		ShippingCost:       m.ShippingCost,
		DiscountAmount:     m.DiscountAmount,
		TotalAmount:        m.TotalAmount,
		CouponCode:         m.CouponCode,
		Status:             domain.Status(m.Status),
		PaymentStatus:      domain.PaymentStatus(m.PaymentStatus),
		PaymentMethod:      m.PaymentMethod,
		CancellationStatus: domain.CancellationStatus(m.CancellationStatus),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		ConfirmedAt:        m.ConfirmedAt,
		ShippedAt:          m.ShippedAt,
		DeliveredAt:        m.DeliveredAt,
		CancelledAt:        m.CancelledAt,
		ReturnedAt:         m.ReturnedAt,
	}
	if o.CancellationStatus == "" {
		o.CancellationStatus = domain.CancellationNone
	}
	for _, it := range m.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
		})
	}
	if m.Shipment != nil {
		o.Shipment = &domain.Shipment{
			Carrier:        m.Shipment.Carrier,
			TrackingNumber: m.Shipment.TrackingNumber,
			Status:         domain.Status(m.Shipment.Status),
			UpdatedAt:      m.Shipment.UpdatedAt,
		}
	}
	return o
}

func toDomainHistory(m *OrderStatusHistoryModel) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:        m.ID,
		OrderID:   m.OrderID,
		Status:    domain.Status(m.Status),
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}

func toCancellationModel(r *domain.CancellationRequest) *CancellationRequestModel {
	return &CancellationRequestModel{
		ID:                  r.ID,
		OrderID:             r.OrderID,
		UserID:              r.UserID,
		Reason:              r.Reason,
		Comment:             r.Comment,
		Status:              string(r.Status),
		AdminNote:           r.AdminNote,
		PreviousOrderStatus: string(r.PreviousOrderStatus),
		PendingSlot:         pendingSlot(r.OrderID, r.Status == domain.RequestPending),
		CreatedAt:           r.CreatedAt,
		ReviewedAt:          r.ReviewedAt,
		ReviewedBy:          r.ReviewedBy,
	}
}

func toDomainCancellation(m *CancellationRequestModel) *domain.CancellationRequest {
	return &domain.CancellationRequest{
		ID:                  m.ID,
		OrderID:             m.OrderID,
		UserID:              m.UserID,
		Reason:              m.Reason,
		Comment:             m.Comment,
		Status:              domain.RequestStatus(m.Status),
		AdminNote:           m.AdminNote,
		PreviousOrderStatus: domain.Status(m.PreviousOrderStatus),
		CreatedAt:           m.CreatedAt,
		ReviewedAt:          m.ReviewedAt,
		ReviewedBy:          m.ReviewedBy,
	}
}

func toReturnModel(r *domain.Return) *ReturnModel {
	m := &ReturnModel{
		ID:          r.ID,
		OrderID:     r.OrderID,
		UserID:      r.UserID,
		Reason:      r.Reason,
		Status:      string(r.Status),
		AdminNotes:  r.AdminNotes,
		PendingSlot: pendingSlot(r.OrderID, r.Status == domain.ReturnPending),
		CreatedAt:   r.CreatedAt,
		ReviewedAt:  r.ReviewedAt,
		ReviewedBy:  r.ReviewedBy,
		RefundedAt:  r.RefundedAt,
	}
	if r.RefundAmount != nil {
		m.RefundAmount = decimal.NewNullDecimal(*r.RefundAmount)
	}
	return m
}

func toDomainReturn(m *ReturnModel) *domain.Return {
	r := &domain.Return{
		ID:         m.ID,
		OrderID:    m.OrderID,
		UserID:     m.UserID,
		Reason:     m.Reason,
		Status:     domain.ReturnStatus(m.Status),
		AdminNotes: m.AdminNotes,
		CreatedAt:  m.CreatedAt,
		ReviewedAt: m.ReviewedAt,
		ReviewedBy: m.ReviewedBy,
		RefundedAt: m.RefundedAt,
	}
	if m.RefundAmount.Valid {
		amount := m.RefundAmount.Decimal
		r.RefundAmount = &amount
	}
	return r
}

func pendingSlot(orderID string, pending bool) *string {
	if !pending {
		return nil
	}
	slot := orderID
	return &slot
}
