package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 对应 orders 表。
type OrderModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	OrderNumber   string `gorm:"size:32;uniqueIndex"`
	UserID        string `gorm:"size:36;index"`
	CustomerName  string `gorm:"size:128"`
	CustomerEmail string `gorm:"size:128"`
	CustomerPhone string `gorm:"size:32"`

	AddressLine1 string `gorm:"size:255"`
	AddressLine2 string `gorm:"size:255"`
	City         string `gorm:"size:128"`
	State        string `gorm:"size:128"`
	PostalCode   string `gorm:"size:32"`
	Country      string `gorm:"size:64"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2)"`
	ShippingCost   decimal.Decimal `gorm:"type:decimal(12,2)"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2)"`
	CouponCode     string          `gorm:"size:64;index"`

	Status             string `gorm:"size:32;index"`
	PaymentStatus      string `gorm:"size:32"`
	PaymentMethod      string `gorm:"size:32"`
	CancellationStatus string `gorm:"size:16;default:none;index"`

	CreatedAt   time.Time `gorm:"autoCreateTime:false;index"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
	ConfirmedAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	ReturnedAt  *time.Time

	Items    []OrderItemModel `gorm:"foreignKey:OrderID"`
	Shipment *ShipmentModel   `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string { return "orders" }

type OrderItemModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	OrderID      string `gorm:"size:36;index"`
	ProductID    string `gorm:"size:36"`
	ProductName  string `gorm:"size:255"`
	ProductImage string `gorm:"size:512"`
	Quantity     int
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalPrice   decimal.Decimal `gorm:"type:decimal(12,2)"`
}

func (OrderItemModel) TableName() string { return "order_items" }

type ShipmentModel struct {
	OrderID        string    `gorm:"primaryKey;size:36"`
	Carrier        string    `gorm:"size:64"`
	TrackingNumber string    `gorm:"size:128"`
	Status         string    `gorm:"size:32"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (ShipmentModel) TableName() string { return "shipments" }

// OrderStatusHistoryModel 只插入，不更新。
type OrderStatusHistoryModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	OrderID   string    `gorm:"size:36;index:idx_history_order,priority:1"`
	Status    string    `gorm:"size:32"`
	Note      string    `gorm:"size:500"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;index:idx_history_order,priority:2;index"`
}

func (OrderStatusHistoryModel) TableName() string { return "order_status_history" }

// CancellationRequestModel 的 PendingSlot 在 pending 时等于 order_id，其余为 NULL，
// 唯一索引保证同一订单最多一条 pending 申请。
type CancellationRequestModel struct {
	ID                  string    `gorm:"primaryKey;size:36"`
	OrderID             string    `gorm:"size:36;index"`
	UserID              string    `gorm:"size:36;index"`
	Reason              string    `gorm:"size:500"`
	Comment             string    `gorm:"type:text"`
	Status              string    `gorm:"size:16;index"`
	AdminNote           string    `gorm:"type:text"`
	PreviousOrderStatus string    `gorm:"size:32"`
	PendingSlot         *string   `gorm:"size:36;uniqueIndex"`
	CreatedAt           time.Time `gorm:"autoCreateTime:false"`
	ReviewedAt          *time.Time
	ReviewedBy          string `gorm:"size:36"`
}

func (CancellationRequestModel) TableName() string { return "cancellation_requests" }

type ReturnModel struct {
	ID           string              `gorm:"primaryKey;size:36"`
	OrderID      string              `gorm:"size:36;index"`
	UserID       string              `gorm:"size:36;index"`
	Reason       string              `gorm:"size:500"`
	Status       string              `gorm:"size:24;index"`
	RefundAmount decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	AdminNotes   string              `gorm:"type:text"`
	PendingSlot  *string             `gorm:"size:36;uniqueIndex"`
	CreatedAt    time.Time           `gorm:"autoCreateTime:false"`
	ReviewedAt   *time.Time
	ReviewedBy   string `gorm:"size:36"`
	RefundedAt   *time.Time
}

func (ReturnModel) TableName() string { return "returns" }

// CouponModel 是营销系统拥有的表，这里只读。
type CouponModel struct {
	Code            string `gorm:"primaryKey;size:64"`
	AffiliateUserID string `gorm:"size:36"`
}

func (CouponModel) TableName() string { return "coupons" }
