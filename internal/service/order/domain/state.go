// internal/service/order/domain/state.go
package domain

// Status 是订单的主状态，只描述履约进度。
// "取消申请中" 不是主状态，由 CancellationStatus 组合推导出来。
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusPacked         Status = "packed"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled" // 吸收态
	StatusReturned       Status = "returned"  // 吸收态，只能从 delivered 进入
)

// happyPath 是线性履约路径，下标即为次序。
var happyPath = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusPacked,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
}

// Rank 返回状态在履约路径上的次序，不在路径上的状态返回 -1。
func (s Status) Rank() int {
	for i, st := range happyPath {
		if st == s {
			return i
		}
	}
	return -1
}

// Next 返回履约路径上的直接后继。
func (s Status) Next() (Status, bool) {
	r := s.Rank()
	if r < 0 || r == len(happyPath)-1 {
		return "", false
	}
	return happyPath[r+1], true
}

func (s Status) Valid() bool {
	return s.Rank() >= 0 || s.IsTerminal()
}

// IsTerminal 报告是否为没有出边的吸收态。
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusReturned
}

// CustomerCancellable 顾客只能在打包之前申请取消。
func (s Status) CustomerCancellable() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	}
	return false
}

// AdminCancellable 管理员可以在发货之前直接取消。
func (s Status) AdminCancellable() bool {
	return s.CustomerCancellable() || s == StatusPacked
}

// CancellationStatus 跟踪顾客发起的取消申请，与主状态相互独立。
type CancellationStatus string

const (
	CancellationNone      CancellationStatus = "none"
	CancellationRequested CancellationStatus = "requested"
	CancellationApproved  CancellationStatus = "approved"
	CancellationRejected  CancellationStatus = "rejected"
)

// PaymentStatus 只记录上游观察到的支付结果，本服务不做扣款。
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentFailed        PaymentStatus = "failed"
	PaymentRefundPending PaymentStatus = "refund_pending"
	PaymentRefunded      PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefundPending, PaymentRefunded:
		return true
	}
	return false
}

// Accepts 支付状态只向前走：pending → paid|failed，failed → paid，
// paid → refund_pending|refunded，refund_pending → refunded，refunded 为终态。
func (p PaymentStatus) Accepts(next PaymentStatus) bool {
	switch p {
	case PaymentPending:
		return next == PaymentPaid || next == PaymentFailed
	case PaymentFailed:
		return next == PaymentPaid
	case PaymentPaid:
		return next == PaymentRefundPending || next == PaymentRefunded
	case PaymentRefundPending:
		return next == PaymentRefunded
	}
	return false
}

// DisplayCancellationRequested 是看板和列表上使用的派生标签。
const DisplayCancellationRequested = "cancellation_requested"

// DisplayStatus 组合主状态和取消状态，得到界面展示用的标签。
func DisplayStatus(status Status, cs CancellationStatus) string {
	if cs == CancellationRequested && !status.IsTerminal() {
		return DisplayCancellationRequested
	}
	return string(status)
}
