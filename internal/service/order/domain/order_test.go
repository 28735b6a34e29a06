package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newOrder(status Status) *Order {
	return &Order{
		ID:          "o-1",
		OrderNumber: "ORD-1001",
		UserID:      "u-1",
		ShippingAddress: Address{
			Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
		},
		Subtotal:           decimal.RequireFromString("100.00"),
		ShippingCost:       decimal.RequireFromString("5.00"),
		DiscountAmount:     decimal.RequireFromString("10.00"),
		TotalAmount:        decimal.RequireFromString("95.00"),
		Status:             status,
		PaymentStatus:      PaymentPaid,
		CancellationStatus: CancellationNone,
		CreatedAt:          t0,
		UpdatedAt:          t0,
	}
}

func TestAdvance_FollowsHappyPath(t *testing.T) {
	o := newOrder(StatusPending)
	path := []Status{StatusConfirmed, StatusProcessing, StatusPacked, StatusShipped, StatusOutForDelivery, StatusDelivered}
	for i, next := range path {
		at := t0.Add(time.Duration(i+1) * time.Hour)
		require.NoError(t, o.Advance(next, at), "advance to %s", next)
		assert.Equal(t, next, o.Status)
		assert.Equal(t, at, o.UpdatedAt)
	}
	require.NotNil(t, o.ConfirmedAt)
	require.NotNil(t, o.ShippedAt)
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, t0.Add(time.Hour), *o.ConfirmedAt)
}

func TestAdvance_RejectsSkipsAndBackwardMoves(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		target Status
	}{
		{"skip confirmed", StatusPending, StatusProcessing},
		{"backwards", StatusPacked, StatusConfirmed},
		{"same status", StatusProcessing, StatusProcessing},
		{"returned before delivery", StatusShipped, StatusReturned},
		{"cancel after shipping", StatusShipped, StatusCancelled},
		{"leave cancelled", StatusCancelled, StatusPending},
		{"leave returned", StatusReturned, StatusDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrder(tt.from)
			err := o.Advance(tt.target, t0.Add(time.Hour))
			assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
			assert.Equal(t, tt.from, o.Status)
			assert.Equal(t, t0, o.UpdatedAt)
		})
	}
}

func TestAdvance_UnknownStatusIsValidation(t *testing.T) {
	o := newOrder(StatusPending)
	err := o.Advance(Status("cancellation_requested"), t0)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestAdvance_ShippingNeedsCompleteAddress(t *testing.T) {
	o := newOrder(StatusPacked)
	o.ShippingAddress.PostalCode = ""
	err := o.Advance(StatusShipped, t0)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, StatusPacked, o.Status)
}

func TestAdvance_CancelMovesPaymentToRefundPending(t *testing.T) {
	o := newOrder(StatusPacked)
	require.NoError(t, o.Advance(StatusCancelled, t0.Add(time.Minute)))
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentRefundPending, o.PaymentStatus)
	require.NotNil(t, o.CancelledAt)

	unpaid := newOrder(StatusPending)
	unpaid.PaymentStatus = PaymentPending
	require.NoError(t, unpaid.Advance(StatusCancelled, t0))
	assert.Equal(t, PaymentPending, unpaid.PaymentStatus)
}

func TestAdvance_CancelBlockedByPendingRequest(t *testing.T) {
	o := newOrder(StatusConfirmed)
	o.CancellationStatus = CancellationRequested
	err := o.Advance(StatusCancelled, t0)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	// 履约推进不受 pending 申请影响
	require.NoError(t, o.Advance(StatusProcessing, t0))
	assert.Equal(t, CancellationRequested, o.CancellationStatus)
}

func TestAdvance_ShipmentFollowsStatus(t *testing.T) {
	o := newOrder(StatusPacked)
	require.NoError(t, o.AssignShipment("UPS", "1Z999", t0))
	require.NoError(t, o.Advance(StatusShipped, t0.Add(time.Hour)))
	assert.Equal(t, StatusShipped, o.Shipment.Status)
	assert.Equal(t, t0.Add(time.Hour), o.Shipment.UpdatedAt)
}

func TestConfirmDelivery(t *testing.T) {
	t.Run("ownership is checked before status", func(t *testing.T) {
		o := newOrder(StatusPending)
		err := o.ConfirmDelivery("someone-else", t0)
		assert.True(t, errors.Is(err, ErrForbidden))
	})
	t.Run("owner before shipping", func(t *testing.T) {
		o := newOrder(StatusPacked)
		err := o.ConfirmDelivery("u-1", t0)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})
	for _, from := range []Status{StatusShipped, StatusOutForDelivery} {
		t.Run("from "+string(from), func(t *testing.T) {
			o := newOrder(from)
			require.NoError(t, o.ConfirmDelivery("u-1", t0.Add(time.Hour)))
			assert.Equal(t, StatusDelivered, o.Status)
			require.NotNil(t, o.DeliveredAt)
			assert.Equal(t, t0.Add(time.Hour), *o.DeliveredAt)
		})
	}
}

func TestRequestCancellation(t *testing.T) {
	o := newOrder(StatusProcessing)
	require.NoError(t, o.RequestCancellation("u-1", t0))
	assert.Equal(t, StatusProcessing, o.Status)
	assert.Equal(t, CancellationRequested, o.CancellationStatus)
	assert.Equal(t, DisplayCancellationRequested, o.DisplayStatus())

	err := o.RequestCancellation("u-1", t0)
	assert.True(t, errors.Is(err, ErrConflict))

	packed := newOrder(StatusPacked)
	assert.True(t, errors.Is(packed.RequestCancellation("u-1", t0), ErrInvalidTransition))

	other := newOrder(StatusPending)
	assert.True(t, errors.Is(other.RequestCancellation("u-2", t0), ErrForbidden))
}

func TestApproveCancellation_FailsOnceShipped(t *testing.T) {
	o := newOrder(StatusShipped)
	o.CancellationStatus = CancellationRequested
	err := o.ApproveCancellation(t0)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StatusShipped, o.Status)

	packed := newOrder(StatusPacked)
	packed.CancellationStatus = CancellationRequested
	require.NoError(t, packed.ApproveCancellation(t0))
	assert.Equal(t, StatusCancelled, packed.Status)
	assert.Equal(t, CancellationApproved, packed.CancellationStatus)
	assert.Equal(t, PaymentRefundPending, packed.PaymentStatus)
}

func TestRejectCancellation_KeepsPrimaryStatus(t *testing.T) {
	o := newOrder(StatusConfirmed)
	o.CancellationStatus = CancellationRequested
	o.RejectCancellation(t0)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, CancellationRejected, o.CancellationStatus)
	assert.Equal(t, string(StatusConfirmed), o.DisplayStatus())
}

func TestCheckAmounts(t *testing.T) {
	o := newOrder(StatusPending)
	o.Items = []OrderItem{{ProductID: "p-1", Quantity: 2, UnitPrice: decimal.RequireFromString("50"), TotalPrice: decimal.RequireFromString("100")}}
	require.NoError(t, o.CheckAmounts())

	o.TotalAmount = decimal.RequireFromString("96.00")
	assert.True(t, errors.Is(o.CheckAmounts(), ErrValidation))

	o = newOrder(StatusPending)
	o.Items = []OrderItem{{ProductID: "p-1", Quantity: 0, UnitPrice: decimal.RequireFromString("50"), TotalPrice: decimal.Zero}}
	assert.True(t, errors.Is(o.CheckAmounts(), ErrValidation))
}

func TestRefundMarkers(t *testing.T) {
	o := newOrder(StatusDelivered)
	o.MarkRefundPending(t0)
	assert.Equal(t, PaymentRefundPending, o.PaymentStatus)
	o.MarkRefunded(t0)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)

	failed := newOrder(StatusDelivered)
	failed.PaymentStatus = PaymentFailed
	failed.MarkRefunded(t0)
	assert.Equal(t, PaymentFailed, failed.PaymentStatus)
}

func TestDisplayStatus(t *testing.T) {
	assert.Equal(t, "processing", DisplayStatus(StatusProcessing, CancellationNone))
	assert.Equal(t, DisplayCancellationRequested, DisplayStatus(StatusPending, CancellationRequested))
	assert.Equal(t, "cancelled", DisplayStatus(StatusCancelled, CancellationRequested))
	assert.Equal(t, "processing", DisplayStatus(StatusProcessing, CancellationRejected))
}

func TestRecordPayment(t *testing.T) {
	o := newOrder(StatusPending)
	o.PaymentStatus = PaymentPending

	changed, refundDue, err := o.RecordPayment(PaymentPaid, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, refundDue)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, t0.Add(time.Minute), o.UpdatedAt)

	// 晚到的 failed 不能覆盖 paid，也不能让 updated_at 倒退
	changed, _, err = o.RecordPayment(PaymentFailed, t0)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, t0.Add(time.Minute), o.UpdatedAt)

	_, _, err = o.RecordPayment(PaymentStatus("chargeback"), t0)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestRecordPayment_PaidAfterCancellationNeedsRefund(t *testing.T) {
	o := newOrder(StatusCancelled)
	o.PaymentStatus = PaymentPending

	changed, refundDue, err := o.RecordPayment(PaymentPaid, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, refundDue)
	assert.Equal(t, PaymentRefundPending, o.PaymentStatus)

	// 重复投递不再触发退款
	changed, refundDue, err = o.RecordPayment(PaymentPaid, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, refundDue)
	assert.Equal(t, PaymentRefundPending, o.PaymentStatus)
}
