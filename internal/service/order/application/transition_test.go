package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercore/internal/pkg/identity"
	ndomain "ordercore/internal/service/notification/domain"
	"ordercore/internal/service/order/application"
	"ordercore/internal/service/order/domain"
)

func TestTransition_FullFulfilment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusPending, "SPRING10")

	path := []domain.Status{
		domain.StatusConfirmed, domain.StatusProcessing, domain.StatusPacked,
		domain.StatusShipped, domain.StatusOutForDelivery, domain.StatusDelivered,
	}
	for _, next := range path {
		got, err := h.svc.Transition(ctx, admin, o.ID, next, "")
		require.NoError(t, err, "advance to %s", next)
		assert.Equal(t, next, got.Status)
	}

	history, err := h.repo.History(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 7)

	assert.EqualValues(t, 42, h.ledger.rewards[o.ID])
	assert.Equal(t, 1, h.ledger.rewardCalls)

	assert.EqualValues(t, 5, h.notifications(t, "u-1", ndomain.TypeOrderStatusChanged))
	assert.EqualValues(t, 1, h.notifications(t, "u-1", ndomain.TypeOrderDelivered))
	assert.EqualValues(t, 1, h.notifications(t, "aff-1", ndomain.TypeAffiliateOrderDelivered))
	assert.Len(t, h.feed.kinds(), len(path))
}

func TestTransition_OnlyAdmins(t *testing.T) {
	h := newHarness(t)
	o := h.seed(t, "ORD-1", "u-1", domain.StatusPending, "")

	_, err := h.svc.Transition(context.Background(), customer, o.ID, domain.StatusConfirmed, "")
	assert.True(t, errors.Is(err, domain.ErrForbidden), "got %v", err)

	// 角色是 admin 但没有 user id 的断言同样无效
	_, err = h.svc.Transition(context.Background(), identity.Actor{Role: identity.RoleAdmin}, o.ID, domain.StatusConfirmed, "")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Equal(t, domain.StatusPending, h.order(t, o.ID).Status)
}

func TestTransition_RejectedHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusPending, "")

	_, err := h.svc.Transition(ctx, admin, o.ID, domain.StatusShipped, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "got %v", err)

	_, err = h.svc.Transition(ctx, admin, "missing", domain.StatusConfirmed, "")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	history, err := h.repo.History(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Empty(t, h.feed.kinds())
	assert.Zero(t, h.notifications(t, "u-1", ndomain.TypeOrderStatusChanged))
}

func TestTransition_AdminCancelReleasesStockAndQueuesRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusPacked, "SPRING10")

	got, err := h.svc.Transition(ctx, admin, o.ID, domain.StatusCancelled, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefundPending, got.PaymentStatus)
	assert.Equal(t, map[string]int{"sku-1": 2}, h.inventory.released[o.ID])
	assert.Equal(t, "95", h.ledger.refunds[o.ID].String())

	assert.EqualValues(t, 1, h.notifications(t, "u-1", ndomain.TypeOrderCancelled))
	assert.EqualValues(t, 1, h.notifications(t, "admin-1", ndomain.TypeOrderCancelled))
	assert.EqualValues(t, 1, h.notifications(t, "admin-2", ndomain.TypeOrderCancelled))
	assert.Zero(t, h.notifications(t, "admin-3", ndomain.TypeOrderCancelled), "inactive admins are skipped")
	assert.EqualValues(t, 1, h.notifications(t, "aff-1", ndomain.TypeAffiliateOrderCancelled))

	history, err := h.repo.History(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "out of stock", history[len(history)-1].Note)
}

func TestConfirmDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending := h.seed(t, "ORD-1", "u-1", domain.StatusPending, "")
	shipped := h.seed(t, "ORD-2", "u-1", domain.StatusOutForDelivery, "")

	_, err := h.svc.ConfirmDelivery(ctx, stranger, pending.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden), "ownership is checked before status")

	_, err = h.svc.ConfirmDelivery(ctx, customer, pending.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	got, err := h.svc.ConfirmDelivery(ctx, customer, shipped.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Status)
	assert.EqualValues(t, 42, h.ledger.rewards[shipped.ID])

	_, err = h.svc.ConfirmDelivery(ctx, customer, shipped.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Equal(t, 1, h.ledger.rewardCalls)
}

func TestAssignShipment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusPacked, "")

	_, err := h.svc.AssignShipment(ctx, customer, o.ID, "UPS", "1Z")
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = h.svc.AssignShipment(ctx, admin, o.ID, "", "1Z")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	got, err := h.svc.AssignShipment(ctx, admin, o.ID, "UPS", "1Z999")
	require.NoError(t, err)
	require.NotNil(t, got.Shipment)
	assert.Equal(t, "UPS", got.Shipment.Carrier)
	assert.EqualValues(t, 1, h.notifications(t, "u-1", ndomain.TypeShipmentUpdated))
	assert.Equal(t, []domain.ChangeKind{domain.ChangeShipment}, h.feed.kinds())
}

func TestRecordPaymentStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusPending, "")
	h.setPayment(t, o.ID, domain.PaymentPending)

	got, err := h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{OrderID: o.ID, Status: domain.PaymentFailed, Method: "paypal"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, "paypal", h.order(t, o.ID).PaymentMethod)

	got, err = h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{OrderID: o.ID, Status: domain.PaymentPaid, Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)

	// 乱序到达的 failed 被忽略，支付方式也不动
	got, err = h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{OrderID: o.ID, Status: domain.PaymentFailed, Method: "paypal"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	stored := h.order(t, o.ID)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, "card", stored.PaymentMethod)
	assert.Equal(t, []domain.ChangeKind{domain.ChangePayment, domain.ChangePayment}, h.feed.kinds())

	_, err = h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{OrderID: o.ID, Status: "charged_twice"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{OrderID: "missing", Status: domain.PaymentPaid})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRecordPaymentStatus_StalePaidKeepsRefundPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusConfirmed, "")

	_, err := h.svc.Transition(ctx, admin, o.ID, domain.StatusCancelled, "out of stock")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentRefundPending, h.order(t, o.ID).PaymentStatus)
	require.Equal(t, 1, h.ledger.refundCalls)

	got, err := h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{OrderID: o.ID, Status: domain.PaymentPaid})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefundPending, got.PaymentStatus)
	assert.Equal(t, domain.PaymentRefundPending, h.order(t, o.ID).PaymentStatus)
	assert.Equal(t, 1, h.ledger.refundCalls)
}

func TestRecordPaymentStatus_PaidAfterCancellationQueuesRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusPending, "")
	h.setPayment(t, o.ID, domain.PaymentPending)

	_, err := h.svc.Transition(ctx, admin, o.ID, domain.StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, 0, h.ledger.refundCalls)

	got, err := h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{OrderID: o.ID, Status: domain.PaymentPaid})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefundPending, got.PaymentStatus)
	assert.Equal(t, domain.StatusCancelled, h.order(t, o.ID).Status)
	assert.Equal(t, "95", h.ledger.refunds[o.ID].String())
}

func TestRecordPaymentStatus_UpdatedAtNeverMovesBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusPending, "")
	h.setPayment(t, o.ID, domain.PaymentPending)

	_, err := h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{
		OrderID: o.ID, Status: domain.PaymentPaid, ObservedAt: t0.Add(-time.Hour),
	})
	require.NoError(t, err)
	got := h.order(t, o.ID)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.True(t, got.UpdatedAt.Equal(t0), "updated_at %s", got.UpdatedAt)

	_, err = h.svc.RecordPaymentStatus(ctx, domain.PaymentStatusObserved{
		OrderID: o.ID, Status: domain.PaymentRefunded, ObservedAt: t0.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, h.order(t, o.ID).UpdatedAt.Equal(t0.Add(time.Hour)))
}

func TestSideEffectFailuresDoNotRollBack(t *testing.T) {
	failing := errors.New("downstream unavailable")
	h := newHarness(t, func(d *application.Deps) {
		d.Notifier = failingNotifier{err: failing}
		d.Inventory = nil
	})
	h.feed.err = failing
	h.ledger.err = failing
	ctx := context.Background()
	o := h.seed(t, "ORD-1", "u-1", domain.StatusOutForDelivery, "")

	got, err := h.svc.Transition(ctx, admin, o.ID, domain.StatusDelivered, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Status)
	assert.Equal(t, domain.StatusDelivered, h.order(t, o.ID).Status)
	assert.Equal(t, 1, h.ledger.rewardCalls)
}

func TestNewOrderApplicationService_Validation(t *testing.T) {
	_, err := application.NewOrderApplicationService(application.Deps{})
	assert.Error(t, err)

	h := newHarness(t)
	_, err = application.NewOrderApplicationService(application.Deps{
		Orders: h.repo, Cancellations: h.repo, Returns: h.repo, Reader: h.repo,
		Notifier: failingNotifier{}, Ledger: h.ledger, Rewards: fixedReward(1),
		Tracer: noopTracer(), RefundPolicy: "refund_twice",
	})
	assert.Error(t, err)
}

type failingNotifier struct{ err error }

func (n failingNotifier) Dispatch(context.Context, ndomain.Event) (*ndomain.Notification, error) {
	return nil, n.err
}

func (n failingNotifier) BroadcastAdmins(context.Context, ndomain.Event) (int, error) {
	return 0, n.err
}
