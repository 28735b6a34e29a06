package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercore/internal/service/order/application"
	"ordercore/internal/service/order/domain"
)

// fakeReader 模拟服务端的权威状态。
type fakeReader struct {
	mu     sync.Mutex
	orders map[string]application.OrderView
	gets   int
}

func newFakeReader(views ...application.OrderView) *fakeReader {
	r := &fakeReader{orders: map[string]application.OrderView{}}
	for _, v := range views {
		r.orders[v.ID] = v
	}
	return r
}

func (r *fakeReader) set(v application.OrderView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[v.ID] = v
}

func (r *fakeReader) drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
}

func (r *fakeReader) Get(_ context.Context, id string) (application.OrderView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	v, ok := r.orders[id]
	if !ok {
		return application.OrderView{}, errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	return v, nil
}

func (r *fakeReader) List(context.Context) ([]application.OrderView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]application.OrderView, 0, len(r.orders))
	for _, v := range r.orders {
		out = append(out, v)
	}
	return out, nil
}

var t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func view(id string, status domain.Status, created time.Time) application.OrderView {
	return application.OrderView{
		ID: id, OrderNumber: "ORD-" + id, UserID: "u-1",
		Status: status, DisplayStatus: string(status),
		CancellationStatus: domain.CancellationNone,
		PaymentStatus:      domain.PaymentPaid,
		CreatedAt:          created,
	}
}

func loadedStore(t *testing.T, views ...application.OrderView) (*Store, *fakeReader) {
	t.Helper()
	reader := newFakeReader(views...)
	s := NewStore(reader)
	require.NoError(t, s.Resync(context.Background()))
	return s, reader
}

// gated 返回一个在 release 之前一直阻塞的命令。
func gated(orderID string, optimistic func(v *application.OrderView), result func() (*application.OrderView, error)) (Command, chan struct{}) {
	release := make(chan struct{})
	return Command{
		OrderID:    orderID,
		Optimistic: optimistic,
		Execute: func(ctx context.Context) (*application.OrderView, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return result()
		},
	}, release
}

func TestSubmit_ShowsOptimisticViewThenServerResult(t *testing.T) {
	s, _ := loadedStore(t, view("o-1", domain.StatusPending, t0))
	server := view("o-1", domain.StatusConfirmed, t0)
	server.PaymentMethod = "card"

	cmd, release := gated("o-1", func(v *application.OrderView) { v.Status = domain.StatusConfirmed },
		func() (*application.OrderView, error) { return &server, nil })

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), cmd)
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, pending, _ := s.Get("o-1")
		return pending
	}, time.Second, 5*time.Millisecond)
	v, _, _ := s.Get("o-1")
	assert.Equal(t, domain.StatusConfirmed, v.Status)

	_, err := s.Submit(context.Background(), Command{OrderID: "o-1"})
	assert.ErrorIs(t, err, ErrCommandPending)

	close(release)
	require.NoError(t, <-done)
	v, pending, ok := s.Get("o-1")
	require.True(t, ok)
	assert.False(t, pending)
	assert.Equal(t, "card", v.PaymentMethod, "server view replaces local guess")
}

func TestSubmit_FailureRollsBack(t *testing.T) {
	s, reader := loadedStore(t, view("o-1", domain.StatusPending, t0))
	cmd := Command{
		OrderID:    "o-1",
		Optimistic: func(v *application.OrderView) { v.Status = domain.StatusConfirmed },
		Execute: func(context.Context) (*application.OrderView, error) {
			return nil, errors.New("network unreachable")
		},
	}

	_, err := s.Submit(context.Background(), cmd)
	require.Error(t, err)
	v, pending, _ := s.Get("o-1")
	assert.False(t, pending)
	assert.Equal(t, domain.StatusPending, v.Status)
	assert.Zero(t, reader.gets, "transport errors do not trigger a refetch")
}

func TestSubmit_StaleRejectionRefetches(t *testing.T) {
	s, reader := loadedStore(t, view("o-1", domain.StatusConfirmed, t0))
	// 另一个管理员已经把订单发出
	reader.set(view("o-1", domain.StatusShipped, t0))

	cmd := Transition(rejecting{err: errors.Wrap(domain.ErrInvalidTransition, "cannot move shipped to packed")}, "o-1", domain.StatusPacked, "")
	_, err := s.Submit(context.Background(), cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	v, pending, _ := s.Get("o-1")
	assert.False(t, pending)
	assert.Equal(t, domain.StatusShipped, v.Status)
}

func TestSubmit_VanishedOrderIsRemoved(t *testing.T) {
	s, reader := loadedStore(t, view("o-1", domain.StatusConfirmed, t0))
	reader.drop("o-1")

	_, err := s.Submit(context.Background(), ConfirmDelivery(rejecting{err: domain.ErrNotFound}, "o-1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, ok := s.Get("o-1")
	assert.False(t, ok)
}

func TestSubmit_NilResultReadsBack(t *testing.T) {
	s, reader := loadedStore(t, view("o-1", domain.StatusPending, t0))
	afterFiling := view("o-1", domain.StatusPending, t0)
	afterFiling.CancellationStatus = domain.CancellationRequested
	afterFiling.DisplayStatus = string(domain.CancellationRequested)

	cmd := FileCancellation(accepting{onFile: func() { reader.set(afterFiling) }}, "o-1", "changed my mind", "")
	got, err := s.Submit(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.CancellationRequested, got.CancellationStatus)
	assert.Equal(t, 1, reader.gets)
}

func TestSubmit_UnknownOrder(t *testing.T) {
	s, _ := loadedStore(t)
	_, err := s.Submit(context.Background(), Command{OrderID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyChange_RespectsPendingCommand(t *testing.T) {
	s, _ := loadedStore(t, view("o-1", domain.StatusConfirmed, t0))
	change := domain.OrderChanged{
		OrderID: "o-1", Status: domain.StatusPacked, DisplayStatus: "packed",
		CancellationStatus: domain.CancellationNone, PaymentStatus: domain.PaymentPaid,
	}

	s.ApplyChange(domain.OrderChanged{OrderID: "unknown", Status: domain.StatusShipped})
	assert.Len(t, s.Orders(), 1, "changes for unloaded orders are ignored")

	cmd, release := gated("o-1", func(v *application.OrderView) { v.Status = domain.StatusCancelled },
		func() (*application.OrderView, error) { return nil, errors.New("timeout") })
	done := make(chan struct{})
	go func() {
		_, _ = s.Submit(context.Background(), cmd)
		close(done)
	}()
	require.Eventually(t, func() bool {
		_, pending, _ := s.Get("o-1")
		return pending
	}, time.Second, 5*time.Millisecond)

	s.ApplyChange(change)
	v, _, _ := s.Get("o-1")
	assert.Equal(t, domain.StatusCancelled, v.Status, "in-flight view is kept")

	close(release)
	<-done
	v, _, _ = s.Get("o-1")
	assert.Equal(t, domain.StatusPacked, v.Status, "rollback lands on the pushed state")
}

func TestResync(t *testing.T) {
	s, reader := loadedStore(t,
		view("o-1", domain.StatusPending, t0),
		view("o-2", domain.StatusPending, t0.Add(time.Hour)),
	)
	orders := s.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "o-2", orders[0].ID, "newest first")

	reader.drop("o-1")
	reader.set(view("o-2", domain.StatusShipped, t0.Add(time.Hour)))
	reader.set(view("o-3", domain.StatusPending, t0.Add(2*time.Hour)))
	require.NoError(t, s.Resync(context.Background()))

	orders = s.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, []string{"o-3", "o-2"}, []string{orders[0].ID, orders[1].ID})
	assert.Equal(t, domain.StatusShipped, orders[1].Status)
}

// rejecting 让每个命令都以 err 失败。
type rejecting struct{ err error }

func (r rejecting) Transition(context.Context, string, domain.Status, string) (*application.OrderView, error) {
	return nil, r.err
}

func (r rejecting) ConfirmDelivery(context.Context, string) (*application.OrderView, error) {
	return nil, r.err
}

func (r rejecting) FileCancellation(context.Context, string, string, string) error {
	return r.err
}

func (r rejecting) ApproveCancellation(context.Context, string) error {
	return r.err
}

func (r rejecting) RejectCancellation(context.Context, string, string) error {
	return r.err
}

type accepting struct{ onFile func() }

func (a accepting) Transition(context.Context, string, domain.Status, string) (*application.OrderView, error) {
	return nil, nil
}

func (a accepting) ConfirmDelivery(context.Context, string) (*application.OrderView, error) {
	return nil, nil
}

func (a accepting) FileCancellation(context.Context, string, string, string) error {
	a.onFile()
	return nil
}

func (a accepting) ApproveCancellation(context.Context, string) error {
	return nil
}

func (a accepting) RejectCancellation(context.Context, string, string) error {
	return nil
}
