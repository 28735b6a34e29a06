package application_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"

	"ordercore/internal/pkg/identity"
	napp "ordercore/internal/service/notification/application"
	ndomain "ordercore/internal/service/notification/domain"
	ninfra "ordercore/internal/service/notification/infrastructure"
	"ordercore/internal/service/order/application"
	"ordercore/internal/service/order/domain"
	"ordercore/internal/service/order/infrastructure"
	"ordercore/internal/service/order/infrastructure/adapter"
)

var (
	t0       = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	admin    = identity.Actor{UserID: "admin-1", Role: identity.RoleAdmin}
	customer = identity.Actor{UserID: "u-1", Role: identity.RoleUser}
	stranger = identity.Actor{UserID: "u-2", Role: identity.RoleUser}
)

type fakeLedger struct {
	mu          sync.Mutex
	rewards     map[string]int64
	refunds     map[string]decimal.Decimal
	rewardCalls int
	refundCalls int
	err         error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rewards: map[string]int64{}, refunds: map[string]decimal.Decimal{}}
}

func (l *fakeLedger) CreditDeliveryReward(_ context.Context, orderID, _ string, points int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rewardCalls++
	if l.err != nil {
		return false, l.err
	}
	if _, ok := l.rewards[orderID]; ok {
		return false, nil
	}
	l.rewards[orderID] = points
	return true, nil
}

func (l *fakeLedger) QueueRefund(_ context.Context, orderID, _ string, amount decimal.Decimal, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refundCalls++
	if l.err != nil {
		return false, l.err
	}
	if _, ok := l.refunds[orderID]; ok {
		return false, nil
	}
	l.refunds[orderID] = amount
	return true, nil
}

type fakeFeed struct {
	mu     sync.Mutex
	events []domain.OrderChanged
	err    error
}

func (f *fakeFeed) Publish(_ context.Context, e domain.OrderChanged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeFeed) kinds() []domain.ChangeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeKind, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Kind)
	}
	return out
}

type fakeInventory struct {
	mu       sync.Mutex
	released map[string]map[string]int
}

func (f *fakeInventory) ReleaseStock(_ context.Context, orderID string, items map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released == nil {
		f.released = map[string]map[string]int{}
	}
	f.released[orderID] = items
	return nil
}

type fixedReward int64

func (r fixedReward) Points(context.Context, *domain.Order) (int64, error) { return int64(r), nil }

type harness struct {
	svc       *application.OrderApplicationService
	repo      *infrastructure.GormOrderRepository
	db        *gorm.DB
	ledger    *fakeLedger
	feed      *fakeFeed
	inventory *fakeInventory

	mu  sync.Mutex
	now time.Time
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(time.Second)
	return h.now
}

func newHarness(t *testing.T, customize ...func(*application.Deps)) *harness {
	t.Helper()
	db, err := infrastructure.OpenSQLite(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	return newHarnessOn(t, db, customize...)
}

// newConcurrentHarness 使用临时目录中的文件库，多个事务可以真正并发。
func newConcurrentHarness(t *testing.T, customize ...func(*application.Deps)) *harness {
	t.Helper()
	db, err := infrastructure.OpenSQLiteFile(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	return newHarnessOn(t, db, customize...)
}

func newHarnessOn(t *testing.T, db *gorm.DB, customize ...func(*application.Deps)) *harness {
	t.Helper()
	var err error
	require.NoError(t, infrastructure.AutoMigrate(db, true))
	require.NoError(t, ninfra.AutoMigrate(db, true))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	for _, p := range []ninfra.ProfileModel{
		{ID: "u-1", Role: "user", IsActive: true},
		{ID: "u-2", Role: "user", IsActive: true},
		{ID: "admin-1", Role: "admin", IsActive: true},
		{ID: "admin-2", Role: "admin", IsActive: true},
		{ID: "admin-3", Role: "admin", IsActive: false},
		{ID: "aff-1", Role: "affiliate", IsActive: true},
	} {
		require.NoError(t, db.Create(&p).Error)
	}
	require.NoError(t, db.Create(&infrastructure.CouponModel{Code: "SPRING10", AffiliateUserID: "aff-1"}).Error)

	h := &harness{
		repo:      infrastructure.NewGormOrderRepository(db),
		db:        db,
		ledger:    newFakeLedger(),
		feed:      &fakeFeed{},
		inventory: &fakeInventory{},
		now:       t0,
	}
	tracer := noopTracer()
	dispatcher := napp.NewDispatcher(ninfra.NewGormNotificationRepository(db), ninfra.NewGormDirectory(db), nil, tracer).
		WithClock(h.clock)
	deps := application.Deps{
		Orders:        h.repo,
		Cancellations: h.repo,
		Returns:       h.repo,
		Reader:        h.repo,
		Notifier:      dispatcher,
		Feed:          h.feed,
		Ledger:        h.ledger,
		Inventory:     h.inventory,
		Rewards:       fixedReward(42),
		Affiliates:    adapter.NewGormAffiliateDirectory(db),
		Tracer:        tracer,
		Clock:         h.clock,
	}
	for _, c := range customize {
		c(&deps)
	}
	h.svc, err = application.NewOrderApplicationService(deps)
	require.NoError(t, err)
	return h
}

func noopTracer() trace.Tracer { return noop.NewTracerProvider().Tracer("test") }

func (h *harness) seed(t *testing.T, number, user string, status domain.Status, coupon string) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:            uuid.NewString(),
		OrderNumber:   number,
		UserID:        user,
		CustomerName:  "Ada Lovelace",
		CustomerEmail: user + "@example.com",
		ShippingAddress: domain.Address{
			Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
		},
		Subtotal:       decimal.RequireFromString("100.00"),
		ShippingCost:   decimal.RequireFromString("5.00"),
		DiscountAmount: decimal.RequireFromString("10.00"),
		TotalAmount:    decimal.RequireFromString("95.00"),
		CouponCode:     coupon,
		Status:         status,
		PaymentStatus:  domain.PaymentPaid,
		PaymentMethod:  "card",
		Items: []domain.OrderItem{{
			ID: uuid.NewString(), ProductID: "sku-1", ProductName: "Mug", Quantity: 2,
			UnitPrice: decimal.RequireFromString("50.00"), TotalPrice: decimal.RequireFromString("100.00"),
		}},
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	require.NoError(t, h.repo.Create(context.Background(), o))
	return o
}

func (h *harness) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := h.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

// notifications 返回某个收件人收到的某类通知条数。
func (h *harness) notifications(t *testing.T, userID string, typ ndomain.Type) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&ninfra.NotificationModel{}).
		Where("user_id = ? AND type = ?", userID, string(typ)).Count(&n).Error)
	return n
}

func (h *harness) setPayment(t *testing.T, id string, ps domain.PaymentStatus) {
	t.Helper()
	require.NoError(t, h.db.Model(&infrastructure.OrderModel{}).
		Where("id = ?", id).Update("payment_status", string(ps)).Error)
}
