// Package export 生成只读的订单报表，供财务和客服离线使用。
package export

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"ordercore/internal/pkg/logger"
	"ordercore/internal/service/order/domain"
)

// Locker 保证同一时刻只有一个导出任务在跑。
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Exporter 把最近 lookback 时间内的订单和状态账本写成 CSV。
type Exporter struct {
	reader   domain.OrderReader
	locker   Locker
	dir      string
	lookback time.Duration
	now      func() time.Time
}

func NewExporter(reader domain.OrderReader, locker Locker, dir string, lookback time.Duration) *Exporter {
	return &Exporter{reader: reader, locker: locker, dir: dir, lookback: lookback, now: time.Now}
}

// Result 是一次导出写出的文件。
type Result struct {
	OrdersFile  string
	HistoryFile string
	Orders      int
	Entries     int
}

var orderHeader = []string{
	"order_id", "order_number", "user_id", "customer_name", "customer_email",
	"status", "display_status", "payment_status", "cancellation_status",
	"subtotal", "shipping_cost", "discount_amount", "total_amount", "coupon_code",
	"item_count", "carrier", "tracking_number", "created_at", "updated_at",
}

var historyHeader = []string{"entry_id", "order_id", "status", "note", "created_at"}

func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	if err := e.locker.Lock(ctx); err != nil {
		return nil, errors.Wrap(err, "acquire export lock")
	}
	defer func() {
		if err := e.locker.Unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to release export lock")
		}
	}()

	now := e.now().UTC()
	since := now.Add(-e.lookback)
	orders, _, err := e.reader.List(ctx, domain.ListFilter{From: &since})
	if err != nil {
		return nil, err
	}
	entries, err := e.reader.HistorySince(ctx, since)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create export dir %s", e.dir)
	}
	stamp := now.Format("20060102T150405Z")
	res := &Result{
		OrdersFile:  filepath.Join(e.dir, "orders-"+stamp+".csv"),
		HistoryFile: filepath.Join(e.dir, "order-status-history-"+stamp+".csv"),
		Orders:      len(orders),
		Entries:     len(entries),
	}
	if err := writeAtomically(res.OrdersFile, func(w io.Writer) error { return WriteOrders(w, orders) }); err != nil {
		return nil, err
	}
	if err := writeAtomically(res.HistoryFile, func(w io.Writer) error { return WriteHistory(w, entries) }); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().
		Str("orders_file", res.OrdersFile).
		Int("orders", res.Orders).
		Int("entries", res.Entries).
		Msg("order export written")
	return res, nil
}

// WriteOrders 每个订单一行，金额保留两位小数。
func WriteOrders(w io.Writer, orders []domain.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for i := range orders {
		o := &orders[i]
		var carrier, tracking string
		if o.Shipment != nil {
			carrier, tracking = o.Shipment.Carrier, o.Shipment.TrackingNumber
		}
		row := []string{
			o.ID, o.OrderNumber, o.UserID, o.CustomerName, o.CustomerEmail,
			string(o.Status), o.DisplayStatus(), string(o.PaymentStatus), string(o.CancellationStatus),
			o.Subtotal.StringFixed(2), o.ShippingCost.StringFixed(2), o.DiscountAmount.StringFixed(2),
			o.TotalAmount.StringFixed(2), o.CouponCode,
			strconv.Itoa(len(o.Items)), carrier, tracking,
			o.CreatedAt.UTC().Format(time.RFC3339), o.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write order %s", o.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush orders")
}

func WriteHistory(w io.Writer, entries []domain.HistoryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(historyHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ID, 10), e.OrderID, string(e.Status), e.Note,
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write history entry %d", e.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush history")
}

// writeAtomically 先写临时文件再改名，读者不会看到半个文件。
func writeAtomically(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "publish %s", path)
}
