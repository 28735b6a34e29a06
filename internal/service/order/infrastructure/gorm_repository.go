package infrastructure

import (
	"context"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ordercore/internal/service/order/domain"
)

// GormOrderRepository 实现订单、申请和读模型的全部持久化接口。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// observed 是加载时看到的订单，写回时三个状态字段作为 WHERE 条件，其余用于判断是否有修改。
type observed struct {
	status   domain.Status
	cancel   domain.CancellationStatus
	payment  domain.PaymentStatus
	columns  map[string]any
	shipment *domain.Shipment
}

func observe(o *domain.Order) observed {
	seen := observed{status: o.Status, cancel: o.CancellationStatus, payment: o.PaymentStatus, columns: orderColumns(o)}
	if o.Shipment != nil {
		s := *o.Shipment
		seen.shipment = &s
	}
	return seen
}

func orderColumns(o *domain.Order) map[string]any {
	return map[string]any{
		"status":              string(o.Status),
		"cancellation_status": string(o.CancellationStatus),
		"payment_status":      string(o.PaymentStatus),
		"payment_method":      o.PaymentMethod,
		"updated_at":          o.UpdatedAt,
		"confirmed_at":        o.ConfirmedAt,
		"shipped_at":          o.ShippedAt,
		"delivered_at":        o.DeliveredAt,
		"cancelled_at":        o.CancelledAt,
		"returned_at":         o.ReturnedAt,
	}
}

// Create 由结账系统导入订单，同时写入第一条账本记录。
func (r *GormOrderRepository) Create(ctx context.Context, o *domain.Order) error {
	if err := o.CheckAmounts(); err != nil {
		return err
	}
	if o.CancellationStatus == "" {
		o.CancellationStatus = domain.CancellationNone
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toOrderModel(o)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.Wrapf(domain.ErrConflict, "order %s already exists", o.OrderNumber)
			}
			return errors.Wrap(err, "insert order")
		}
		return appendHistory(tx, o.ID, o.Status, "order placed", o.CreatedAt)
	})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return loadOrder(r.db.WithContext(ctx), id)
}

func (r *GormOrderRepository) Update(ctx context.Context, id, note string, mutate func(o *domain.Order) error) (*domain.Order, error) {
	var out *domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(tx, id)
		if err != nil {
			return err
		}
		seen := observe(o)
		if err := mutate(o); err != nil {
			return err
		}
		if err := saveGuarded(tx, seen, o, note); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (r *GormOrderRepository) History(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	var models []OrderStatusHistoryModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC, id ASC").Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "load history of %s", orderID)
	}
	entries := make([]domain.HistoryEntry, 0, len(models))
	for i := range models {
		entries = append(entries, toDomainHistory(&models[i]))
	}
	return entries, nil
}

func loadOrder(tx *gorm.DB, id string) (*domain.Order, error) {
	var m OrderModel
	err := tx.Preload("Items").Preload("Shipment").Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "order %s", id)
		}
		return nil, errors.Wrapf(err, "load order %s", id)
	}
	return toDomainOrder(&m), nil
}

// saveGuarded 以加载时的三个状态字段为条件写回订单，0 行说明有并发写入赢了，返回 ErrConflict。
// 订单没有任何修改时直接跳过。
func saveGuarded(tx *gorm.DB, seen observed, o *domain.Order, note string) error {
	columns := orderColumns(o)
	shipmentChanged := o.Shipment != nil && !reflect.DeepEqual(seen.shipment, o.Shipment)
	if reflect.DeepEqual(seen.columns, columns) && !shipmentChanged {
		return nil
	}
	res := tx.Model(&OrderModel{}).
		Where("id = ? AND status = ? AND cancellation_status = ? AND payment_status = ?",
			o.ID, seen.status, seen.cancel, seen.payment).
		Updates(columns)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update order %s", o.ID)
	}
	if res.RowsAffected == 0 {
		return classifyLostUpdate(tx, o)
	}

	if shipmentChanged {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"carrier", "tracking_number", "status", "updated_at"}),
		}).Create(toShipmentModel(o.ID, o.Shipment)).Error
		if err != nil {
			return errors.Wrapf(err, "upsert shipment of %s", o.ID)
		}
	}

	if o.Status != seen.status {
		return appendHistory(tx, o.ID, o.Status, note, o.UpdatedAt)
	}
	return nil
}

// classifyLostUpdate 重新读取当前行，区分订单已不存在和被并发修改两种情况。
func classifyLostUpdate(tx *gorm.DB, o *domain.Order) error {
	var current OrderModel
	err := tx.Select("id", "status").Where("id = ?", o.ID).Take(&current).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrapf(domain.ErrNotFound, "order %s", o.ID)
	case err != nil:
		return errors.Wrapf(err, "re-read order %s", o.ID)
	}
	return errors.Wrapf(domain.ErrConflict, "order %s was modified concurrently and is now %s", o.OrderNumber, current.Status)
}

func appendHistory(tx *gorm.DB, orderID string, status domain.Status, note string, at time.Time) error {
	entry := &OrderStatusHistoryModel{OrderID: orderID, Status: string(status), Note: note, CreatedAt: at}
	return errors.Wrapf(tx.Create(entry).Error, "append history of %s", orderID)
}
