package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"ordercore/internal/service/order/domain"
)

// FileCancellation 先写申请再写订单标记，两步在同一事务内。
// pending_slot 的唯一索引是并发提交时的最终防线。
func (r *GormOrderRepository) FileCancellation(ctx context.Context, orderID string, build func(o *domain.Order) (*domain.CancellationRequest, error)) (*domain.CancellationRequest, *domain.Order, error) {
	var (
		req   *domain.CancellationRequest
		order *domain.Order
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		seen := observe(o)
		if req, err = build(o); err != nil {
			return err
		}
		if err := tx.Create(toCancellationModel(req)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.Wrapf(domain.ErrConflict, "order %s already has a pending cancellation request", o.OrderNumber)
			}
			return errors.Wrap(err, "insert cancellation request")
		}
		if err := saveGuarded(tx, seen, o, ""); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, order, nil
}

// ReviewCancellation 是审批的比较并交换：申请只在仍为加载时的状态时才会被更新。
func (r *GormOrderRepository) ReviewCancellation(ctx context.Context, requestID, note string, review func(req *domain.CancellationRequest, o *domain.Order) error) (*domain.CancellationRequest, *domain.Order, error) {
	var (
		req   *domain.CancellationRequest
		order *domain.Order
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m CancellationRequestModel
		if err := tx.Where("id = ?", requestID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(domain.ErrNotFound, "cancellation request %s", requestID)
			}
			return errors.Wrapf(err, "load cancellation request %s", requestID)
		}
		req = toDomainCancellation(&m)
		o, err := loadOrder(tx, req.OrderID)
		if err != nil {
			return err
		}
		seenOrder, seenStatus := observe(o), req.Status
		if err := review(req, o); err != nil {
			return err
		}

		next := toCancellationModel(req)
		res := tx.Model(&CancellationRequestModel{}).
			Where("id = ? AND status = ?", req.ID, string(seenStatus)).
			Updates(map[string]any{
				"status":       next.Status,
				"admin_note":   next.AdminNote,
				"reviewed_at":  next.ReviewedAt,
				"reviewed_by":  next.ReviewedBy,
				"pending_slot": next.PendingSlot,
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "update cancellation request %s", req.ID)
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(domain.ErrConflict, "cancellation request %s was already handled", req.ID)
		}
		if err := saveGuarded(tx, seenOrder, o, note); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, order, nil
}

func (r *GormOrderRepository) FindCancellation(ctx context.Context, id string) (*domain.CancellationRequest, error) {
	var m CancellationRequestModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "cancellation request %s", id)
		}
		return nil, errors.Wrapf(err, "load cancellation request %s", id)
	}
	return toDomainCancellation(&m), nil
}

func (r *GormOrderRepository) ListCancellations(ctx context.Context, filter domain.RequestFilter) ([]domain.CancellationRequest, int64, error) {
	var (
		models []CancellationRequestModel
		total  int64
	)
	q := requestQuery(r.db.WithContext(ctx).Model(&CancellationRequestModel{}), filter).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count cancellation requests")
	}
	if err := paginate(q.Order("created_at DESC"), filter.Offset, filter.Limit).Find(&models).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list cancellation requests")
	}
	out := make([]domain.CancellationRequest, 0, len(models))
	for i := range models {
		out = append(out, *toDomainCancellation(&models[i]))
	}
	return out, total, nil
}

func (r *GormOrderRepository) FileReturn(ctx context.Context, orderID string, build func(o *domain.Order) (*domain.Return, error)) (*domain.Return, *domain.Order, error) {
	var (
		ret   *domain.Return
		order *domain.Order
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if ret, err = build(o); err != nil {
			return err
		}
		// 每个订单最多一条未被驳回的退货
		var open int64
		err = tx.Model(&ReturnModel{}).
			Where("order_id = ? AND status IN ?", o.ID, []string{
				string(domain.ReturnPending), string(domain.ReturnApproved), string(domain.ReturnRefundCompleted),
			}).
			Count(&open).Error
		if err != nil {
			return errors.Wrapf(err, "count returns of %s", o.ID)
		}
		if open > 0 {
			return errors.Wrapf(domain.ErrConflict, "order %s already has a return", o.OrderNumber)
		}
		if err := tx.Create(toReturnModel(ret)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.Wrapf(domain.ErrConflict, "order %s already has a pending return", o.OrderNumber)
			}
			return errors.Wrap(err, "insert return")
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ret, order, nil
}

func (r *GormOrderRepository) ReviewReturn(ctx context.Context, returnID, note string, review func(ret *domain.Return, o *domain.Order) error) (*domain.Return, *domain.Order, error) {
	var (
		ret   *domain.Return
		order *domain.Order
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ReturnModel
		if err := tx.Where("id = ?", returnID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(domain.ErrNotFound, "return %s", returnID)
			}
			return errors.Wrapf(err, "load return %s", returnID)
		}
		ret = toDomainReturn(&m)
		o, err := loadOrder(tx, ret.OrderID)
		if err != nil {
			return err
		}
		seenOrder, seenStatus := observe(o), ret.Status
		if err := review(ret, o); err != nil {
			return err
		}

		next := toReturnModel(ret)
		res := tx.Model(&ReturnModel{}).
			Where("id = ? AND status = ?", ret.ID, string(seenStatus)).
			Updates(map[string]any{
				"status":        next.Status,
				"refund_amount": next.RefundAmount,
				"admin_notes":   next.AdminNotes,
				"reviewed_at":   next.ReviewedAt,
				"reviewed_by":   next.ReviewedBy,
				"refunded_at":   next.RefundedAt,
				"pending_slot":  next.PendingSlot,
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "update return %s", ret.ID)
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(domain.ErrConflict, "return %s was already handled", ret.ID)
		}
		if err := saveGuarded(tx, seenOrder, o, note); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ret, order, nil
}

func (r *GormOrderRepository) FindReturn(ctx context.Context, id string) (*domain.Return, error) {
	var m ReturnModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "return %s", id)
		}
		return nil, errors.Wrapf(err, "load return %s", id)
	}
	return toDomainReturn(&m), nil
}

func (r *GormOrderRepository) ListReturns(ctx context.Context, filter domain.RequestFilter) ([]domain.Return, int64, error) {
	var (
		models []ReturnModel
		total  int64
	)
	q := requestQuery(r.db.WithContext(ctx).Model(&ReturnModel{}), filter).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count returns")
	}
	if err := paginate(q.Order("created_at DESC"), filter.Offset, filter.Limit).Find(&models).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list returns")
	}
	out := make([]domain.Return, 0, len(models))
	for i := range models {
		out = append(out, *toDomainReturn(&models[i]))
	}
	return out, total, nil
}

func requestQuery(q *gorm.DB, f domain.RequestFilter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OrderID != "" {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	return q
}

// paginate limit 为 0 时不分页。
func paginate(q *gorm.DB, offset, limit int) *gorm.DB {
	if limit <= 0 {
		return q
	}
	return q.Offset(offset).Limit(limit)
}
