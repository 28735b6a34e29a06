package infrastructure

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"ordercore/internal/service/order/domain"
)

var terminalStatuses = []string{string(domain.StatusCancelled), string(domain.StatusReturned)}

// List 的状态过滤与展示状态一致：带着 pending 申请的订单只出现在 cancellation_requested 下。
func (r *GormOrderRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&OrderModel{})
	switch {
	case filter.Status == domain.DisplayCancellationRequested:
		q = q.Where("cancellation_status = ? AND status NOT IN ?", domain.CancellationRequested, terminalStatuses)
	case filter.Status != "":
		q = q.Where("status = ?", filter.Status)
		if !domain.Status(filter.Status).IsTerminal() {
			q = q.Where("cancellation_status <> ?", domain.CancellationRequested)
		}
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.PaymentStatus != "" {
		q = q.Where("payment_status = ?", filter.PaymentStatus)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("(order_number LIKE ? OR customer_name LIKE ? OR customer_email LIKE ?)", like, like, like)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	var models []OrderModel
	err := paginate(q.Preload("Items").Preload("Shipment").Order("created_at DESC"), filter.Offset, filter.Limit).Find(&models).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *toDomainOrder(&models[i]))
	}
	return orders, total, nil
}

// Summaries 不加载明细，供计数和统计使用。
func (r *GormOrderRepository) Summaries(ctx context.Context, userID string) ([]domain.Order, error) {
	q := r.db.WithContext(ctx).Model(&OrderModel{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var models []OrderModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "load order summaries")
	}
	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *toDomainOrder(&models[i]))
	}
	return orders, nil
}

func (r *GormOrderRepository) HistorySince(ctx context.Context, since time.Time) ([]domain.HistoryEntry, error) {
	var models []OrderStatusHistoryModel
	err := r.db.WithContext(ctx).Where("created_at >= ?", since).Order("created_at ASC, id ASC").Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	entries := make([]domain.HistoryEntry, 0, len(models))
	for i := range models {
		entries = append(entries, toDomainHistory(&models[i]))
	}
	return entries, nil
}
