// Package projection 包含看板使用的读模型。
// 这里的函数都是对已存储数据的纯归约，不是权威数据源，每次读取时重新计算。
package projection

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ordercore/internal/service/order/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// StatusCounts 以展示状态为键计数，"total" 为总数。
type StatusCounts map[string]int

func CountByStatus(orders []domain.Order) StatusCounts {
	counts := StatusCounts{"total": 0}
	for _, s := range []domain.Status{
		domain.StatusPending, domain.StatusConfirmed, domain.StatusProcessing, domain.StatusPacked,
		domain.StatusShipped, domain.StatusOutForDelivery, domain.StatusDelivered,
		domain.StatusCancelled, domain.StatusReturned,
	} {
		counts[string(s)] = 0
	}
	counts[domain.DisplayCancellationRequested] = 0

	for i := range orders {
		counts[orders[i].DisplayStatus()]++
		counts["total"]++
	}
	return counts
}

// UserStats 是单个顾客的统计。
type UserStats struct {
	UserID                string          `json:"userId"`
	TotalOrders           int             `json:"totalOrders"`
	ActiveOrders          int             `json:"activeOrders"`
	Delivered             int             `json:"delivered"`
	Cancelled             int             `json:"cancelled"`
	Returned              int             `json:"returned"`
	CancellationRequested int             `json:"cancellationRequested"`
	TotalSpent            decimal.Decimal `json:"totalSpent"`
	LastOrderAt           *time.Time      `json:"lastOrderAt,omitempty"`
}

// UserStatistics 只统计属于 userID 的订单；已取消和已退货的订单不计入消费金额。
func UserStatistics(userID string, orders []domain.Order) UserStats {
	stats := UserStats{UserID: userID, TotalSpent: decimal.Zero}
	for i := range orders {
		o := &orders[i]
		if o.UserID != userID {
			continue
		}
		stats.TotalOrders++
		switch o.Status {
		case domain.StatusDelivered:
			stats.Delivered++
		case domain.StatusCancelled:
			stats.Cancelled++
		case domain.StatusReturned:
			stats.Returned++
		default:
			stats.ActiveOrders++
		}
		if o.CancellationStatus == domain.CancellationRequested && !o.Status.IsTerminal() {
			stats.CancellationRequested++
		}
		if !o.Status.IsTerminal() {
			stats.TotalSpent = stats.TotalSpent.Add(o.TotalAmount)
		}
		if stats.LastOrderAt == nil || o.CreatedAt.After(*stats.LastOrderAt) {
			t := o.CreatedAt
			stats.LastOrderAt = &t
		}
	}
	return stats
}

// TimelineStep 是时间线上的一个节点。Reached 为 false 的节点是尚未到达的履约阶段。
type TimelineStep struct {
	Status  domain.Status `json:"status"`
	At      *time.Time    `json:"at,omitempty"`
	Note    string        `json:"note,omitempty"`
	Reached bool          `json:"reached"`
}

// Timeline 用账本重建时间线，而不是从可变的 updated_at 推导。
func Timeline(current *domain.Order, entries []domain.HistoryEntry) []TimelineStep {
	sorted := make([]domain.HistoryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	steps := make([]TimelineStep, 0, len(sorted))
	for _, e := range sorted {
		at := e.CreatedAt
		steps = append(steps, TimelineStep{Status: e.Status, At: &at, Note: e.Note, Reached: true})
	}
	if current == nil || current.Status.IsTerminal() {
		return steps
	}
	for next, ok := current.Status.Next(); ok; next, ok = next.Next() {
		steps = append(steps, TimelineStep{Status: next})
	}
	return steps
}

// Page 是分页结果。
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// NormalizePage 把外部传入的页码和页大小收敛到合法范围，并给出 offset。
func NormalizePage(page, size int) (offset, limit, normPage int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return (page - 1) * size, size, page
}

func NewPage[T any](items []T, total int64, page, size int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Page[T]{Items: items, Total: total, Page: page, PageSize: size, TotalPages: pages}
}
