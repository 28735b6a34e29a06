package projection

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercore/internal/service/order/domain"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func order(id, user string, status domain.Status, cs domain.CancellationStatus, total string, created time.Time) domain.Order {
	return domain.Order{
		ID:                 id,
		UserID:             user,
		Status:             status,
		CancellationStatus: cs,
		TotalAmount:        decimal.RequireFromString(total),
		CreatedAt:          created,
	}
}

func TestCountByStatus_UsesDisplayStatus(t *testing.T) {
	orders := []domain.Order{
		order("1", "u1", domain.StatusPending, domain.CancellationNone, "10", t0),
		order("2", "u1", domain.StatusPending, domain.CancellationRequested, "10", t0),
		order("3", "u2", domain.StatusCancelled, domain.CancellationApproved, "10", t0),
		order("4", "u2", domain.StatusDelivered, domain.CancellationRejected, "10", t0),
	}
	counts := CountByStatus(orders)

	assert.Equal(t, 4, counts["total"])
	assert.Equal(t, 1, counts["pending"])
	assert.Equal(t, 1, counts[domain.DisplayCancellationRequested])
	assert.Equal(t, 1, counts["cancelled"])
	assert.Equal(t, 1, counts["delivered"])
	assert.Equal(t, 0, counts["returned"], "every bucket is present even when empty")

	sum := 0
	for k, v := range counts {
		if k != "total" {
			sum += v
		}
	}
	assert.Equal(t, counts["total"], sum)
}

func TestCountByStatus_Empty(t *testing.T) {
	counts := CountByStatus(nil)
	assert.Equal(t, 0, counts["total"])
	assert.Len(t, counts, 11)
}

func TestUserStatistics(t *testing.T) {
	orders := []domain.Order{
		order("1", "u1", domain.StatusDelivered, domain.CancellationNone, "50.25", t0),
		order("2", "u1", domain.StatusCancelled, domain.CancellationApproved, "100", t0.Add(time.Hour)),
		order("3", "u1", domain.StatusProcessing, domain.CancellationRequested, "20", t0.Add(2*time.Hour)),
		order("4", "u1", domain.StatusReturned, domain.CancellationNone, "30", t0.Add(-time.Hour)),
		order("5", "u2", domain.StatusDelivered, domain.CancellationNone, "999", t0.Add(5*time.Hour)),
	}
	stats := UserStatistics("u1", orders)

	assert.Equal(t, 4, stats.TotalOrders)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, 1, stats.Returned)
	assert.Equal(t, 1, stats.ActiveOrders)
	assert.Equal(t, 1, stats.CancellationRequested)
	assert.True(t, decimal.RequireFromString("70.25").Equal(stats.TotalSpent), stats.TotalSpent.String())
	require.NotNil(t, stats.LastOrderAt)
	assert.Equal(t, t0.Add(2*time.Hour), *stats.LastOrderAt)
}

func TestUserStatistics_NoOrders(t *testing.T) {
	stats := UserStatistics("nobody", nil)
	assert.Zero(t, stats.TotalOrders)
	assert.True(t, stats.TotalSpent.IsZero())
	assert.Nil(t, stats.LastOrderAt)
}

func TestTimeline_OrdersEntriesAndAppendsPendingSteps(t *testing.T) {
	current := &domain.Order{Status: domain.StatusProcessing}
	entries := []domain.HistoryEntry{
		{ID: 3, Status: domain.StatusProcessing, CreatedAt: t0.Add(2 * time.Hour)},
		{ID: 1, Status: domain.StatusPending, Note: "order placed", CreatedAt: t0},
		{ID: 2, Status: domain.StatusConfirmed, CreatedAt: t0.Add(time.Hour)},
	}
	steps := Timeline(current, entries)

	var statuses []domain.Status
	for _, s := range steps {
		statuses = append(statuses, s.Status)
	}
	assert.Equal(t, []domain.Status{
		domain.StatusPending, domain.StatusConfirmed, domain.StatusProcessing,
		domain.StatusPacked, domain.StatusShipped, domain.StatusOutForDelivery, domain.StatusDelivered,
	}, statuses)
	assert.True(t, steps[0].Reached)
	assert.Equal(t, "order placed", steps[0].Note)
	assert.False(t, steps[3].Reached)
	assert.Nil(t, steps[3].At)
	assert.Equal(t, int64(3), entries[0].ID, "input slice is not reordered")
}

func TestTimeline_SameTimestampFallsBackToID(t *testing.T) {
	current := &domain.Order{Status: domain.StatusCancelled}
	entries := []domain.HistoryEntry{
		{ID: 2, Status: domain.StatusCancelled, CreatedAt: t0},
		{ID: 1, Status: domain.StatusPending, CreatedAt: t0},
	}
	steps := Timeline(current, entries)
	require.Len(t, steps, 2)
	assert.Equal(t, domain.StatusPending, steps[0].Status)
	assert.Equal(t, domain.StatusCancelled, steps[1].Status)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, size                      int
		wantOffset, wantLimit, wantPage int
	}{
		{0, 0, 0, DefaultPageSize, 1},
		{3, 10, 20, 10, 3},
		{2, 500, MaxPageSize, MaxPageSize, 2},
		{-4, -1, 0, DefaultPageSize, 1},
	}
	for _, tt := range tests {
		offset, limit, page := NormalizePage(tt.page, tt.size)
		assert.Equal(t, tt.wantOffset, offset)
		assert.Equal(t, tt.wantLimit, limit)
		assert.Equal(t, tt.wantPage, page)
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage[string](nil, 41, 1, 20)
	assert.NotNil(t, p.Items)
	assert.Equal(t, 3, p.TotalPages)

	p = NewPage([]string{"a"}, 0, 1, 20)
	assert.Equal(t, 0, p.TotalPages)
}
