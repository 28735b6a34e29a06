package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercore/internal/service/order/domain"
)

func TestList_FiltersByDisplayStatus(t *testing.T) {
	repo := NewGormOrderRepository(newTestDB(t))
	ctx := context.Background()
	plain := seedOrder(t, repo, "ORD-1", "u-1", domain.StatusConfirmed, t0)
	requested := seedOrder(t, repo, "ORD-2", "u-1", domain.StatusConfirmed, t0.Add(time.Hour))
	seedOrder(t, repo, "ORD-3", "u-2", domain.StatusDelivered, t0.Add(2*time.Hour))

	_, _, err := repo.FileCancellation(ctx, requested.ID, func(o *domain.Order) (*domain.CancellationRequest, error) {
		if err := o.RequestCancellation("u-1", t0); err != nil {
			return nil, err
		}
		return domain.NewCancellationRequest(uuid.NewString(), o, "u-1", "Other", "", t0)
	})
	require.NoError(t, err)

	confirmed, total, err := repo.List(ctx, domain.ListFilter{Status: string(domain.StatusConfirmed)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, confirmed, 1)
	assert.Equal(t, plain.ID, confirmed[0].ID)

	pending, total, err := repo.List(ctx, domain.ListFilter{Status: domain.DisplayCancellationRequested})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, requested.ID, pending[0].ID)
}

func TestList_SearchDateRangeAndPaging(t *testing.T) {
	repo := NewGormOrderRepository(newTestDB(t))
	ctx := context.Background()
	for i, n := range []string{"ORD-100", "ORD-101", "ORD-102", "ORD-200"} {
		seedOrder(t, repo, n, "u-1", domain.StatusPending, t0.Add(time.Duration(i)*time.Hour))
	}

	found, total, err := repo.List(ctx, domain.ListFilter{Search: "ORD-10", Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, found, 2)
	assert.Equal(t, "ORD-102", found[0].OrderNumber, "newest first")
	require.Len(t, found[0].Items, 1)

	from, to := t0.Add(time.Hour), t0.Add(3*time.Hour)
	ranged, total, err := repo.List(ctx, domain.ListFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, ranged, 2)

	none, total, err := repo.List(ctx, domain.ListFilter{UserID: "someone-else"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestSummariesAndHistorySince(t *testing.T) {
	repo := NewGormOrderRepository(newTestDB(t))
	ctx := context.Background()
	a := seedOrder(t, repo, "ORD-1", "u-1", domain.StatusPending, t0)
	seedOrder(t, repo, "ORD-2", "u-2", domain.StatusPending, t0.Add(time.Hour))

	_, err := repo.Update(ctx, a.ID, "", func(o *domain.Order) error {
		return o.Advance(domain.StatusConfirmed, t0.Add(48*time.Hour))
	})
	require.NoError(t, err)

	mine, err := repo.Summaries(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	all, err := repo.Summaries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := repo.HistorySince(ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.StatusConfirmed, recent[0].Status)
	assert.Equal(t, a.ID, recent[0].OrderID)
}
