package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needtofly/dodoktora/pkg/logging"
)

func TestSweeperCancelsExpiredHolds(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository().WithNow(func() time.Time { return now })

	seed := []*Booking{
		{ID: "stale", VisitType: VisitRemoteConsult, Date: now.Add(24 * time.Hour), Status: StatusPending, PaymentStatus: PaymentUnpaid, CreatedAt: now.Add(-time.Hour)},
		{ID: "fresh", VisitType: VisitRemoteConsult, Date: now.Add(25 * time.Hour), Status: StatusPending, PaymentStatus: PaymentUnpaid, CreatedAt: now.Add(-5 * time.Minute)},
		{ID: "paid", VisitType: VisitRemoteConsult, Date: now.Add(26 * time.Hour), Status: StatusConfirmed, PaymentStatus: PaymentPaid, CreatedAt: now.Add(-2 * time.Hour)},
	}
	for _, b := range seed {
		require.NoError(t, repo.Reserve(context.Background(), b, 0))
	}

	var sweptCount int64
	sweeper := NewSweeper(repo, 20*time.Minute, time.Minute, logging.Default()).
		OnSwept(func(n int64) { sweptCount = n })
	sweeper.now = func() time.Time { return now }

	sweeper.SweepOnce(context.Background())
	assert.Equal(t, int64(1), sweptCount)

	stale, err := repo.GetByID(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stale.Status)

	fresh, err := repo.GetByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, fresh.Status)

	paid, err := repo.GetByID(context.Background(), "paid")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, paid.Status)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	repo := NewInMemoryRepository()
	sweeper := NewSweeper(repo, 20*time.Minute, time.Millisecond, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
