package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-bidding/internal/domain"

	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, productID int64) *domain.Auction {
	t.Helper()

	auction := &domain.Auction{ProductID: productID, Status: domain.AuctionOngoing, CurrentPrice: 100, PriceIncrement: 10}
	require.NoError(t, s.CreateAuction(context.Background(), auction))
	return auction
}

func TestStore_RollbackDiscardsStagedWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	auction := seed(t, s, 1)
	errAbort := errors.New("abort")

	err := s.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.GetAuctionForUpdate(ctx, auction.ID)
		require.NoError(t, err)

		locked.CurrentPrice = 200
		require.NoError(t, s.UpdateAuction(ctx, locked))
		require.NoError(t, s.SaveBid(ctx, &domain.Bid{AuctionID: auction.ID, BuyerID: 1, Amount: 200}))

		staged, err := s.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		require.Equal(t, int64(200), staged.CurrentPrice)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	after, err := s.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), after.CurrentPrice)
	require.Equal(t, int64(0), after.Version)

	bids, err := s.GetBidsByAuctionRanked(ctx, auction.ID)
	require.NoError(t, err)
	require.Empty(t, bids)
}

func TestStore_CommitAppliesWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	auction := seed(t, s, 1)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.GetAuctionForUpdate(ctx, auction.ID)
		if err != nil {
			return err
		}
		locked.CurrentPrice = 110
		locked.BidCount++
		if err := s.SaveBid(ctx, &domain.Bid{AuctionID: auction.ID, BuyerID: 2, Amount: 110}); err != nil {
			return err
		}
		return s.UpdateAuction(ctx, locked)
	}))

	after, err := s.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, int64(110), after.CurrentPrice)
	require.Equal(t, int64(1), after.BidCount)
	require.Equal(t, int64(1), after.Version)

	bids, err := s.GetBidsByBuyer(ctx, 2)
	require.NoError(t, err)
	require.Len(t, bids, 1)
}

func TestStore_LockBlocksSecondTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	auction := seed(t, s, 1)

	holding := make(chan struct{})
	releaseLock := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.WithTx(ctx, func(ctx context.Context) error {
			if _, err := s.GetAuctionForUpdate(ctx, auction.ID); err != nil {
				return err
			}
			close(holding)
			<-releaseLock
			return nil
		})
	}()
	<-holding

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := s.WithTx(waitCtx, func(ctx context.Context) error {
		_, err := s.GetAuctionForUpdate(ctx, auction.ID)
		return err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(releaseLock)
	require.NoError(t, <-done)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.GetAuctionForUpdate(ctx, auction.ID)
		return err
	}))
}

func TestStore_GetAuctionForUpdateNeedsTx(t *testing.T) {
	t.Parallel()

	s := NewStore()
	auction := seed(t, s, 1)

	_, err := s.GetAuctionForUpdate(context.Background(), auction.ID)
	require.ErrorIs(t, err, errNoTx)
}

func TestStore_StaleVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	auction := seed(t, s, 1)

	stale := *auction
	auction.CurrentPrice = 120
	require.NoError(t, s.UpdateAuction(ctx, auction))

	stale.CurrentPrice = 130
	require.ErrorIs(t, s.UpdateAuction(ctx, &stale), domain.ErrVersionConflict)

	err := s.WithTx(ctx, func(ctx context.Context) error {
		return s.UpdateAuction(ctx, &stale)
	})
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	require.ErrorIs(t, s.UpdateAuction(ctx, &domain.Auction{ID: 99}), domain.ErrNotFound)
}

func TestStore_RankedBids(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	auction := seed(t, s, 1)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, b := range []domain.Bid{
		{BuyerID: 1, Amount: 300, BidTime: base},
		{BuyerID: 2, Amount: 500, BidTime: base.Add(time.Second)},
		{BuyerID: 3, Amount: 500, BidTime: base.Add(3 * time.Second)},
		{BuyerID: 4, Amount: 500, BidTime: base.Add(3 * time.Second)},
	} {
		bid := b
		bid.AuctionID = auction.ID
		require.NoError(t, s.SaveBid(ctx, &bid))
	}

	bids, err := s.GetBidsByAuctionRanked(ctx, auction.ID)
	require.NoError(t, err)

	buyers := make([]int64, 0, len(bids))
	for _, b := range bids {
		buyers = append(buyers, b.BuyerID)
	}
	require.Equal(t, []int64{4, 3, 2, 1}, buyers)

	require.ErrorIs(t, s.SaveBid(ctx, &domain.Bid{AuctionID: 99, Amount: 1}), domain.ErrNotFound)
}

func TestStore_AuctionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	first := seed(t, s, 1)
	seed(t, s, 2)

	require.ErrorIs(t, s.CreateAuction(ctx, &domain.Auction{ProductID: 1}), domain.ErrAlreadyExists)

	require.NoError(t, s.SaveBid(ctx, &domain.Bid{AuctionID: first.ID, BuyerID: 5, Amount: 150}))
	require.NoError(t, s.DeleteAuction(ctx, first.ID))

	_, err := s.GetAuction(ctx, first.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	bids, err := s.GetBidsByBuyer(ctx, 5)
	require.NoError(t, err)
	require.Empty(t, bids)

	require.ErrorIs(t, s.DeleteAuction(ctx, first.ID), domain.ErrNotFound)

	all, err := s.ListAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, int64(2), all[0].ProductID)
}

func TestStore_Jobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	require.NoError(t, s.CreateJob(ctx, &domain.ScheduledJob{ID: "a", AuctionID: 1, RunAt: now.Add(-time.Minute), Status: domain.JobPending}))
	require.NoError(t, s.CreateJob(ctx, &domain.ScheduledJob{ID: "b", AuctionID: 2, RunAt: now.Add(-2 * time.Minute), Status: domain.JobPending}))
	require.NoError(t, s.CreateJob(ctx, &domain.ScheduledJob{ID: "c", AuctionID: 1, RunAt: now.Add(time.Hour), Status: domain.JobPending}))

	due, err := s.GetPendingJobs(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "b", due[0].ID)

	require.NoError(t, s.UpdateJobStatus(ctx, "b", domain.JobExecuted))
	require.NoError(t, s.CancelJobsForAuction(ctx, 1))
	require.ErrorIs(t, s.UpdateJobStatus(ctx, "zzz", domain.JobExecuted), domain.ErrNotFound)

	due, err = s.GetPendingJobs(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestStore_LocksDroppedForMissingAuctions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	auction := seed(t, s, 1)

	lockCount := func() int {
		s.locksMu.Lock()
		defer s.locksMu.Unlock()
		return len(s.locks)
	}

	err := s.WithTx(ctx, func(ctx context.Context) error {
		for id := int64(100); id < 110; id++ {
			_, err := s.GetAuctionForUpdate(ctx, id)
			require.ErrorIs(t, err, domain.ErrNotFound)
		}
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, lockCount())

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.GetAuctionForUpdate(ctx, auction.ID)
		return err
	}))
	require.Equal(t, 1, lockCount())

	require.NoError(t, s.DeleteAuction(ctx, auction.ID))
	require.Zero(t, lockCount())

	require.ErrorIs(t, s.DeleteAuction(ctx, auction.ID), domain.ErrNotFound)
	require.Zero(t, lockCount())

	// Live auctions get a fresh entry on demand.
	other := seed(t, s, 2)
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.GetAuctionForUpdate(ctx, other.ID)
		return err
	}))
}
