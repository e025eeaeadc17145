package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/internal/domain/mocks"
	"auction-bidding/internal/infrastructure/memory"
	"auction-bidding/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func saveBid(t *testing.T, store *memory.Store, auctionID, buyerID, amount int64, at time.Time) {
	t.Helper()

	require.NoError(t, store.SaveBid(context.Background(), &domain.Bid{
		AuctionID: auctionID,
		BuyerID:   buyerID,
		Amount:    amount,
		BidTime:   at,
		CreatedAt: at,
		UpdatedAt: at,
	}))
}

func TestOnAuctionCompleted_LatestBidWinsTie(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memory.NewStore()
	auction := seedAuction(t, store, domain.AuctionCompleted, 500, 10)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	saveBid(t, store, auction.ID, 9, 500, base.Add(12*time.Second))
	saveBid(t, store, auction.ID, 7, 500, base.Add(10*time.Second))
	saveBid(t, store, auction.ID, 3, 450, base.Add(20*time.Second))

	identity := &domain.Identity{UserID: "11", UserName: "admin", Roles: []string{"ROLE_ADMIN"}}
	payments := mocks.NewMockPaymentClient(ctrl)
	payments.EXPECT().CreatePayment(gomock.Any(), &domain.PaymentRequest{
		BuyerID:     9,
		SellerID:    auction.CreatedBy,
		ProductID:   auction.ProductID,
		AuctionID:   auction.ID,
		FinalAmount: 500,
	}, identity).Return(nil)

	notifier := NewCompletionNotifier(store, store, payments, logger.NewNop())
	notifier.OnAuctionCompleted(context.Background(), auction.ID, identity)
}

func TestOnAuctionCompleted_NoPaymentCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		auctionID func(t *testing.T, store *memory.Store) int64
	}{
		{
			name: "no_bids",
			auctionID: func(t *testing.T, store *memory.Store) int64 {
				return seedAuction(t, store, domain.AuctionCompleted, 100, 10).ID
			},
		},
		{
			name: "missing_auction",
			auctionID: func(*testing.T, *memory.Store) int64 {
				return 404
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := memory.NewStore()
			id := tt.auctionID(t, store)

			// No expectations: any payment call fails the test.
			payments := mocks.NewMockPaymentClient(ctrl)
			notifier := NewCompletionNotifier(store, store, payments, logger.NewNop())

			require.NotPanics(t, func() {
				notifier.OnAuctionCompleted(context.Background(), id, nil)
			})
		})
	}
}

func TestOnAuctionCompleted_PaymentFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memory.NewStore()
	auction := seedAuction(t, store, domain.AuctionCompleted, 100, 10)
	saveBid(t, store, auction.ID, 5, 250, time.Now())

	payments := mocks.NewMockPaymentClient(ctrl)
	payments.EXPECT().
		CreatePayment(gomock.Any(), gomock.Any(), gomock.Nil()).
		Return(errors.New("payment service unavailable")).
		Times(1)

	notifier := NewCompletionNotifier(store, store, payments, logger.NewNop())
	notifier.OnAuctionCompleted(context.Background(), auction.ID, nil)

	after, err := store.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionCompleted, after.Status)
}

func TestDispatch_RunsDetachedFromCaller(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := memory.NewStore()
	auction := seedAuction(t, store, domain.AuctionCompleted, 100, 10)
	saveBid(t, store, auction.ID, 5, 250, time.Now())

	var (
		ctxErr error
		buyer  int64
	)
	payments := mocks.NewMockPaymentClient(ctrl)
	payments.EXPECT().
		CreatePayment(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *domain.PaymentRequest, _ *domain.Identity) error {
			ctxErr = ctx.Err()
			buyer = req.BuyerID
			return nil
		})

	notifier := NewCompletionNotifier(store, store, payments, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	notifier.Dispatch(ctx, auction.ID, nil)
	notifier.Wait()

	require.NoError(t, ctxErr)
	require.Equal(t, int64(5), buyer)
}
