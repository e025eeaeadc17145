package services

import (
	"context"
	"sync"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"
)

// CompletionNotifier asks the payment service to charge the winner of a
// completed auction. It never reports failure to its caller.
type CompletionNotifier struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	payments    domain.PaymentClient
	log         logger.Logger
	wg          sync.WaitGroup
}

func NewCompletionNotifier(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	payments domain.PaymentClient,
	log logger.Logger,
) *CompletionNotifier {
	return &CompletionNotifier{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		payments:    payments,
		log:         log,
	}
}

// Dispatch runs OnAuctionCompleted in the background. The work outlives the
// caller's context but keeps its values.
func (n *CompletionNotifier) Dispatch(ctx context.Context, auctionID int64, identity *domain.Identity) {
	detached := context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.OnAuctionCompleted(detached, auctionID, identity)
	}()
}

// Wait blocks until every dispatched notification has finished.
func (n *CompletionNotifier) Wait() {
	n.wg.Wait()
}

func (n *CompletionNotifier) OnAuctionCompleted(ctx context.Context, auctionID int64, identity *domain.Identity) {
	auction, err := n.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		n.log.Warn("Completed auction not found, skipping payment", "auction_id", auctionID, "error", err)
		return
	}

	bids, err := n.bidRepo.GetBidsByAuctionRanked(ctx, auctionID)
	if err != nil {
		n.log.Error("Failed to load bids for completed auction", "auction_id", auctionID, "error", err)
		return
	}
	if len(bids) == 0 {
		n.log.Info("Auction completed without bids", "auction_id", auctionID)
		return
	}

	winner := bids[0]
	req := &domain.PaymentRequest{
		BuyerID:     winner.BuyerID,
		SellerID:    auction.CreatedBy,
		ProductID:   auction.ProductID,
		AuctionID:   auction.ID,
		FinalAmount: winner.Amount,
	}

	if err := n.payments.CreatePayment(ctx, req, identity); err != nil {
		n.log.Error("Payment request failed", "auction_id", auctionID,
			"buyer_id", winner.BuyerID, "amount", winner.Amount, "error", err)
		return
	}

	n.log.Info("Payment requested for auction winner", "auction_id", auctionID,
		"buyer_id", winner.BuyerID, "amount", winner.Amount)
}
