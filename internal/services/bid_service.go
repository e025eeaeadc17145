package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-bidding/internal/clock"
	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"
	"auction-bidding/pkg/utils"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 100 * time.Millisecond
)

// BidService places bids under an exclusive auction lock and retries the
// whole transaction when the versioned write loses a race.
type BidService struct {
	auctionRepo  domain.AuctionRepository
	bidRepo      domain.BidRepository
	eventPub     domain.EventPublisher
	clock        clock.Clock
	maxAttempts  int
	retryBackoff time.Duration
	log          logger.Logger
}

type BidServiceOption func(*BidService)

func WithMaxAttempts(n int) BidServiceOption {
	return func(s *BidService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the base delay; attempt n waits n times this value.
func WithRetryBackoff(d time.Duration) BidServiceOption {
	return func(s *BidService) {
		if d > 0 {
			s.retryBackoff = d
		}
	}
}

func WithClock(c clock.Clock) BidServiceOption {
	return func(s *BidService) {
		s.clock = c
	}
}

func WithEventPublisher(pub domain.EventPublisher) BidServiceOption {
	return func(s *BidService) {
		s.eventPub = pub
	}
}

func NewBidService(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	log logger.Logger,
	opts ...BidServiceOption,
) *BidService {
	service := &BidService{
		auctionRepo:  auctionRepo,
		bidRepo:      bidRepo,
		clock:        clock.NewSystem(),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
		log:          log,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BidService) PlaceBid(ctx context.Context, auctionID, buyerID, amount int64) (*domain.Bid, error) {
	if auctionID <= 0 || buyerID <= 0 || amount <= 0 {
		return nil, fmt.Errorf("auction id, buyer id and amount must be positive: %w", domain.ErrValidation)
	}

	s.log.Debug("Placing bid", "auction_id", auctionID, "buyer_id", buyerID, "amount", amount)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		bid, auction, err := s.tryPlaceBid(ctx, auctionID, buyerID, amount)
		if err == nil {
			s.log.Info("Bid accepted", "auction_id", auctionID, "buyer_id", buyerID,
				"amount", amount, "bid_id", bid.ID, "attempt", attempt)
			s.publishAccepted(ctx, bid, auction)
			return bid, nil
		}

		if isCancellation(ctx, err) {
			return nil, fmt.Errorf("place bid on auction %d: %w", auctionID, domain.ErrCancelled)
		}
		if isDomainRejection(err) {
			return nil, err
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			// %v keeps driver error types out of the returned chain.
			s.log.Error("Failed to place bid", "auction_id", auctionID, "buyer_id", buyerID, "error", err)
			return nil, fmt.Errorf("place bid on auction %d: %v", auctionID, err)
		}

		s.log.Warn("Version conflict placing bid", "auction_id", auctionID, "attempt", attempt, "error", err)
		if attempt == s.maxAttempts {
			break
		}

		if err := s.sleep(ctx, s.retryBackoff*time.Duration(attempt)); err != nil {
			return nil, fmt.Errorf("place bid on auction %d: %w", auctionID, domain.ErrCancelled)
		}
	}

	s.log.Error("Bid retries exhausted", "auction_id", auctionID, "buyer_id", buyerID, "attempts", s.maxAttempts)
	return nil, fmt.Errorf("place bid on auction %d after %d attempts: %w", auctionID, s.maxAttempts, domain.ErrContention)
}

func (s *BidService) tryPlaceBid(ctx context.Context, auctionID, buyerID, amount int64) (*domain.Bid, *domain.Auction, error) {
	var placed *domain.Bid
	var updated *domain.Auction

	err := s.auctionRepo.WithTx(ctx, func(ctx context.Context) error {
		auction, err := s.auctionRepo.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}

		if auction.Status != domain.AuctionOngoing {
			return &domain.AuctionNotOpenError{AuctionID: auctionID, Status: auction.Status}
		}

		if minimum := auction.MinimumBid(); amount < minimum {
			return &domain.BidTooLowError{Amount: amount, Minimum: minimum}
		}

		now := s.clock.Now()
		bid := &domain.Bid{
			AuctionID: auctionID,
			BuyerID:   buyerID,
			Amount:    amount,
			BidTime:   now,
			CreatedAt: now,
			UpdatedAt: now,
			CreatedBy: buyerID,
			UpdatedBy: buyerID,
		}
		if err := s.bidRepo.SaveBid(ctx, bid); err != nil {
			return err
		}

		auction.CurrentPrice = amount
		auction.BidCount++
		auction.UpdatedAt = now
		auction.UpdatedBy = buyerID
		if err := s.auctionRepo.UpdateAuction(ctx, auction); err != nil {
			return err
		}

		placed = bid
		updated = auction
		return nil
	})
	return placed, updated, err
}

func (s *BidService) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *BidService) publishAccepted(ctx context.Context, bid *domain.Bid, auction *domain.Auction) {
	if s.eventPub == nil {
		return
	}

	event := &domain.BidEvent{
		ID:        utils.GenerateID("evt"),
		Type:      domain.BidAccepted,
		AuctionID: bid.AuctionID,
		BuyerID:   bid.BuyerID,
		Amount:    bid.Amount,
		BidCount:  auction.BidCount,
		Status:    auction.Status,
		Timestamp: bid.BidTime,
	}
	if err := s.eventPub.PublishBidEvent(context.WithoutCancel(ctx), event); err != nil {
		s.log.Warn("Failed to publish bid event", "auction_id", bid.AuctionID, "bid_id", bid.ID, "error", err)
	}
}

func (s *BidService) GetBid(ctx context.Context, bidID int64) (*domain.Bid, error) {
	return s.bidRepo.GetBid(ctx, bidID)
}

// ListBidsByAuction returns bids highest first, latest first among equal amounts.
func (s *BidService) ListBidsByAuction(ctx context.Context, auctionID int64) ([]*domain.Bid, error) {
	if _, err := s.auctionRepo.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.bidRepo.GetBidsByAuctionRanked(ctx, auctionID)
}

func (s *BidService) ListBidsByBuyer(ctx context.Context, buyerID int64) ([]*domain.Bid, error) {
	return s.bidRepo.GetBidsByBuyer(ctx, buyerID)
}

func isCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ctx.Err() != nil && !isDomainRejection(err)
}

func isDomainRejection(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrStateConflict) ||
		errors.Is(err, domain.ErrNotFound)
}
