package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"auction-bidding/internal/clock"
	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"
	"auction-bidding/pkg/utils"
)

// ErrNotLeader is returned by scheduled transitions on an instance that does not hold leadership.
var ErrNotLeader = errors.New("instance is not the scheduler leader")

// CreateAuctionInput.SellerID is ignored when a product catalog is configured;
// the seller is then the one listed on the product.
type CreateAuctionInput struct {
	ProductID      int64
	SellerID       int64
	StartingPrice  int64
	PriceIncrement int64
	Status         domain.AuctionStatus
	StartTime      *time.Time
	EndTime        *time.Time
	Identity       *domain.Identity
}

// UpdateAuctionInput changes only the fields that are set.
type UpdateAuctionInput struct {
	Status         *domain.AuctionStatus
	CurrentPrice   *int64
	PriceIncrement *int64
	StartTime      *time.Time
	EndTime        *time.Time
}

type AuctionManager struct {
	auctionRepo    domain.AuctionRepository
	stateCache     domain.AuctionStateCache
	eventPub       domain.EventPublisher
	scheduler      domain.AuctionScheduler
	leaderElection domain.LeaderElection
	rules          domain.IncrementRules
	notifier       domain.CompletionNotifier
	products       domain.ProductCatalog
	clock          clock.Clock
	instanceID     string
	log            logger.Logger
}

// NewAuctionManager accepts nil for stateCache, eventPub, leaderElection and rules.
// Without leader election every instance runs scheduled transitions.
func NewAuctionManager(
	auctionRepo domain.AuctionRepository,
	stateCache domain.AuctionStateCache,
	eventPub domain.EventPublisher,
	leaderElection domain.LeaderElection,
	rules domain.IncrementRules,
	notifier domain.CompletionNotifier,
	instanceID string,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		auctionRepo:    auctionRepo,
		stateCache:     stateCache,
		eventPub:       eventPub,
		leaderElection: leaderElection,
		rules:          rules,
		notifier:       notifier,
		clock:          clock.NewSystem(),
		instanceID:     instanceID,
		log:            log,
	}
}

// SetScheduler breaks the construction cycle with CronAuctionScheduler.
func (am *AuctionManager) SetScheduler(scheduler domain.AuctionScheduler) {
	am.scheduler = scheduler
}

func (am *AuctionManager) SetProductCatalog(products domain.ProductCatalog) {
	am.products = products
}

func (am *AuctionManager) CreateAuction(ctx context.Context, in CreateAuctionInput) (*domain.Auction, error) {
	if in.ProductID <= 0 {
		return nil, fmt.Errorf("product id must be positive: %w", domain.ErrValidation)
	}
	if in.StartingPrice < 0 || in.PriceIncrement < 0 {
		return nil, fmt.Errorf("starting price and increment cannot be negative: %w", domain.ErrValidation)
	}
	if in.StartTime != nil && in.EndTime != nil && !in.EndTime.After(*in.StartTime) {
		return nil, fmt.Errorf("end time must be after start time: %w", domain.ErrValidation)
	}

	if am.products != nil {
		sellerID, err := am.sellerOf(ctx, in.ProductID, in.Identity)
		if err != nil {
			return nil, err
		}
		in.SellerID = sellerID
	}
	if in.SellerID <= 0 {
		return nil, fmt.Errorf("seller id must be positive: %w", domain.ErrValidation)
	}

	status := in.Status
	if status == "" {
		status = domain.AuctionScheduled
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrValidation)
	}

	increment := in.PriceIncrement
	if increment == 0 {
		increment = am.incrementFor(in.StartingPrice)
	}

	now := am.clock.Now()
	auction := &domain.Auction{
		ProductID:      in.ProductID,
		Status:         status,
		CurrentPrice:   in.StartingPrice,
		PriceIncrement: increment,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatedBy:      in.SellerID,
		UpdatedBy:      in.SellerID,
	}

	err := am.auctionRepo.WithTx(ctx, func(ctx context.Context) error {
		if err := am.auctionRepo.CreateAuction(ctx, auction); err != nil {
			return err
		}
		return am.schedule(ctx, auction)
	})
	if err != nil {
		return nil, err
	}

	am.cacheStatus(ctx, auction)
	am.log.Info("Auction created", "auction_id", auction.ID, "product_id", auction.ProductID, "status", auction.Status)
	return auction, nil
}

func (am *AuctionManager) sellerOf(ctx context.Context, productID int64, identity *domain.Identity) (int64, error) {
	product, err := am.products.GetProduct(ctx, productID, identity)
	if err != nil {
		return 0, fmt.Errorf("look up product %d: %w", productID, err)
	}
	if product.SellerID <= 0 {
		return 0, fmt.Errorf("product %d has no seller: %w", productID, domain.ErrValidation)
	}
	return product.SellerID, nil
}

func (am *AuctionManager) schedule(ctx context.Context, auction *domain.Auction) error {
	if am.scheduler == nil {
		return nil
	}

	if auction.StartTime != nil && auction.Status.AcceptsPriceChanges() {
		if err := am.scheduler.ScheduleAuctionStart(ctx, auction.ID, *auction.StartTime); err != nil {
			return err
		}
	}
	if auction.EndTime != nil && !isTerminal(auction.Status) {
		if err := am.scheduler.ScheduleAuctionEnd(ctx, auction.ID, *auction.EndTime); err != nil {
			return err
		}
	}
	return nil
}

func (am *AuctionManager) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	return am.auctionRepo.GetAuction(ctx, auctionID)
}

func (am *AuctionManager) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return am.auctionRepo.ListAuctions(ctx)
}

func (am *AuctionManager) ListAuctionsByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrValidation)
	}
	return am.auctionRepo.ListAuctionsByStatus(ctx, status)
}

func (am *AuctionManager) ListAuctionsByProduct(ctx context.Context, productID int64) ([]*domain.Auction, error) {
	return am.auctionRepo.ListAuctionsByProduct(ctx, productID)
}

// UpdateAuction applies in under the auction lock. Entering COMPLETED hands the
// auction to the completion notifier on behalf of identity.
func (am *AuctionManager) UpdateAuction(ctx context.Context, auctionID int64, in UpdateAuctionInput, identity *domain.Identity) (*domain.Auction, error) {
	if in.Status != nil && !in.Status.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", *in.Status, domain.ErrValidation)
	}
	if in.CurrentPrice != nil && *in.CurrentPrice < 0 {
		return nil, fmt.Errorf("current price cannot be negative: %w", domain.ErrValidation)
	}
	if in.PriceIncrement != nil && *in.PriceIncrement <= 0 {
		return nil, fmt.Errorf("price increment must be positive: %w", domain.ErrValidation)
	}

	var previous domain.AuctionStatus
	var updated *domain.Auction

	err := am.auctionRepo.WithTx(ctx, func(ctx context.Context) error {
		auction, err := am.auctionRepo.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		previous = auction.Status

		if (in.CurrentPrice != nil || in.PriceIncrement != nil) && !auction.Status.AcceptsPriceChanges() {
			return fmt.Errorf("auction %d is %s, price is fixed: %w", auctionID, auction.Status, domain.ErrStateConflict)
		}

		if in.Status != nil {
			auction.Status = *in.Status
		}
		if in.CurrentPrice != nil {
			auction.CurrentPrice = *in.CurrentPrice
		}
		if in.PriceIncrement != nil {
			auction.PriceIncrement = *in.PriceIncrement
		}
		if in.StartTime != nil {
			auction.StartTime = in.StartTime
		}
		if in.EndTime != nil {
			auction.EndTime = in.EndTime
		}
		if auction.StartTime != nil && auction.EndTime != nil && !auction.EndTime.After(*auction.StartTime) {
			return fmt.Errorf("end time must be after start time: %w", domain.ErrValidation)
		}

		auction.UpdatedAt = am.clock.Now()
		auction.UpdatedBy = actorID(identity)
		if err := am.auctionRepo.UpdateAuction(ctx, auction); err != nil {
			return err
		}

		// Jobs for the old times must not fire.
		if (in.StartTime != nil || in.EndTime != nil) && am.scheduler != nil {
			if err := am.scheduler.CancelSchedule(ctx, auctionID); err != nil {
				return err
			}
			if err := am.schedule(ctx, auction); err != nil {
				return err
			}
		}

		updated = auction
		return nil
	})
	if err != nil {
		return nil, am.translate(ctx, auctionID, err)
	}

	am.log.Info("Auction updated", "auction_id", auctionID, "status", updated.Status, "version", updated.Version)
	if updated.Status != previous {
		am.afterStatusChange(ctx, updated, previous, identity)
	}
	return updated, nil
}

func (am *AuctionManager) DeleteAuction(ctx context.Context, auctionID int64) error {
	if err := am.auctionRepo.DeleteAuction(ctx, auctionID); err != nil {
		return err
	}

	if am.scheduler != nil {
		if err := am.scheduler.CancelSchedule(ctx, auctionID); err != nil {
			am.log.Warn("Failed to cancel jobs for deleted auction", "auction_id", auctionID, "error", err)
		}
	}

	am.log.Info("Auction deleted", "auction_id", auctionID)
	return nil
}

func (am *AuctionManager) StartAuction(ctx context.Context, auctionID int64) error {
	return am.scheduledTransition(ctx, auctionID, domain.AuctionOngoing,
		domain.AuctionScheduled, domain.AuctionPending)
}

func (am *AuctionManager) EndAuction(ctx context.Context, auctionID int64) error {
	return am.scheduledTransition(ctx, auctionID, domain.AuctionCompleted, domain.AuctionOngoing)
}

// scheduledTransition moves the auction to target when it is in one of from.
// Auctions already moved elsewhere are left alone so a replayed job is harmless.
func (am *AuctionManager) scheduledTransition(ctx context.Context, auctionID int64, target domain.AuctionStatus, from ...domain.AuctionStatus) error {
	leader, err := am.isLeader(ctx)
	if err != nil {
		return fmt.Errorf("check leadership: %w", err)
	}
	if !leader {
		return ErrNotLeader
	}

	var previous domain.AuctionStatus
	var updated *domain.Auction

	err = am.auctionRepo.WithTx(ctx, func(ctx context.Context) error {
		auction, err := am.auctionRepo.GetAuctionForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		previous = auction.Status

		if !statusIn(auction.Status, from) {
			return nil
		}

		auction.Status = target
		auction.UpdatedAt = am.clock.Now()
		if err := am.auctionRepo.UpdateAuction(ctx, auction); err != nil {
			return err
		}
		updated = auction
		return nil
	})
	if err != nil {
		return am.translate(ctx, auctionID, err)
	}

	if updated == nil {
		am.log.Info("Skipping scheduled transition", "auction_id", auctionID, "status", previous, "target", target)
		return nil
	}

	am.log.Info("Auction transitioned", "auction_id", auctionID, "from", previous, "to", target)
	am.afterStatusChange(ctx, updated, previous, nil)
	return nil
}

func (am *AuctionManager) afterStatusChange(ctx context.Context, auction *domain.Auction, previous domain.AuctionStatus, identity *domain.Identity) {
	am.cacheStatus(ctx, auction)

	eventType := domain.AuctionStatusChanged
	if isTerminal(auction.Status) {
		eventType = domain.AuctionEnded
		if am.scheduler != nil {
			if err := am.scheduler.CancelSchedule(ctx, auction.ID); err != nil {
				am.log.Warn("Failed to cancel pending jobs", "auction_id", auction.ID, "error", err)
			}
		}
	}
	am.publish(ctx, &domain.BidEvent{
		ID:        utils.GenerateID("evt"),
		Type:      eventType,
		AuctionID: auction.ID,
		Amount:    auction.CurrentPrice,
		BidCount:  auction.BidCount,
		Status:    auction.Status,
		Timestamp: auction.UpdatedAt,
	})

	if auction.Status == domain.AuctionCompleted && previous != domain.AuctionCompleted && am.notifier != nil {
		am.notifier.Dispatch(ctx, auction.ID, identity)
	}
}

func (am *AuctionManager) cacheStatus(ctx context.Context, auction *domain.Auction) {
	if am.stateCache == nil {
		return
	}
	if err := am.stateCache.SetAuctionStatus(ctx, auction.ID, auction.Status); err != nil {
		am.log.Warn("Failed to cache auction status", "auction_id", auction.ID, "error", err)
	}
}

func (am *AuctionManager) publish(ctx context.Context, event *domain.BidEvent) {
	if am.eventPub == nil {
		return
	}
	if err := am.eventPub.PublishBidEvent(context.WithoutCancel(ctx), event); err != nil {
		am.log.Warn("Failed to publish auction event", "auction_id", event.AuctionID, "type", event.Type, "error", err)
	}
}

func (am *AuctionManager) isLeader(ctx context.Context) (bool, error) {
	if am.leaderElection == nil {
		return true, nil
	}
	return am.leaderElection.IsLeader(ctx, am.instanceID)
}

func (am *AuctionManager) incrementFor(price int64) int64 {
	if am.rules == nil {
		return domain.DefaultIncrementRules().IncrementFor(price)
	}
	return am.rules.GetIncrementRule(price)
}

func (am *AuctionManager) translate(ctx context.Context, auctionID int64, err error) error {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("update auction %d: %w", auctionID, domain.ErrCancelled)
	case errors.Is(err, domain.ErrVersionConflict):
		return fmt.Errorf("update auction %d: %w", auctionID, domain.ErrContention)
	default:
		return err
	}
}

func isTerminal(status domain.AuctionStatus) bool {
	return status == domain.AuctionCompleted || status == domain.AuctionTerminated
}

func statusIn(status domain.AuctionStatus, set []domain.AuctionStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// actorID is 0 when the caller is anonymous or its id is not numeric.
func actorID(identity *domain.Identity) int64 {
	if identity == nil {
		return 0
	}
	id, err := strconv.ParseInt(identity.UserID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
