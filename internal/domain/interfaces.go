package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks auction-bidding/internal/domain PaymentClient,ProductCatalog,EventPublisher,CompletionNotifier,LeaderElection

// Repository interfaces
type AuctionRepository interface {
	// WithTx runs fn in one serializable transaction shared by every repository
	// call made with the context passed to fn.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID int64) (*Auction, error)
	// GetAuctionForUpdate holds an exclusive lock on the auction until the transaction ends.
	GetAuctionForUpdate(ctx context.Context, auctionID int64) (*Auction, error)
	// UpdateAuction fails with ErrVersionConflict when auction.Version is stale.
	UpdateAuction(ctx context.Context, auction *Auction) error
	DeleteAuction(ctx context.Context, auctionID int64) error
	ListAuctions(ctx context.Context) ([]*Auction, error)
	ListAuctionsByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error)
	ListAuctionsByProduct(ctx context.Context, productID int64) ([]*Auction, error)
}

type BidRepository interface {
	SaveBid(ctx context.Context, bid *Bid) error
	GetBid(ctx context.Context, bidID int64) (*Bid, error)
	// GetBidsByAuctionRanked orders by amount desc, then bid time desc.
	GetBidsByAuctionRanked(ctx context.Context, auctionID int64) ([]*Bid, error)
	GetBidsByBuyer(ctx context.Context, buyerID int64) ([]*Bid, error)
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForAuction(ctx context.Context, auctionID int64) error
}

// Cache interfaces
type AuctionStateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID int64, status AuctionStatus) error
}

type IncrementRules interface {
	GetIncrementRule(amount int64) int64
	LoadRules(ctx context.Context) error
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidEvent) error

// Payment collaborator
type PaymentClient interface {
	CreatePayment(ctx context.Context, req *PaymentRequest, identity *Identity) error
}

// ProductCatalog resolves the listing an auction is created for.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64, identity *Identity) (*Product, error)
}

// CompletionNotifier reacts to an auction that reached COMPLETED.
type CompletionNotifier interface {
	Dispatch(ctx context.Context, auctionID int64, identity *Identity)
}

// Notification interfaces
type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID int64, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type AuctionScheduler interface {
	ScheduleAuctionStart(ctx context.Context, auctionID int64, startTime time.Time) error
	ScheduleAuctionEnd(ctx context.Context, auctionID int64, endTime time.Time) error
	CancelSchedule(ctx context.Context, auctionID int64) error
	Start(ctx context.Context) error
	Stop() error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() int64
}

type ConnectionManager interface {
	RegisterConnection(userID string, auctionID int64, conn WebSocketConnection) error
	// UnregisterConnection is a no-op when conn has already been replaced.
	UnregisterConnection(conn WebSocketConnection) error
	GetConnectionsForAuction(auctionID int64) []WebSocketConnection
	BroadcastToAuction(auctionID int64, message interface{}) error
	CloseAndUnregisterConnections(auctionID int64) error
}
