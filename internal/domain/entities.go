package domain

import (
	"strings"
	"time"
)

type Auction struct {
	ID             int64
	ProductID      int64
	Status         AuctionStatus
	CurrentPrice   int64
	PriceIncrement int64
	BidCount       int64
	Version        int64
	StartTime      *time.Time
	EndTime        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CreatedBy      int64
	UpdatedBy      int64
}

// MinimumBid is the lowest amount the next bid must offer.
func (a *Auction) MinimumBid() int64 {
	return a.CurrentPrice + a.PriceIncrement
}

type AuctionStatus string

const (
	AuctionScheduled  AuctionStatus = "SCHEDULED"
	AuctionPending    AuctionStatus = "PENDING"
	AuctionOngoing    AuctionStatus = "ONGOING"
	AuctionCompleted  AuctionStatus = "COMPLETED"
	AuctionTerminated AuctionStatus = "TERMINATED"
)

func (s AuctionStatus) String() string {
	return string(s)
}

func (s AuctionStatus) IsValid() bool {
	switch s {
	case AuctionScheduled, AuctionPending, AuctionOngoing, AuctionCompleted, AuctionTerminated:
		return true
	default:
		return false
	}
}

// AcceptsPriceChanges reports whether the seller may still configure price and increment.
func (s AuctionStatus) AcceptsPriceChanges() bool {
	return s == AuctionScheduled || s == AuctionPending
}

// ParseAuctionStatus is case-insensitive.
func ParseAuctionStatus(raw string) (AuctionStatus, bool) {
	status := AuctionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.IsValid()
}

type Bid struct {
	ID        int64
	AuctionID int64
	BuyerID   int64
	Amount    int64
	BidTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy int64
	UpdatedBy int64
}

// Product is the part of a product-service listing the auction needs.
type Product struct {
	ID       int64  `json:"productId"`
	SellerID int64  `json:"sellerId"`
	Model    string `json:"productModel"`
}

// PaymentRequest is sent to the payment service once an auction has a winner.
type PaymentRequest struct {
	BuyerID     int64 `json:"buyerId"`
	SellerID    int64 `json:"sellerId"`
	ProductID   int64 `json:"productId"`
	AuctionID   int64 `json:"auctionId"`
	FinalAmount int64 `json:"finalAmount"`
}

// Identity is the caller as asserted by the gateway headers.
type Identity struct {
	UserID   string
	UserName string
	Roles    []string
}

func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type BidEvent struct {
	ID        string        `json:"id"`
	Type      BidEventType  `json:"type"`
	AuctionID int64         `json:"auction_id"`
	BuyerID   int64         `json:"buyer_id,omitempty"`
	Amount    int64         `json:"amount,omitempty"`
	BidCount  int64         `json:"bid_count,omitempty"`
	Status    AuctionStatus `json:"status,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type BidEventType string

const (
	BidAccepted          BidEventType = "bid_accepted"
	AuctionStatusChanged BidEventType = "auction_status_changed"
	AuctionEnded         BidEventType = "auction_ended"
)

type BidIncrementRules struct {
	Rules map[string]int64 `json:"rules"`
}

type ScheduledJob struct {
	ID        string
	AuctionID int64
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobStartAuction JobType = "start_auction"
	JobEndAuction   JobType = "end_auction"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
