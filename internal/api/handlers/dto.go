package handlers

import (
	"time"

	"auction-bidding/internal/domain"
)

type AuctionResponse struct {
	ID             int64      `json:"id"`
	ProductID      int64      `json:"product_id"`
	Status         string     `json:"status"`
	CurrentPrice   int64      `json:"current_price"`
	PriceIncrement int64      `json:"price_increment"`
	MinimumBid     int64      `json:"minimum_bid"`
	BidCount       int64      `json:"bid_count"`
	Version        int64      `json:"version"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CreatedBy      int64      `json:"created_by"`
	UpdatedBy      int64      `json:"updated_by"`
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		ID:             a.ID,
		ProductID:      a.ProductID,
		Status:         a.Status.String(),
		CurrentPrice:   a.CurrentPrice,
		PriceIncrement: a.PriceIncrement,
		MinimumBid:     a.MinimumBid(),
		BidCount:       a.BidCount,
		Version:        a.Version,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		CreatedBy:      a.CreatedBy,
		UpdatedBy:      a.UpdatedBy,
	}
}

func toAuctionResponses(auctions []*domain.Auction) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, toAuctionResponse(a))
	}
	return out
}

type BidResponse struct {
	ID        int64     `json:"id"`
	AuctionID int64     `json:"auction_id"`
	BuyerID   int64     `json:"buyer_id"`
	Amount    int64     `json:"amount"`
	BidTime   time.Time `json:"bid_time"`
}

func toBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		BuyerID:   b.BuyerID,
		Amount:    b.Amount,
		BidTime:   b.BidTime,
	}
}

func toBidResponses(bids []*domain.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	return out
}
