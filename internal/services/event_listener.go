package services

import (
	"context"
	"fmt"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"
)

// EventListener relays auction events from the bus to live feed clients.
type EventListener struct {
	broadcaster       domain.AuctionBroadcaster
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager,
	broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		connectionManager: connectionManager,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToBidEvents(ctx, el.HandleEvent)
}

func (el *EventListener) HandleEvent(event *domain.BidEvent) error {
	el.log.Debug("Handling auction event", "type", event.Type, "auction_id", event.AuctionID)

	switch event.Type {
	case domain.BidAccepted:
		return el.handleBidAccepted(event)
	case domain.AuctionStatusChanged:
		return el.handleStatusChanged(event)
	case domain.AuctionEnded:
		return el.handleAuctionEnded(event)
	}

	return fmt.Errorf("unknown event type %q for auction %d", event.Type, event.AuctionID)
}

func (el *EventListener) handleBidAccepted(event *domain.BidEvent) error {
	return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":          "bid_update",
		"auction_id":    event.AuctionID,
		"current_price": event.Amount,
		"leader_id":     event.BuyerID,
		"bid_count":     event.BidCount,
		"timestamp":     event.Timestamp,
	})
}

func (el *EventListener) handleStatusChanged(event *domain.BidEvent) error {
	return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":       "status_update",
		"auction_id": event.AuctionID,
		"status":     event.Status,
		"timestamp":  event.Timestamp,
	})
}

func (el *EventListener) handleAuctionEnded(event *domain.BidEvent) error {
	if err := el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":        "auction_ended",
		"auction_id":  event.AuctionID,
		"status":      event.Status,
		"final_price": event.Amount,
		"bid_count":   event.BidCount,
		"timestamp":   event.Timestamp,
	}); err != nil {
		el.log.Error("Failed to broadcast auction ended event", "auction_id", event.AuctionID, "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.AuctionID); err != nil {
		el.log.Error("Failed to finalize connections for auction", "auction_id",
			event.AuctionID, "error", err)
		return err
	}
	return nil
}
