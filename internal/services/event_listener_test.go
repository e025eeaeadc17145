package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"

	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	auctionIDs []int64
	messages   []map[string]interface{}
	err        error
}

func (b *recordingBroadcaster) BroadcastToAuction(_ context.Context, auctionID int64, message interface{}) error {
	if b.err != nil {
		return b.err
	}
	b.auctionIDs = append(b.auctionIDs, auctionID)
	b.messages = append(b.messages, message.(map[string]interface{}))
	return nil
}

type recordingConnections struct {
	domain.ConnectionManager
	closed []int64
}

func (c *recordingConnections) CloseAndUnregisterConnections(auctionID int64) error {
	c.closed = append(c.closed, auctionID)
	return nil
}

type fakeSubscriber struct {
	events []*domain.BidEvent
}

func (s *fakeSubscriber) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	for _, event := range s.events {
		if err := handler(event); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestEventListener_HandleEvent(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		event      *domain.BidEvent
		wantType   string
		wantClosed []int64
	}{
		{
			name:     "bid_accepted",
			event:    &domain.BidEvent{Type: domain.BidAccepted, AuctionID: 1, BuyerID: 9, Amount: 150, BidCount: 3, Timestamp: ts},
			wantType: "bid_update",
		},
		{
			name:     "status_changed",
			event:    &domain.BidEvent{Type: domain.AuctionStatusChanged, AuctionID: 2, Status: domain.AuctionOngoing, Timestamp: ts},
			wantType: "status_update",
		},
		{
			name:       "auction_ended",
			event:      &domain.BidEvent{Type: domain.AuctionEnded, AuctionID: 3, Status: domain.AuctionCompleted, Amount: 500, Timestamp: ts},
			wantType:   "auction_ended",
			wantClosed: []int64{3},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			broadcaster := &recordingBroadcaster{}
			connections := &recordingConnections{}
			listener := NewEventListener(connections, broadcaster, logger.NewNop())

			require.NoError(t, listener.HandleEvent(tt.event))
			require.Equal(t, []int64{tt.event.AuctionID}, broadcaster.auctionIDs)
			require.Equal(t, tt.wantType, broadcaster.messages[0]["type"])
			require.Equal(t, tt.wantClosed, connections.closed)
		})
	}
}

func TestEventListener_BidUpdatePayload(t *testing.T) {
	t.Parallel()

	broadcaster := &recordingBroadcaster{}
	listener := NewEventListener(&recordingConnections{}, broadcaster, logger.NewNop())

	require.NoError(t, listener.HandleEvent(&domain.BidEvent{
		Type: domain.BidAccepted, AuctionID: 4, BuyerID: 12, Amount: 1050, BidCount: 7,
	}))

	msg := broadcaster.messages[0]
	require.Equal(t, int64(1050), msg["current_price"])
	require.Equal(t, int64(12), msg["leader_id"])
	require.Equal(t, int64(7), msg["bid_count"])
}

func TestEventListener_Failures(t *testing.T) {
	t.Parallel()

	connections := &recordingConnections{}
	broadcaster := &recordingBroadcaster{err: errors.New("write failed")}
	listener := NewEventListener(connections, broadcaster, logger.NewNop())

	err := listener.HandleEvent(&domain.BidEvent{Type: domain.AuctionEnded, AuctionID: 5})
	require.Error(t, err)
	require.Empty(t, connections.closed, "connections stay open when the final broadcast fails")

	err = listener.HandleEvent(&domain.BidEvent{Type: "mystery", AuctionID: 5})
	require.ErrorContains(t, err, "unknown event type")
}

func TestEventListener_StartConsumesSubscriber(t *testing.T) {
	t.Parallel()

	broadcaster := &recordingBroadcaster{}
	listener := NewEventListener(&recordingConnections{}, broadcaster, logger.NewNop())
	subscriber := &fakeSubscriber{events: []*domain.BidEvent{
		{Type: domain.BidAccepted, AuctionID: 1},
		{Type: domain.BidAccepted, AuctionID: 2},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := listener.Start(ctx, subscriber)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []int64{1, 2}, broadcaster.auctionIDs)
}
