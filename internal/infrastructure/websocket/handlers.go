package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	bidTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BidPlacer is the part of the bid service reachable from the live feed.
type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID, buyerID, amount int64) (*domain.Bid, error)
}

// AuctionReader loads an auction for connection admission.
type AuctionReader interface {
	GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error)
}

type WebSocketHandler struct {
	bids        BidPlacer
	auctions    AuctionReader
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(bids BidPlacer, auctions AuctionReader,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bids:        bids,
		auctions:    auctions,
		connManager: connManager,
		log:         log,
	}
}

// Router serves /ws/auctions/{auctionID}?user_id=...
func (h *WebSocketHandler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws/auctions/{auctionID:[0-9]+}", h.HandleConnection).Methods(http.MethodGet)
	return router
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID, err := strconv.ParseInt(mux.Vars(r)["auctionID"], 10, 64)
	if err != nil {
		http.Error(w, "invalid auction id", http.StatusBadRequest)
		return
	}

	auction, err := h.auctions.GetAuction(r.Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if auction.Status == domain.AuctionCompleted || auction.Status == domain.AuctionTerminated {
		h.log.Info("Rejected connection, auction has ended", "auction_id", auctionID, "status", auction.Status)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, auctionID)
	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		wsConn.Close()
		return
	}

	go h.keepAlive(wsConn)
	go h.handleMessages(wsConn)
}

func (h *WebSocketHandler) keepAlive(conn *WebSocketConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case <-conn.done:
			return
		}
	}
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		h.connManager.UnregisterConnection(conn)
		conn.Close()
	}()

	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection closed unexpectedly", "user_id", conn.userID, "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

type clientMessage struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, msg clientMessage) {
	buyerID, err := strconv.ParseInt(conn.userID, 10, 64)
	if err != nil {
		conn.Send(map[string]string{"type": "error", "message": "user_id must be numeric to bid"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	bid, err := h.bids.PlaceBid(ctx, conn.auctionID, buyerID, msg.Amount)
	if err != nil {
		h.log.Info("Bid rejected", "auction_id", conn.auctionID, "user_id", conn.userID, "error", err)
		reply := map[string]interface{}{"type": "bid_rejected", "message": err.Error()}
		var tooLow *domain.BidTooLowError
		if errors.As(err, &tooLow) {
			reply["minimum_bid"] = tooLow.Minimum
		}
		conn.Send(reply)
		return
	}

	conn.Send(map[string]interface{}{"type": "bid_accepted", "bid_id": bid.ID, "amount": bid.Amount})
}

// WebSocketConnection serializes writes; gorilla connections allow one writer at a time.
type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID int64
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewWebSocketConnection(conn *websocket.Conn, userID string, auctionID int64) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
		done:      make(chan struct{}),
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) ping() error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	return wsc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (wsc *WebSocketConnection) Close() error {
	var err error
	wsc.closeOnce.Do(func() {
		close(wsc.done)
		err = wsc.conn.Close()
	})
	return err
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() int64 {
	return wsc.auctionID
}
