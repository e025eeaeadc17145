package handlers

import (
	"net/http"

	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
)

type BidHandler struct {
	bidService *services.BidService
	log        logger.Logger
}

type PlaceBidRequest struct {
	AuctionID int64 `json:"auction_id"`
	BuyerID   int64 `json:"buyer_id"`
	BidAmount int64 `json:"bid_amount"`
}

func NewBidHandler(bidService *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bidService: bidService,
		log:        log,
	}
}

func (h *BidHandler) Register(g *echo.Group) {
	g.POST("/place-bid", h.PlaceBid)
	g.GET("/bids/:id", h.GetBid)
	g.GET("/bids/auction/:auctionId", h.ListByAuction)
	g.GET("/bids/buyer/:buyerId", h.ListByBuyer)
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	bid, err := h.bidService.PlaceBid(c.Request().Context(), req.AuctionID, req.BuyerID, req.BidAmount)
	if err != nil {
		h.log.Info("Bid rejected", "auction_id", req.AuctionID, "buyer_id", req.BuyerID,
			"amount", req.BidAmount, "error", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBidResponse(bid))
}

func (h *BidHandler) GetBid(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	bid, err := h.bidService.GetBid(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBidResponse(bid))
}

func (h *BidHandler) ListByAuction(c echo.Context) error {
	id, err := pathID(c, "auctionId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	bids, err := h.bidService.ListBidsByAuction(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBidResponses(bids))
}

func (h *BidHandler) ListByBuyer(c echo.Context) error {
	id, err := pathID(c, "buyerId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	bids, err := h.bidService.ListBidsByBuyer(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBidResponses(bids))
}
