package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"auction-bidding/internal/api/middleware"
	"auction-bidding/internal/domain"
	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	log            logger.Logger
}

type CreateAuctionRequest struct {
	ProductID      int64      `json:"product_id"`
	SellerID       int64      `json:"seller_id"`
	StartingPrice  int64      `json:"starting_price"`
	PriceIncrement int64      `json:"price_increment"`
	Status         string     `json:"status"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
}

type UpdateAuctionRequest struct {
	Status         *string    `json:"status"`
	CurrentPrice   *int64     `json:"current_price"`
	PriceIncrement *int64     `json:"price_increment"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
}

func NewAuctionHandler(auctionManager *services.AuctionManager, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		log:            log,
	}
}

func (h *AuctionHandler) Register(g *echo.Group, admin echo.MiddlewareFunc) {
	g.POST("/auctions", h.CreateAuction)
	g.GET("/auctions", h.ListAuctions)
	g.GET("/auctions/:id", h.GetAuction)
	g.PUT("/auctions/:id", h.UpdateAuction)
	g.DELETE("/auctions/:id", h.DeleteAuction, admin)
	g.GET("/auctions/product/:productId", h.ListByProduct)
	g.GET("/auctions/status/:status", h.ListByStatus)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Warn("Failed to bind create auction request", "error", err)
		return badRequest(c, "invalid request body")
	}

	identity := middleware.IdentityFrom(c)
	sellerID := req.SellerID
	if sellerID == 0 && identity != nil {
		sellerID, _ = strconv.ParseInt(identity.UserID, 10, 64)
	}

	in := services.CreateAuctionInput{
		ProductID:      req.ProductID,
		SellerID:       sellerID,
		StartingPrice:  req.StartingPrice,
		PriceIncrement: req.PriceIncrement,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Identity:       identity,
	}
	if req.Status != "" {
		status, ok := domain.ParseAuctionStatus(req.Status)
		if !ok {
			return badRequest(c, "unknown status "+req.Status)
		}
		in.Status = status
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), in)
	if err != nil {
		h.log.Warn("Failed to create auction", "product_id", req.ProductID, "error", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	auction, err := h.auctionManager.GetAuction(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	auctions, err := h.auctionManager.ListAuctions(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponses(auctions))
}

func (h *AuctionHandler) ListByProduct(c echo.Context) error {
	productID, err := pathID(c, "productId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	auctions, err := h.auctionManager.ListAuctionsByProduct(c.Request().Context(), productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponses(auctions))
}

func (h *AuctionHandler) ListByStatus(c echo.Context) error {
	status, ok := domain.ParseAuctionStatus(c.Param("status"))
	if !ok {
		return badRequest(c, "unknown status "+c.Param("status"))
	}

	auctions, err := h.auctionManager.ListAuctionsByStatus(c.Request().Context(), status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponses(auctions))
}

func (h *AuctionHandler) UpdateAuction(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req UpdateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	in := services.UpdateAuctionInput{
		CurrentPrice:   req.CurrentPrice,
		PriceIncrement: req.PriceIncrement,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	}
	if req.Status != nil {
		status, ok := domain.ParseAuctionStatus(*req.Status)
		if !ok {
			return badRequest(c, "unknown status "+*req.Status)
		}
		in.Status = &status
	}

	auction, err := h.auctionManager.UpdateAuction(c.Request().Context(), id, in, middleware.IdentityFrom(c))
	if err != nil {
		h.log.Warn("Failed to update auction", "auction_id", id, "error", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) DeleteAuction(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.auctionManager.DeleteAuction(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func pathID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
