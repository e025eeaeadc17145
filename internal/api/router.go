package api

import (
	"net/http"
	"time"

	"auction-bidding/internal/api/handlers"
	apimw "auction-bidding/internal/api/middleware"
	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const adminRole = "ROLE_ADMIN"

type RouterConfig struct {
	AuctionManager *services.AuctionManager
	BidService     *services.BidService
	// LiveFeed serves /ws/auctions/*; nil disables the feed.
	LiveFeed    http.Handler
	ServiceName string
	AccessLog   bool
	Log         logger.Logger
}

func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	if cfg.AccessLog {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
		}))
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			apimw.HeaderUserID,
			apimw.HeaderUserName,
			apimw.HeaderUserRoles,
		},
		MaxAge: 86400,
	}))
	e.Use(apimw.Identity())

	api := e.Group("/api/v1")
	handlers.NewAuctionHandler(cfg.AuctionManager, cfg.Log).Register(api, apimw.RequireRole(adminRole))
	handlers.NewBidHandler(cfg.BidService, cfg.Log).Register(api)

	if cfg.LiveFeed != nil {
		e.GET("/ws/auctions/:auctionID", echo.WrapHandler(cfg.LiveFeed))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	return e
}
