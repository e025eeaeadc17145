package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"auction-bidding/internal/domain/mocks"
	"auction-bidding/internal/infrastructure/memory"
	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	log := logger.NewNop()
	store := memory.NewStore()
	payments := mocks.NewMockPaymentClient(ctrl)
	payments.EXPECT().CreatePayment(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	notifier := services.NewCompletionNotifier(store, store, payments, log)
	t.Cleanup(notifier.Wait)

	return NewRouter(RouterConfig{
		AuctionManager: services.NewAuctionManager(store, nil, nil, nil, nil, notifier, "test", log),
		BidService:     services.NewBidService(store, store, log),
		ServiceName:    "bidding-service",
		Log:            log,
	})
}

type call struct {
	method  string
	path    string
	body    string
	headers map[string]string
}

func do(t *testing.T, e *echo.Echo, c call) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func createAuction(t *testing.T, e *echo.Echo, body string) int64 {
	t.Helper()

	rec, resp := do(t, e, call{method: http.MethodPost, path: "/api/v1/auctions", body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(resp["id"].(float64))
}

func TestPlaceBidEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestRouter(t)
	createAuction(t, e, `{"product_id":1,"seller_id":42,"starting_price":1000,"price_increment":50,"status":"ONGOING"}`)
	createAuction(t, e, `{"product_id":2,"seller_id":42,"starting_price":1000,"price_increment":50}`)

	tests := []struct {
		name     string
		body     string
		wantCode int
		check    func(t *testing.T, resp map[string]interface{})
	}{
		{
			name:     "below_minimum",
			body:     `{"auction_id":1,"buyer_id":7,"bid_amount":1049}`,
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, resp map[string]interface{}) {
				require.Equal(t, "validation_error", resp["error"])
				require.Equal(t, float64(1050), resp["minimum_bid"])
			},
		},
		{
			name:     "accepted",
			body:     `{"auction_id":1,"buyer_id":7,"bid_amount":1050}`,
			wantCode: http.StatusCreated,
			check: func(t *testing.T, resp map[string]interface{}) {
				require.Equal(t, float64(1050), resp["amount"])
				require.Equal(t, float64(7), resp["buyer_id"])
			},
		},
		{
			name:     "not_ongoing",
			body:     `{"auction_id":2,"buyer_id":7,"bid_amount":5000}`,
			wantCode: http.StatusConflict,
			check: func(t *testing.T, resp map[string]interface{}) {
				require.Equal(t, "SCHEDULED", resp["status"])
			},
		},
		{
			name:     "unknown_auction",
			body:     `{"auction_id":99,"buyer_id":7,"bid_amount":5000}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "malformed",
			body:     `{"auction_id":`,
			wantCode: http.StatusBadRequest,
		},
	}

	// Cases share one auction and run in order.
	for _, tt := range tests {
		rec, resp := do(t, e, call{method: http.MethodPost, path: "/api/v1/place-bid", body: tt.body})
		require.Equal(t, tt.wantCode, rec.Code, "%s: %s", tt.name, rec.Body.String())
		if tt.check != nil {
			tt.check(t, resp)
		}
	}

	rec, resp := do(t, e, call{method: http.MethodGet, path: "/api/v1/auctions/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1050), resp["current_price"])
	require.Equal(t, float64(1100), resp["minimum_bid"])
	require.Equal(t, float64(1), resp["bid_count"])

	rec, _ = do(t, e, call{method: http.MethodGet, path: "/api/v1/bids/auction/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var bids []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bids))
	require.Len(t, bids, 1)

	rec, _ = do(t, e, call{method: http.MethodGet, path: "/api/v1/bids/auction/99"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAuctionRequiresAdmin(t *testing.T) {
	t.Parallel()

	e := newTestRouter(t)
	id := createAuction(t, e, `{"product_id":1,"seller_id":42,"starting_price":100}`)
	path := "/api/v1/auctions/" + strconv.FormatInt(id, 10)

	rec, _ := do(t, e, call{method: http.MethodDelete, path: path})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, e, call{method: http.MethodDelete, path: path, headers: map[string]string{
		"X-Auth-User-Id": "7", "X-Auth-User-Roles": "ROLE_USER",
	}})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, e, call{method: http.MethodDelete, path: path, headers: map[string]string{
		"X-Auth-User-Id": "1", "X-Auth-User-Roles": "ROLE_USER, ROLE_ADMIN",
	}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, e, call{method: http.MethodGet, path: path})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuctionEndpoints(t *testing.T) {
	t.Parallel()

	e := newTestRouter(t)

	// Seller defaults to the caller.
	rec, resp := do(t, e, call{
		method:  http.MethodPost,
		path:    "/api/v1/auctions",
		body:    `{"product_id":5,"starting_price":200}`,
		headers: map[string]string{"X-Auth-User-Id": "77"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, float64(77), resp["created_by"])
	require.Equal(t, float64(10), resp["price_increment"])

	rec, _ = do(t, e, call{method: http.MethodPost, path: "/api/v1/auctions", body: `{"product_id":5,"seller_id":1}`})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, e, call{method: http.MethodPost, path: "/api/v1/auctions", body: `{"product_id":6,"seller_id":1,"status":"open"}`})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = do(t, e, call{method: http.MethodPut, path: "/api/v1/auctions/1", body: `{"status":"ongoing"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "ONGOING", resp["status"])

	rec, resp = do(t, e, call{method: http.MethodPut, path: "/api/v1/auctions/1", body: `{"current_price":1}`})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "state_conflict", resp["error"])

	rec, _ = do(t, e, call{method: http.MethodGet, path: "/api/v1/auctions/status/ongoing"})
	require.Equal(t, http.StatusOK, rec.Code)
	var auctions []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auctions))
	require.Len(t, auctions, 1)

	rec, _ = do(t, e, call{method: http.MethodGet, path: "/api/v1/auctions/status/bogus"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, call{method: http.MethodGet, path: "/api/v1/auctions/abc"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	e := newTestRouter(t)
	rec, resp := do(t, e, call{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", resp["status"])
	require.Equal(t, "bidding-service", resp["service"])
}
