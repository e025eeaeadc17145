package product

import (
	"context"
	"net/http"
	"testing"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/internal/infrastructure/payment"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://products.test/api/v1"

func newMockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	client := NewClient(testBaseURL+"/", "s3cret", time.Second,
		WithHTTPClient(&http.Client{Transport: transport}))
	return client, transport
}

func TestGetProduct_ReadsSellerAndForwardsIdentity(t *testing.T) {
	t.Parallel()

	client, transport := newMockedClient(t)

	var headers http.Header
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/product/12",
		func(req *http.Request) (*http.Response, error) {
			headers = req.Header.Clone()
			return httpmock.NewStringResponse(http.StatusOK,
				`{"productId":12,"sellerId":77,"productModel":"Leica M3","startPrice":1000,"imageUrls":["a.jpg"]}`), nil
		})

	identity := &domain.Identity{UserID: "5", UserName: "sam", Roles: []string{"ROLE_SELLER"}}
	product, err := client.GetProduct(context.Background(), 12, identity)
	require.NoError(t, err)
	require.Equal(t, &domain.Product{ID: 12, SellerID: 77, Model: "Leica M3"}, product)

	require.Equal(t, "s3cret", headers.Get(payment.HeaderServiceSecret))
	require.Equal(t, "5", headers.Get(payment.HeaderUserID))
	require.Equal(t, "sam", headers.Get(payment.HeaderUserName))
	require.Equal(t, "ROLE_SELLER", headers.Get(payment.HeaderUserRoles))
	require.Equal(t, 1, transport.GetTotalCallCount())
}

func TestGetProduct_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responder httpmock.Responder
		wantErr   error
		wantMsg   string
	}{
		{
			name:      "not_found",
			responder: httpmock.NewStringResponder(http.StatusNotFound, "Product not found"),
			wantErr:   domain.ErrNotFound,
		},
		{
			name:      "server_error",
			responder: httpmock.NewStringResponder(http.StatusInternalServerError, "Internal server error: db\n"),
			wantMsg:   "product service returned 500: Internal server error: db",
		},
		{
			name:      "bad_body",
			responder: httpmock.NewStringResponder(http.StatusOK, "<html>"),
			wantMsg:   "decode product 3",
		},
		{
			name:      "transport_error",
			responder: httpmock.NewErrorResponder(context.DeadlineExceeded),
			wantMsg:   "call product service",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, transport := newMockedClient(t)
			transport.RegisterResponder(http.MethodGet, testBaseURL+"/product/3", tt.responder)

			_, err := client.GetProduct(context.Background(), 3, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.ErrorContains(t, err, tt.wantMsg)
		})
	}
}
