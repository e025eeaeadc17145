package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIncrementFor(t *testing.T) {
	t.Parallel()

	custom := &BidIncrementRules{Rules: map[string]int64{
		IncrementTierLow:  2,
		IncrementTierMid:  0,
		IncrementTierHigh: 100,
	}}

	tests := []struct {
		name   string
		rules  *BidIncrementRules
		amount int64
		want   int64
	}{
		{name: "nil_low", amount: 0, want: 5},
		{name: "nil_low_edge", amount: 99, want: 5},
		{name: "nil_mid", amount: 100, want: 10},
		{name: "nil_mid_edge", amount: 499, want: 10},
		{name: "nil_high", amount: 500, want: 25},
		{name: "custom_low", rules: custom, amount: 10, want: 2},
		{name: "custom_zero_falls_back", rules: custom, amount: 200, want: 10},
		{name: "custom_high", rules: custom, amount: 10000, want: 100},
		{name: "empty_map", rules: &BidIncrementRules{}, amount: 600, want: 25},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, tt.rules.IncrementFor(tt.amount), tt.name)
	}
}

func TestParseAuctionStatus(t *testing.T) {
	t.Parallel()

	status, ok := ParseAuctionStatus(" ongoing ")
	require.True(t, ok)
	require.Equal(t, AuctionOngoing, status)

	_, ok = ParseAuctionStatus("OPEN")
	require.False(t, ok)

	require.True(t, AuctionPending.AcceptsPriceChanges())
	require.False(t, AuctionOngoing.AcceptsPriceChanges())
}

func TestIdentityHasRole(t *testing.T) {
	t.Parallel()

	var anonymous *Identity
	require.False(t, anonymous.HasRole("ROLE_ADMIN"))

	admin := &Identity{UserID: "1", Roles: []string{"ROLE_USER", "ROLE_ADMIN"}}
	require.True(t, admin.HasRole("ROLE_ADMIN"))
	require.False(t, admin.HasRole("ROLE_ROOT"))
}

func TestTypedErrorsUnwrap(t *testing.T) {
	t.Parallel()

	tooLow := fmt.Errorf("place bid: %w", &BidTooLowError{Amount: 1049, Minimum: 1050})
	require.ErrorIs(t, tooLow, ErrValidation)
	require.Contains(t, tooLow.Error(), "minimum 1050")

	var target *BidTooLowError
	require.True(t, errors.As(tooLow, &target))
	require.Equal(t, int64(1050), target.Minimum)

	notOpen := &AuctionNotOpenError{AuctionID: 3, Status: AuctionCompleted}
	require.ErrorIs(t, notOpen, ErrStateConflict)
	require.NotErrorIs(t, notOpen, ErrValidation)
	require.Equal(t, "cannot place bid: auction 3 is COMPLETED", notOpen.Error())
}

func TestMinimumBid(t *testing.T) {
	t.Parallel()

	a := &Auction{CurrentPrice: 1000, PriceIncrement: 50}
	require.Equal(t, int64(1050), a.MinimumBid())
}
