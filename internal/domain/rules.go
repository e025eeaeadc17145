package domain

const (
	IncrementTierLow  = "0-100"
	IncrementTierMid  = "100-500"
	IncrementTierHigh = "500+"
)

// DefaultIncrementRules are used when no rules have been configured.
func DefaultIncrementRules() *BidIncrementRules {
	return &BidIncrementRules{
		Rules: map[string]int64{
			IncrementTierLow:  5,
			IncrementTierMid:  10,
			IncrementTierHigh: 25,
		},
	}
}

// IncrementFor picks the tier for amount. Missing or non-positive tiers fall back to the defaults.
func (r *BidIncrementRules) IncrementFor(amount int64) int64 {
	tier := IncrementTierHigh
	if amount < 100 {
		tier = IncrementTierLow
	} else if amount < 500 {
		tier = IncrementTierMid
	}

	if r != nil {
		if inc, ok := r.Rules[tier]; ok && inc > 0 {
			return inc
		}
	}
	return DefaultIncrementRules().Rules[tier]
}
