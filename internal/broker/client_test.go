package broker

import "testing"

func TestClassifyRejection(t *testing.T) {
	cases := []struct {
		message string
		want    Reason
	}{
		{"insufficient qty available for order (requested: 10, available: 4)", ReasonInsufficientHoldings},
		{"account has insufficient holdings for this sale", ReasonInsufficientHoldings},
		{"Not Enough Shares to complete sale", ReasonInsufficientHoldings},
		{"insufficient buying power", ReasonPurchaseLimit},
		{"you can only purchase up to $42.00 of this asset", ReasonPurchaseLimit},
		{"requested notional exceeds buying power", ReasonPurchaseLimit},
		{"asset is not tradable", ReasonNone},
		{"", ReasonNone},
	}
	for _, tc := range cases {
		if got := classifyRejection(tc.message); got != tc.want {
			t.Fatalf("classifyRejection(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}
