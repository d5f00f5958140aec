package policy

import "fmt"

// Thresholds is the immutable trading policy. Loaded once at startup and
// never mutated; all fields are required.
type Thresholds struct {
	// AvoidYearThreshold is the minimum price/52wk-high ratio to consider buying.
	AvoidYearThreshold float64
	// BuyYearThreshold is the maximum price/52wk-high ratio to consider buying.
	BuyYearThreshold float64
	// SellYearThreshold is the maximum price/52wk-high ratio to consider selling.
	SellYearThreshold float64
	// BuyThreshold is the most positive price-change ratio that still triggers
	// a buy. With a value of 0 only dips are bought.
	BuyThreshold float64
	// ProfitThreshold is the minimum profit ratio required to sell.
	ProfitThreshold float64
	// BuyingPowerLimit is the fraction of buying power usable per single buy.
	BuyingPowerLimit float64
	// PortfolioBuyThreshold caps a buy at a fraction of total account value.
	PortfolioBuyThreshold float64
	// PortfolioSellThreshold caps a sell at a fraction of total account value.
	PortfolioSellThreshold float64
	// BuyDollarFloor and SellDollarFloor are minimum order sizes in dollars.
	BuyDollarFloor  float64
	SellDollarFloor float64
	// SellFractional permits partial-position sells.
	SellFractional bool
	// ExcludePortfolioItems skips buy candidates we already hold.
	ExcludePortfolioItems bool
}

type Action string

const (
	Buy    Action = "BUY"
	Sell   Action = "SELL"
	Reject Action = "REJECT"
)

// Decision is the sized outcome of an eligibility evaluation. A sell is
// either dollar-denominated (Amount) or share-denominated (Qty, AsUnits);
// buys are always dollar-denominated. Rejections carry the failing check's
// reason and are never retried.
type Decision struct {
	Action  Action
	Amount  float64
	Qty     float64
	AsUnits bool
	Reason  string
}

func reject(reason string) Decision {
	return Decision{Action: Reject, Reason: reason}
}

func rejectf(format string, args ...any) Decision {
	return Decision{Action: Reject, Reason: fmt.Sprintf(format, args...)}
}
