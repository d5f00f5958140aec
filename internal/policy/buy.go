package policy

import (
	"log/slog"

	"dipbot/internal/market"
)

// EvaluateBuy applies the buy checks in order, then sizes the order from
// buying power. The portfolio-concentration cap is applied before the
// buying-power cap is re-verified; that ordering is load-bearing when the
// two caps disagree.
func EvaluateBuy(snap market.Snapshot, pf market.Portfolio, t Thresholds) Decision {
	if t.ExcludePortfolioItems && pf.Holds(snap.Symbol) {
		return reject("already in portfolio")
	}

	if pf.BuyingPower < t.BuyDollarFloor {
		return rejectf("buying power below dollar floor (%.2f)", pf.BuyingPower)
	}

	change := snap.PriceChange()
	if change >= t.BuyThreshold {
		return rejectf("price change above buy threshold (%.2f%%)", change*100)
	}

	proximity := snap.Proximity()
	if proximity <= t.AvoidYearThreshold {
		return rejectf("too far from 52-week high (price %.2f, high %.2f)", snap.CurrentPrice, snap.Week52High)
	}
	if proximity >= t.BuyYearThreshold {
		return rejectf("too close to 52-week high (price %.2f, high %.2f)", snap.CurrentPrice, snap.Week52High)
	}

	amount := pf.BuyingPower * t.BuyingPowerLimit
	if cap := t.PortfolioBuyThreshold * pf.TotalAccountValue(); amount > cap {
		slog.Info("buy capped", "symbol", snap.Symbol, "amount", amount, "cap", cap)
		amount = cap
	}
	if limit := pf.BuyingPower * t.BuyingPowerLimit; amount > limit {
		amount = limit
	}
	if amount < t.BuyDollarFloor {
		amount = t.BuyDollarFloor
	}

	slog.Info("buy sized", "symbol", snap.Symbol, "amount", amount, "change", change, "proximity", proximity)
	return Decision{Action: Buy, Amount: amount, Reason: "dip buy"}
}
