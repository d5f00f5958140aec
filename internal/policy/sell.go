package policy

import (
	"log/slog"
	"math"

	"dipbot/internal/market"
)

// EvaluateSell applies the sell checks in order; the first failing check
// short-circuits with its reason. An eligible position is then sized against
// the portfolio concentration cap and the dollar floor.
func EvaluateSell(snap market.Snapshot, pf market.Portfolio, t Thresholds) Decision {
	if snap.HeldShares == 0 {
		return reject("no shares available for sale")
	}

	profit := snap.ProfitRatio()
	if profit < t.ProfitThreshold {
		return rejectf("profit below threshold (%.2f%%)", profit*100)
	}

	proximity := snap.Proximity()
	if proximity > t.SellYearThreshold {
		return rejectf("too close to 52-week high (price %.2f, high %.2f)", snap.CurrentPrice, snap.Week52High)
	}

	candidate := snap.HeldEquity

	// Equity can round to zero while shares remain; liquidate by quantity.
	if !t.SellFractional || candidate == 0 {
		slog.Info("sell sized", "symbol", snap.Symbol, "qty", snap.HeldShares, "reason", "full_position")
		return Decision{Action: Sell, Qty: snap.HeldShares, AsUnits: true, Reason: "selling full position"}
	}

	if cap := t.PortfolioSellThreshold * pf.TotalAccountValue(); candidate > cap {
		slog.Info("sell capped", "symbol", snap.Symbol, "candidate", snap.HeldEquity, "cap", cap)
		candidate = cap
	}

	// Below the dollar floor the broker refuses price orders; convert to shares.
	if candidate < t.SellDollarFloor {
		qty := candidate / snap.CurrentPrice
		if qty > snap.HeldShares {
			qty = snap.HeldShares
		}
		slog.Info("sell sized", "symbol", snap.Symbol, "qty", qty, "reason", "below_dollar_floor")
		return Decision{Action: Sell, Qty: qty, AsUnits: true, Reason: "below dollar floor, selling as shares"}
	}

	// Avoid leaving dust behind: if the remainder would be under the floor,
	// sell everything by quantity instead.
	if math.Abs(snap.HeldEquity-candidate) < t.SellDollarFloor {
		slog.Info("sell sized", "symbol", snap.Symbol, "qty", snap.HeldShares, "reason", "remainder_below_floor")
		return Decision{Action: Sell, Qty: snap.HeldShares, AsUnits: true, Reason: "remainder below dollar floor, selling full position"}
	}

	slog.Info("sell sized", "symbol", snap.Symbol, "amount", candidate)
	return Decision{Action: Sell, Amount: candidate, Reason: "threshold sell"}
}
