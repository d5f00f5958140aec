package market

import (
	"context"
	"sort"
)

type AssetClass string

const (
	Equity AssetClass = "equity"
	Crypto AssetClass = "crypto"
)

// Snapshot is an immutable per-symbol view of the market and of our holding
// in it, valid for a single decision pass. The data collaborator resolves the
// asset class once; nothing downstream re-derives it.
type Snapshot struct {
	Symbol           string
	Class            AssetClass
	CurrentPrice     float64
	PeriodStartPrice float64
	Week52High       float64
	HeldShares       float64
	AverageCost      float64
	HeldEquity       float64
}

// ProfitRatio is the gain over the average cost basis.
func (s Snapshot) ProfitRatio() float64 {
	return (s.CurrentPrice - s.AverageCost) / s.AverageCost
}

// PriceChange is the movement since the start of the lookback period.
func (s Snapshot) PriceChange() float64 {
	return (s.CurrentPrice - s.PeriodStartPrice) / s.PeriodStartPrice
}

// Proximity is current price over the 52-week high. It can exceed 1 when the
// recorded high is stale; callers must treat that as a valid input.
func (s Snapshot) Proximity() float64 {
	return s.CurrentPrice / s.Week52High
}

// Portfolio is the account-level view, fetched once per batch and read-only
// for the duration of the pass. HeldSymbols maps each held symbol to its
// asset class.
type Portfolio struct {
	BuyingPower float64
	TotalEquity float64
	HeldSymbols map[string]AssetClass
}

func (p Portfolio) TotalAccountValue() float64 {
	return p.BuyingPower + p.TotalEquity
}

func (p Portfolio) Holds(symbol string) bool {
	_, ok := p.HeldSymbols[symbol]
	return ok
}

// Symbols returns the held symbols in a stable order.
func (p Portfolio) Symbols() []string {
	symbols := make([]string, 0, len(p.HeldSymbols))
	for s := range p.HeldSymbols {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// SnapshotSource is the market-data collaborator the engine consumes.
type SnapshotSource interface {
	// PortfolioSnapshot is called once per batch pass.
	PortfolioSnapshot(ctx context.Context) (Portfolio, error)
	// MarketSnapshot may fail with a data-unavailable error, which is fatal
	// for that symbol only.
	MarketSnapshot(ctx context.Context, symbol string) (Snapshot, error)
	// BuyCandidates returns snapshots of symbols with negative movement over
	// the lookback period, worst movers first.
	BuyCandidates(ctx context.Context) ([]Snapshot, error)
}
