package engine

import (
	"context"
	"errors"
	"testing"

	"dipbot/internal/broker"
	"dipbot/internal/market"
)

// fakeSource serves canned snapshots.
type fakeSource struct {
	pf         market.Portfolio
	pfErr      error
	snaps      map[string]market.Snapshot
	snapErrs   map[string]error
	candidates []market.Snapshot
	candErr    error
}

func (f *fakeSource) PortfolioSnapshot(context.Context) (market.Portfolio, error) {
	return f.pf, f.pfErr
}

func (f *fakeSource) MarketSnapshot(_ context.Context, symbol string) (market.Snapshot, error) {
	if err, ok := f.snapErrs[symbol]; ok {
		return market.Snapshot{}, err
	}
	return f.snaps[symbol], nil
}

func (f *fakeSource) BuyCandidates(context.Context) ([]market.Snapshot, error) {
	return f.candidates, f.candErr
}

func sellableSnapshot(symbol string) market.Snapshot {
	return market.Snapshot{
		Symbol:       symbol,
		CurrentPrice: 130,
		AverageCost:  100,
		Week52High:   200,
		HeldShares:   10,
		HeldEquity:   1300,
	}
}

func TestSellPassEmptyPortfolio(t *testing.T) {
	source := &fakeSource{pf: market.Portfolio{BuyingPower: 1000, HeldSymbols: map[string]market.AssetClass{}}}
	runner := testRunner(t, testConfig(), &scriptedOrders{}, source)

	results, err := runner.SellPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusNothingToDo {
		t.Fatalf("expected single nothing-to-do record, got %+v", results)
	}
}

func TestSellPassContinuesPastDataErrors(t *testing.T) {
	source := &fakeSource{
		pf: market.Portfolio{
			BuyingPower: 1000,
			TotalEquity: 9000,
			HeldSymbols: map[string]market.AssetClass{"AAPL": market.Equity, "GOOG": market.Equity},
		},
		snaps:    map[string]market.Snapshot{"GOOG": sellableSnapshot("GOOG")},
		snapErrs: map[string]error{"AAPL": errors.New("market data for AAPL: no bars returned")},
	}
	orders := &scriptedOrders{results: []broker.OrderResult{filled()}}
	runner := testRunner(t, testConfig(), orders, source)

	results, err := runner.SellPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 records, got %+v", results)
	}
	if results[0].Symbol != "AAPL" || results[0].Status != StatusError {
		t.Fatalf("expected error record for AAPL, got %+v", results[0])
	}
	if results[1].Symbol != "GOOG" || results[1].Status != StatusFilled {
		t.Fatalf("expected fill for GOOG, got %+v", results[1])
	}
}

func TestSellPassHaltsAtLimit(t *testing.T) {
	held := map[string]market.AssetClass{"AAPL": market.Equity, "AMZN": market.Equity, "GOOG": market.Equity}
	snaps := map[string]market.Snapshot{}
	for symbol := range held {
		snaps[symbol] = sellableSnapshot(symbol)
	}
	source := &fakeSource{
		pf:    market.Portfolio{BuyingPower: 1000, TotalEquity: 9000, HeldSymbols: held},
		snaps: snaps,
	}
	cfg := testConfig()
	cfg.SellLimit = 2
	runner := testRunner(t, cfg, &scriptedOrders{results: []broker.OrderResult{filled()}}, source)

	results, err := runner.SellPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 2 processed symbols plus terminal record, got %+v", results)
	}
	if results[2].Status != StatusLimitReached {
		t.Fatalf("expected terminal limit record, got %+v", results[2])
	}
}

func TestSellPassSkipsCryptoWhenExcluded(t *testing.T) {
	source := &fakeSource{
		pf: market.Portfolio{
			BuyingPower: 1000,
			TotalEquity: 9000,
			HeldSymbols: map[string]market.AssetClass{"BTC/USD": market.Crypto},
		},
	}
	cfg := testConfig()
	cfg.IncludeCrypto = false
	runner := testRunner(t, cfg, &scriptedOrders{}, source)

	results, err := runner.SellPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusNothingToDo {
		t.Fatalf("expected nothing-to-do after class filter, got %+v", results)
	}
}

func TestBuyPassNoCandidates(t *testing.T) {
	source := &fakeSource{pf: market.Portfolio{BuyingPower: 1000}}
	runner := testRunner(t, testConfig(), &scriptedOrders{}, source)

	results, err := runner.BuyPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusNothingToDo {
		t.Fatalf("expected single nothing-to-do record, got %+v", results)
	}
}

func TestBuyPassSubmitsForEligibleCandidate(t *testing.T) {
	source := &fakeSource{
		pf: market.Portfolio{BuyingPower: 1000, TotalEquity: 9000, HeldSymbols: map[string]market.AssetClass{}},
		candidates: []market.Snapshot{{
			Symbol:           "AMZN",
			CurrentPrice:     90,
			PeriodStartPrice: 100,
			Week52High:       150,
		}},
	}
	orders := &scriptedOrders{results: []broker.OrderResult{filled()}}
	runner := testRunner(t, testConfig(), orders, source)

	results, err := runner.BuyPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusFilled {
		t.Fatalf("expected fill, got %+v", results)
	}
	if len(orders.requests) != 1 || orders.requests[0].Mode != broker.BuyByAmount {
		t.Fatalf("expected one buy-by-amount order, got %+v", orders.requests)
	}
	if amount, _ := orders.requests[0].Value.Float64(); amount != 100 {
		t.Fatalf("expected 100 dollar order, got %.2f", amount)
	}
}

func TestBuyPassRecordsPolicyRejections(t *testing.T) {
	source := &fakeSource{
		pf: market.Portfolio{BuyingPower: 1000, TotalEquity: 9000, HeldSymbols: map[string]market.AssetClass{"AMZN": market.Equity}},
		candidates: []market.Snapshot{{
			Symbol:           "AMZN",
			CurrentPrice:     90,
			PeriodStartPrice: 100,
			Week52High:       150,
		}},
	}
	orders := &scriptedOrders{}
	runner := testRunner(t, testConfig(), orders, source)

	results, err := runner.BuyPass(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusRejected {
		t.Fatalf("expected policy rejection record, got %+v", results)
	}
	if len(orders.requests) != 0 {
		t.Fatalf("expected no order submissions, got %d", len(orders.requests))
	}
}

func TestBuyPassPropagatesPortfolioError(t *testing.T) {
	source := &fakeSource{pfErr: errors.New("account unavailable")}
	runner := testRunner(t, testConfig(), &scriptedOrders{}, source)

	if _, err := runner.BuyPass(context.Background()); err == nil {
		t.Fatalf("expected error when portfolio fetch fails")
	}
}
