package md

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"dipbot/internal/broker"
	"dipbot/internal/market"
)

type Config struct {
	// CryptoWatchlist lists crypto pairs to track; the screener only covers
	// equities, so crypto candidates have to be named up front.
	CryptoWatchlist []string
	// PeriodDays is the lookback window for the price-change ratio.
	PeriodDays int
	// MoversLimit caps how many most-active symbols feed the buy pass.
	MoversLimit int
}

// Source builds decision snapshots from alpaca market data and the trading
// account. It implements market.SnapshotSource.
type Source struct {
	data    *marketdata.Client
	trading *broker.Client
	cfg     Config
	crypto  map[string]struct{}
	// positions from the last portfolio fetch; the batch runner fetches the
	// portfolio before any symbol, so per-symbol lookups hit this cache.
	positions map[string]broker.Position
}

func New(data *marketdata.Client, trading *broker.Client, cfg Config) *Source {
	crypto := make(map[string]struct{}, len(cfg.CryptoWatchlist))
	for _, sym := range cfg.CryptoWatchlist {
		crypto[sym] = struct{}{}
	}
	return &Source{
		data:      data,
		trading:   trading,
		cfg:       cfg,
		crypto:    crypto,
		positions: map[string]broker.Position{},
	}
}

func (s *Source) PortfolioSnapshot(ctx context.Context) (market.Portfolio, error) {
	acct, err := s.trading.Account(ctx)
	if err != nil {
		return market.Portfolio{}, fmt.Errorf("fetch account: %w", err)
	}
	positions, err := s.trading.Positions(ctx)
	if err != nil {
		return market.Portfolio{}, fmt.Errorf("fetch positions: %w", err)
	}

	held := make(map[string]market.AssetClass, len(positions))
	cache := make(map[string]broker.Position, len(positions))
	totalEquity := 0.0
	for _, pos := range positions {
		held[pos.Symbol] = pos.Class
		cache[pos.Symbol] = pos
		totalEquity += pos.MarketValue
		if pos.Class == market.Crypto {
			s.crypto[pos.Symbol] = struct{}{}
		}
	}
	s.positions = cache

	return market.Portfolio{
		BuyingPower: acct.BuyingPower,
		TotalEquity: totalEquity,
		HeldSymbols: held,
	}, nil
}

func (s *Source) MarketSnapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	class := s.classOf(symbol)

	price, bars, err := s.fetch(symbol, class)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("market data for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return market.Snapshot{}, fmt.Errorf("market data for %s: no bars returned", symbol)
	}

	week52High := 0.0
	for _, b := range bars {
		if b.high > week52High {
			week52High = b.high
		}
	}
	start := len(bars) - s.cfg.PeriodDays
	if start < 0 {
		start = 0
	}
	periodStart := bars[start].close

	if price == 0 {
		price = bars[len(bars)-1].close
	}

	snap := market.Snapshot{
		Symbol:           symbol,
		Class:            class,
		CurrentPrice:     price,
		PeriodStartPrice: periodStart,
		Week52High:       week52High,
	}
	if pos, ok := s.positions[symbol]; ok {
		snap.HeldShares = pos.Qty
		snap.AverageCost = pos.AvgEntry
		snap.HeldEquity = pos.MarketValue
		if snap.HeldEquity == 0 && pos.Qty > 0 {
			snap.HeldEquity = pos.Qty * price
		}
	}
	return snap, nil
}

type dailyBar struct {
	high  float64
	close float64
}

// fetch returns the latest trade price and a year of daily bars, which cover
// both the 52-week high and the period-start price.
func (s *Source) fetch(symbol string, class market.AssetClass) (float64, []dailyBar, error) {
	start := time.Now().AddDate(-1, 0, 0)

	if class == market.Crypto {
		bars, err := s.data.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
		})
		if err != nil {
			return 0, nil, err
		}
		daily := make([]dailyBar, 0, len(bars))
		for _, b := range bars {
			daily = append(daily, dailyBar{high: b.High, close: b.Close})
		}
		var price float64
		if snap, err := s.data.GetCryptoSnapshot(symbol, marketdata.GetCryptoSnapshotRequest{}); err == nil && snap.LatestTrade != nil {
			price = snap.LatestTrade.Price
		}
		return price, daily, nil
	}

	bars, err := s.data.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
	})
	if err != nil {
		return 0, nil, err
	}
	daily := make([]dailyBar, 0, len(bars))
	for _, b := range bars {
		daily = append(daily, dailyBar{high: b.High, close: b.Close})
	}
	var price float64
	if snap, err := s.data.GetSnapshot(symbol, marketdata.GetSnapshotRequest{}); err == nil && snap.LatestTrade != nil {
		price = snap.LatestTrade.Price
	}
	return price, daily, nil
}

// BuyCandidates combines the most-active equity movers with the crypto
// watchlist, keeps the symbols that fell over the lookback period and
// returns them worst first. Symbols whose data is unavailable are skipped.
func (s *Source) BuyCandidates(ctx context.Context) ([]market.Snapshot, error) {
	actives, err := s.data.GetMostActives(marketdata.GetMostActivesRequest{By: "volume", Top: s.cfg.MoversLimit})
	if err != nil {
		return nil, fmt.Errorf("fetch most actives: %w", err)
	}

	symbols := make([]string, 0, len(actives)+len(s.cfg.CryptoWatchlist))
	seen := map[string]struct{}{}
	for _, active := range actives {
		if _, ok := seen[active.Symbol]; !ok {
			seen[active.Symbol] = struct{}{}
			symbols = append(symbols, active.Symbol)
		}
	}
	for _, sym := range s.cfg.CryptoWatchlist {
		if _, ok := seen[sym]; !ok {
			seen[sym] = struct{}{}
			symbols = append(symbols, sym)
		}
	}

	candidates := make([]market.Snapshot, 0, len(symbols))
	for _, sym := range symbols {
		snap, err := s.MarketSnapshot(ctx, sym)
		if err != nil {
			slog.Warn("candidate skipped", "symbol", sym, "error", err)
			continue
		}
		if snap.PriceChange() < 0 {
			candidates = append(candidates, snap)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PriceChange() < candidates[j].PriceChange()
	})

	slog.Info("buy candidates built", "screened", len(symbols), "falling", len(candidates))
	return candidates, nil
}

func (s *Source) classOf(symbol string) market.AssetClass {
	if _, ok := s.crypto[symbol]; ok {
		return market.Crypto
	}
	if strings.Contains(symbol, "/") {
		return market.Crypto
	}
	return market.Equity
}
