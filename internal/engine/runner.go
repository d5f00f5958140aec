package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dipbot/internal/broker"
	"dipbot/internal/config"
	"dipbot/internal/market"
	"dipbot/internal/metrics"
	"dipbot/internal/policy"
)

const (
	PassSell = "sell"
	PassBuy  = "buy"
)

const (
	StatusFilled       = "filled"
	StatusRejected     = "rejected"
	StatusError        = "error"
	StatusLimitReached = "limit_reached"
	StatusNothingToDo  = "nothing_to_do"
)

// Result is one record per processed symbol, plus the terminal records for
// an exhausted limit or an empty pass.
type Result struct {
	Pass    string  `json:"pass"`
	Symbol  string  `json:"symbol,omitempty"`
	Status  string  `json:"status"`
	Detail  string  `json:"detail,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
	Qty     float64 `json:"qty,omitempty"`
	OrderID string  `json:"order_id,omitempty"`
}

func (r Result) String() string {
	prefix := "Sell"
	if r.Pass == PassBuy {
		prefix = "Buy"
	}
	switch r.Status {
	case StatusLimitReached, StatusNothingToDo:
		return fmt.Sprintf("%s pass: %s", prefix, r.Detail)
	case StatusFilled:
		if r.Qty > 0 {
			return fmt.Sprintf("%s %s result: filled %.8f shares (order %s)", prefix, r.Symbol, r.Qty, r.OrderID)
		}
		return fmt.Sprintf("%s %s result: filled $%.2f (order %s)", prefix, r.Symbol, r.Amount, r.OrderID)
	default:
		return fmt.Sprintf("%s %s result: %s (%s)", prefix, r.Symbol, r.Status, r.Detail)
	}
}

// Runner drives one batch pass at a time: evaluate, size, submit, record.
// Execution is strictly sequential; one symbol's order is fully resolved
// before the next symbol is looked at.
type Runner struct {
	cfg        config.Config
	thresholds policy.Thresholds
	source     market.SnapshotSource
	orders     broker.OrderClient
	decisions  *DecisionLogger
}

func New(cfg config.Config, source market.SnapshotSource, orders broker.OrderClient, decisions *DecisionLogger) *Runner {
	return &Runner{
		cfg:        cfg,
		thresholds: cfg.Thresholds(),
		source:     source,
		orders:     orders,
		decisions:  decisions,
	}
}

// SellPass evaluates every held symbol against the sell policy.
func (r *Runner) SellPass(ctx context.Context) ([]Result, error) {
	pf, err := r.source.PortfolioSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("portfolio snapshot: %w", err)
	}
	metrics.Equity.Set(pf.TotalEquity)
	metrics.BuyingPower.Set(pf.BuyingPower)

	symbols := make([]string, 0, len(pf.HeldSymbols))
	for _, symbol := range pf.Symbols() {
		if r.includeClass(pf.HeldSymbols[symbol]) {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		return []Result{{Pass: PassSell, Status: StatusNothingToDo, Detail: "no positions to evaluate"}}, nil
	}

	results := make([]Result, 0, len(symbols))
	processed := 0
	for _, symbol := range symbols {
		if r.cfg.SellLimit > 0 && processed >= r.cfg.SellLimit {
			results = append(results, Result{
				Pass:   PassSell,
				Status: StatusLimitReached,
				Detail: fmt.Sprintf("max number of sales reached (%d)", r.cfg.SellLimit),
			})
			break
		}
		processed++

		snap, err := r.source.MarketSnapshot(ctx, symbol)
		if err != nil {
			slog.Error("snapshot unavailable", "pass", PassSell, "symbol", symbol, "error", err)
			results = append(results, Result{Pass: PassSell, Symbol: symbol, Status: StatusError, Detail: err.Error()})
			continue
		}

		dec := policy.EvaluateSell(snap, pf, r.thresholds)
		metrics.Decisions.WithLabelValues(PassSell, string(dec.Action)).Inc()
		if dec.Action == policy.Reject {
			results = append(results, r.record(PassSell, snap, dec, Result{
				Pass: PassSell, Symbol: symbol, Status: StatusRejected, Detail: dec.Reason,
			}))
			continue
		}
		results = append(results, r.record(PassSell, snap, dec, r.submitSell(ctx, snap, dec)))
	}
	return results, nil
}

// BuyPass evaluates the falling candidates against the buy policy. The
// portfolio snapshot is taken once up front; buys later in the pass are
// sized against the same account view.
func (r *Runner) BuyPass(ctx context.Context) ([]Result, error) {
	pf, err := r.source.PortfolioSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("portfolio snapshot: %w", err)
	}
	metrics.Equity.Set(pf.TotalEquity)
	metrics.BuyingPower.Set(pf.BuyingPower)

	candidates, err := r.source.BuyCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("buy candidates: %w", err)
	}
	filtered := make([]market.Snapshot, 0, len(candidates))
	for _, snap := range candidates {
		if r.includeClass(snap.Class) {
			filtered = append(filtered, snap)
		}
	}
	if len(filtered) == 0 {
		return []Result{{Pass: PassBuy, Status: StatusNothingToDo, Detail: "no falling candidates"}}, nil
	}

	results := make([]Result, 0, len(filtered))
	processed := 0
	for _, snap := range filtered {
		if r.cfg.BuyLimit > 0 && processed >= r.cfg.BuyLimit {
			results = append(results, Result{
				Pass:   PassBuy,
				Status: StatusLimitReached,
				Detail: fmt.Sprintf("max number of purchases reached (%d)", r.cfg.BuyLimit),
			})
			break
		}
		processed++

		dec := policy.EvaluateBuy(snap, pf, r.thresholds)
		metrics.Decisions.WithLabelValues(PassBuy, string(dec.Action)).Inc()
		if dec.Action == policy.Reject {
			results = append(results, r.record(PassBuy, snap, dec, Result{
				Pass: PassBuy, Symbol: snap.Symbol, Status: StatusRejected, Detail: dec.Reason,
			}))
			continue
		}
		results = append(results, r.record(PassBuy, snap, dec, r.submitBuy(ctx, snap, dec)))
	}
	return results, nil
}

func (r *Runner) includeClass(class market.AssetClass) bool {
	if r.cfg.OnlyCrypto {
		return class == market.Crypto
	}
	if !r.cfg.IncludeCrypto {
		return class != market.Crypto
	}
	return true
}

func (r *Runner) record(pass string, snap market.Snapshot, dec policy.Decision, res Result) Result {
	r.decisions.Append(Decision{
		RunID:     r.decisions.RunID(),
		Timestamp: time.Now().UTC(),
		Pass:      pass,
		Symbol:    snap.Symbol,
		Price:     snap.CurrentPrice,
		Action:    string(dec.Action),
		Amount:    res.Amount,
		Qty:       res.Qty,
		Reason:    dec.Reason,
		Result:    res.Status,
		Detail:    res.Detail,
		OrderID:   res.OrderID,
	})
	return res
}
