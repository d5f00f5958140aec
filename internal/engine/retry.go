package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"dipbot/internal/broker"
	"dipbot/internal/market"
	"dipbot/internal/metrics"
	"dipbot/internal/policy"
)

// decayFactor shrinks a size-rejected buy before resubmission.
const decayFactor = 0.90

// submitSell places a dollar-denominated sell. Holdings are exact on the
// broker side, so an insufficient-holdings rejection gets one corrective
// retry as a quantity order for the full share balance, not a decay loop.
func (r *Runner) submitSell(ctx context.Context, snap market.Snapshot, dec policy.Decision) Result {
	if dec.AsUnits {
		return r.sellQuantity(ctx, snap, dec.Qty)
	}

	res, err := r.orders.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: snap.Symbol,
		Class:  snap.Class,
		Value:  decimal.NewFromFloat(dec.Amount),
		Mode:   broker.SellByAmount,
	})
	if err != nil {
		metrics.Orders.WithLabelValues(string(broker.SellByAmount), StatusError).Inc()
		return Result{Pass: PassSell, Symbol: snap.Symbol, Status: StatusError, Detail: err.Error()}
	}
	if res.Status == broker.StatusRejected {
		if res.Reason == broker.ReasonInsufficientHoldings {
			slog.Info("sell converted to quantity order", "symbol", snap.Symbol, "qty", snap.HeldShares)
			metrics.Shrinks.WithLabelValues(string(broker.SellByAmount)).Inc()
			return r.sellQuantity(ctx, snap, snap.HeldShares)
		}
		metrics.Orders.WithLabelValues(string(broker.SellByAmount), StatusRejected).Inc()
		return Result{Pass: PassSell, Symbol: snap.Symbol, Status: StatusRejected, Detail: res.Message}
	}
	metrics.Orders.WithLabelValues(string(broker.SellByAmount), StatusFilled).Inc()
	return Result{Pass: PassSell, Symbol: snap.Symbol, Status: StatusFilled, Amount: dec.Amount, OrderID: res.OrderID}
}

func (r *Runner) sellQuantity(ctx context.Context, snap market.Snapshot, qty float64) Result {
	rounded := roundQuantity(qty, snap.Class)
	res, err := r.orders.SubmitOrder(ctx, broker.OrderRequest{
		Symbol: snap.Symbol,
		Class:  snap.Class,
		Value:  rounded,
		Mode:   broker.SellByQuantity,
	})
	if err != nil {
		metrics.Orders.WithLabelValues(string(broker.SellByQuantity), StatusError).Inc()
		return Result{Pass: PassSell, Symbol: snap.Symbol, Status: StatusError, Detail: err.Error()}
	}
	if res.Status == broker.StatusRejected {
		metrics.Orders.WithLabelValues(string(broker.SellByQuantity), StatusRejected).Inc()
		return Result{Pass: PassSell, Symbol: snap.Symbol, Status: StatusRejected, Detail: res.Message}
	}
	metrics.Orders.WithLabelValues(string(broker.SellByQuantity), StatusFilled).Inc()
	qtyFloat, _ := rounded.Float64()
	return Result{Pass: PassSell, Symbol: snap.Symbol, Status: StatusFilled, Qty: qtyFloat, OrderID: res.OrderID}
}

// submitBuy places a dollar-denominated buy and shrinks it by the decay
// factor on each purchase-limit rejection. The amount strictly decreases, so
// the loop terminates once it crosses the dollar floor.
func (r *Runner) submitBuy(ctx context.Context, snap market.Snapshot, dec policy.Decision) Result {
	amount := dec.Amount
	for {
		res, err := r.orders.SubmitOrder(ctx, broker.OrderRequest{
			Symbol: snap.Symbol,
			Class:  snap.Class,
			Value:  decimal.NewFromFloat(amount),
			Mode:   broker.BuyByAmount,
		})
		if err != nil {
			metrics.Orders.WithLabelValues(string(broker.BuyByAmount), StatusError).Inc()
			return Result{Pass: PassBuy, Symbol: snap.Symbol, Status: StatusError, Detail: err.Error()}
		}
		if res.Status == broker.StatusRejected {
			if res.Reason != broker.ReasonPurchaseLimit {
				metrics.Orders.WithLabelValues(string(broker.BuyByAmount), StatusRejected).Inc()
				return Result{Pass: PassBuy, Symbol: snap.Symbol, Status: StatusRejected, Detail: res.Message}
			}
			amount *= decayFactor
			metrics.Shrinks.WithLabelValues(string(broker.BuyByAmount)).Inc()
			if amount < r.thresholds.BuyDollarFloor {
				metrics.Orders.WithLabelValues(string(broker.BuyByAmount), StatusRejected).Inc()
				return Result{
					Pass:   PassBuy,
					Symbol: snap.Symbol,
					Status: StatusRejected,
					Detail: fmt.Sprintf("fraction too small to purchase (%.2f)", amount),
				}
			}
			slog.Info("buy amount shrunk", "symbol", snap.Symbol, "amount", amount)
			continue
		}
		metrics.Orders.WithLabelValues(string(broker.BuyByAmount), StatusFilled).Inc()
		return Result{Pass: PassBuy, Symbol: snap.Symbol, Status: StatusFilled, Amount: amount, OrderID: res.OrderID}
	}
}

// roundQuantity trims share quantities to what the broker accepts: 8 decimal
// places for crypto, 6 for equities.
func roundQuantity(qty float64, class market.AssetClass) decimal.Decimal {
	places := int32(6)
	if class == market.Crypto {
		places = 8
	}
	return decimal.NewFromFloat(qty).Round(places)
}
