// Package metrics exposes the bot's Prometheus collectors:
//   - bot_decisions_total{pass,action} – decisions per pass and outcome
//   - bot_orders_total{mode,status}    – submitted orders by mode and result
//   - bot_order_shrinks_total{mode}    – retry-loop amount reductions
//   - bot_equity_usd                   – position equity at last portfolio fetch
//   - bot_buying_power_usd             – buying power at last portfolio fetch
package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Decisions taken",
		},
		[]string{"pass", "action"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders submitted",
		},
		[]string{"mode", "status"},
	)

	Shrinks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_order_shrinks_total",
			Help: "Order amounts shrunk by the retry loop",
		},
		[]string{"mode"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Position equity in USD",
		},
	)

	BuyingPower = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_buying_power_usd",
			Help: "Buying power in USD",
		},
	)
)

func init() {
	prometheus.MustRegister(Decisions, Orders, Shrinks, Equity, BuyingPower)
}

// Serve exposes /metrics on addr in a background goroutine. A batch run is
// short-lived; scrapes between runs are the operator's concern.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}
