package broker

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"

	"dipbot/internal/market"
)

type Position struct {
	Symbol      string
	Class       market.AssetClass
	Qty         float64
	AvgEntry    float64
	MarketValue float64
}

type Account struct {
	Equity      float64
	BuyingPower float64
}

// Client wraps the alpaca trading API.
type Client struct {
	client *alpaca.Client
}

func New(apiKey, apiSecret, baseURL string) *Client {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &Client{client: alpaca.NewClient(opts)}
}

func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	orderReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: uuid.NewString(),
	}
	if req.Class == market.Crypto {
		orderReq.TimeInForce = alpaca.GTC
	}
	value := req.Value
	switch req.Mode {
	case BuyByAmount:
		orderReq.Side = alpaca.Buy
		orderReq.Notional = &value
	case SellByAmount:
		orderReq.Side = alpaca.Sell
		orderReq.Notional = &value
	case SellByQuantity:
		orderReq.Side = alpaca.Sell
		orderReq.Qty = &value
	}

	order, err := c.client.PlaceOrder(orderReq)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			if reason := classifyRejection(apiErr.Message); reason != ReasonNone {
				slog.Info("order rejected", "symbol", req.Symbol, "mode", req.Mode, "value", req.Value, "reason", reason, "message", apiErr.Message)
				return OrderResult{Status: StatusRejected, Reason: reason, Message: apiErr.Message}, nil
			}
		}
		slog.Error("place order failed", "symbol", req.Symbol, "mode", req.Mode, "value", req.Value, "error", err)
		return OrderResult{}, err
	}

	slog.Info("order placed", "order_id", order.ID, "symbol", req.Symbol, "mode", req.Mode, "value", req.Value, "status", order.Status)
	return OrderResult{
		Status:        StatusFilled,
		OrderID:       order.ID,
		ClientOrderID: order.ClientOrderID,
		BrokerStatus:  string(order.Status),
	}, nil
}

// classifyRejection maps broker rejection text to a reason code the retry
// loop can branch on. Everything else stays a hard error.
func classifyRejection(message string) Reason {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "insufficient qty"),
		strings.Contains(msg, "not enough shares"),
		strings.Contains(msg, "insufficient holdings"):
		return ReasonInsufficientHoldings
	case strings.Contains(msg, "insufficient buying power"),
		strings.Contains(msg, "you can only purchase"),
		strings.Contains(msg, "exceeds buying power"):
		return ReasonPurchaseLimit
	}
	return ReasonNone
}

func (c *Client) Account(ctx context.Context) (Account, error) {
	acct, err := c.client.GetAccount()
	if err != nil {
		slog.Error("fetch account failed", "error", err)
		return Account{}, err
	}
	equity, _ := acct.Equity.Float64()
	buyingPower, _ := acct.BuyingPower.Float64()

	slog.Info("account fetched", "equity", equity, "buying_power", buyingPower)
	return Account{Equity: equity, BuyingPower: buyingPower}, nil
}

func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	positions, err := c.client.GetPositions()
	if err != nil {
		slog.Error("fetch positions failed", "error", err)
		return nil, err
	}

	result := make([]Position, 0, len(positions))
	for _, pos := range positions {
		qty, _ := pos.Qty.Float64()
		avgEntry, _ := pos.AvgEntryPrice.Float64()
		p := Position{
			Symbol:   pos.Symbol,
			Class:    market.Equity,
			Qty:      qty,
			AvgEntry: avgEntry,
		}
		if pos.AssetClass == alpaca.Crypto {
			p.Class = market.Crypto
		}
		if pos.MarketValue != nil {
			p.MarketValue, _ = pos.MarketValue.Float64()
		}
		result = append(result, p)
	}
	slog.Info("positions fetched", "count", len(result))
	return result, nil
}
