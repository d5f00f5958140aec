package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"dipbot/internal/market"
)

// Mode selects how an order value is denominated.
type Mode string

const (
	BuyByAmount    Mode = "buy_by_amount"
	SellByAmount   Mode = "sell_by_amount"
	SellByQuantity Mode = "sell_by_quantity"
)

// Reason is a distinguishable rejection code. The retry loop branches on
// these; free-text broker messages are carried separately.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInsufficientHoldings Reason = "insufficient_holdings"
	ReasonPurchaseLimit        Reason = "purchase_limit_exceeded"
)

type Status string

const (
	StatusFilled   Status = "filled"
	StatusRejected Status = "rejected"
)

type OrderRequest struct {
	Symbol string
	Class  market.AssetClass
	// Value is dollars for the by-amount modes, shares for by-quantity.
	Value decimal.Decimal
	Mode  Mode
}

// OrderResult is the structured outcome of a submission. A size-based
// decline comes back as StatusRejected with a Reason and a nil error;
// transport and API failures are returned as errors by the client.
type OrderResult struct {
	Status        Status
	Reason        Reason
	Message       string
	OrderID       string
	ClientOrderID string
	BrokerStatus  string
}

// OrderClient is the order-submission collaborator.
type OrderClient interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
