package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// ParseOrderSide accepts "buy" or "sell".
func ParseOrderSide(s string) (OrderSide, error) {
	switch OrderSide(s) {
	case OrderSideBuy, OrderSideSell:
		return OrderSide(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// TradeStatus tracks the trade lifecycle as reported by the backend.
type TradeStatus string

const (
	TradeStatusOpen      TradeStatus = "open"
	TradeStatusClosed    TradeStatus = "closed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

// Trade is an executed order. Created only by a successful order submission
// and never edited client-side.
type Trade struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id,omitempty"`
	Symbol     string           `json:"symbol"`
	Side       OrderSide        `json:"side"`
	Amount     decimal.Decimal  `json:"amount"`
	Price      decimal.Decimal  `json:"price"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	Status     TradeStatus      `json:"status"`
	PnL        decimal.Decimal  `json:"pnl"`
	CreatedAt  Timestamp        `json:"created_at"`
	ClosedAt   Timestamp        `json:"closed_at"`
}

// Profitable reports whether the realised P&L is non-negative.
func (t Trade) Profitable() bool {
	return !t.PnL.IsNegative()
}

// OrderRequest is the payload of an order placement.
type OrderRequest struct {
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
}

// StakeRequest is the payload of a stake creation.
type StakeRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	DurationDays int             `json:"duration_days"`
}
