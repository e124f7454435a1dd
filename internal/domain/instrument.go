package domain

import "github.com/shopspring/decimal"

// DefaultSymbol is the order symbol used before any instrument list loads.
const DefaultSymbol = "BTC/USDT"

// Instrument is a tradable market snapshot. Identity across fetches is the
// symbol alone.
type Instrument struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Change decimal.Decimal `json:"change"` // percent over the reference period
}

// Rising reports whether the reference-period change is non-negative.
func (i Instrument) Rising() bool {
	return !i.Change.IsNegative()
}
