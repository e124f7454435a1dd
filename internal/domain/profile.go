package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TradingLevel is the backend-assigned performance tier of a trader.
type TradingLevel string

const (
	TradingLevelBronze TradingLevel = "Bronze"
	TradingLevelSilver TradingLevel = "Silver"
	TradingLevelGold   TradingLevel = "Gold"
	TradingLevelPrime  TradingLevel = "Prime"
)

var levelRank = map[TradingLevel]int{
	TradingLevelBronze: 1,
	TradingLevelSilver: 2,
	TradingLevelGold:   3,
	TradingLevelPrime:  4,
}

var levelColor = map[TradingLevel]string{
	TradingLevelBronze: "#CD7F32",
	TradingLevelSilver: "#C0C0C0",
	TradingLevelGold:   "#FFD700",
	TradingLevelPrime:  "#2EE6D6",
}

// Rank orders levels from Bronze (1) to Prime (4). Unknown levels rank 0.
func (l TradingLevel) Rank() int {
	return levelRank[l]
}

// Valid reports whether l is one of the known tiers.
func (l TradingLevel) Valid() bool {
	return levelRank[l] > 0
}

// Color returns the badge colour used for the level. Unknown levels share
// the Prime accent.
func (l TradingLevel) Color() string {
	if c, ok := levelColor[l]; ok {
		return c
	}
	return levelColor[TradingLevelPrime]
}

// Initial returns the first letter of the level, used for compact badges.
func (l TradingLevel) Initial() string {
	if l == "" {
		return ""
	}
	return string([]rune(string(l))[:1])
}

// UserProfile is the trader's account as reported by the backend. It is
// replaced wholesale on every successful fetch.
type UserProfile struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	TFTBalance       decimal.Decimal `json:"tft_balance"`
	StakedAmount     decimal.Decimal `json:"staked_amount"`
	TradingLevel     TradingLevel    `json:"trading_level"`
	TotalTrades      int             `json:"total_trades"`
	SuccessfulTrades int             `json:"successful_trades"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        Timestamp       `json:"created_at"`
}

// DisplayName joins first and last name, skipping empty parts.
func (u UserProfile) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
