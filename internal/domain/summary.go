package domain

import "github.com/shopspring/decimal"

// DashboardSummary is the aggregate served by the dashboard endpoint.
type DashboardSummary struct {
	User         *UserProfile    `json:"user,omitempty"`
	TotalStaked  decimal.Decimal `json:"total_staked"`
	TotalRewards decimal.Decimal `json:"total_rewards"`
	ActiveStakes int             `json:"active_stakes"`
	RecentTrades []Trade         `json:"recent_trades"`
}

// PublicStats are the platform-wide figures shown on the landing page.
type PublicStats struct {
	TotalTraders int    `json:"total_traders"`
	TotalVolume  string `json:"total_volume"`
	ActiveStakes int    `json:"active_stakes"`
	TFTPrice     string `json:"tft_price"`
}
