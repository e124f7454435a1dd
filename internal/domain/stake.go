package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StakeDuration is a lock period in days. Only the values in
// StakeDurations are accepted by the backend.
type StakeDuration int

const (
	StakeDuration14  StakeDuration = 14
	StakeDuration30  StakeDuration = 30
	StakeDuration90  StakeDuration = 90
	StakeDuration180 StakeDuration = 180
	StakeDuration360 StakeDuration = 360

	DefaultStakeDuration = StakeDuration30
)

// StakeDurations lists the accepted lock periods, shortest first.
var StakeDurations = []StakeDuration{
	StakeDuration14,
	StakeDuration30,
	StakeDuration90,
	StakeDuration180,
	StakeDuration360,
}

// feeRates is the trading fee (percent) unlocked by each lock period.
var feeRates = map[StakeDuration]decimal.Decimal{
	StakeDuration14:  decimal.RequireFromString("0.1"),
	StakeDuration30:  decimal.RequireFromString("0.08"),
	StakeDuration90:  decimal.RequireFromString("0.05"),
	StakeDuration180: decimal.RequireFromString("0.02"),
	StakeDuration360: decimal.Zero,
}

// ParseStakeDuration validates days against the accepted lock periods.
func ParseStakeDuration(days int) (StakeDuration, error) {
	d := StakeDuration(days)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d days", ErrInvalidDuration, days)
	}
	return d, nil
}

// Valid reports whether d is an accepted lock period.
func (d StakeDuration) Valid() bool {
	_, ok := feeRates[d]
	return ok
}

// FeeRate returns the trading fee percentage for the lock period.
func (d StakeDuration) FeeRate() decimal.Decimal {
	return feeRates[d]
}

// Days returns the duration as an int.
func (d StakeDuration) Days() int {
	return int(d)
}

// Label renders the lock period the way the staking form lists it.
func (d StakeDuration) Label() string {
	return fmt.Sprintf("%d days (%s%% trading fee)", int(d), d.FeeRate().String())
}

// Stake is a time-locked deposit. It is immutable client-side; the backend
// flips IsActive at maturity.
type Stake struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	DurationDays  int             `json:"duration_days"`
	StartDate     Timestamp       `json:"start_date"`
	EndDate       Timestamp       `json:"end_date"`
	IsActive      bool            `json:"is_active"`
	RewardsEarned decimal.Decimal `json:"rewards_earned"`
}

// Ends returns the maturity instant. When the backend omitted end_date it is
// derived from start + duration.
func (s Stake) Ends() time.Time {
	if !s.EndDate.IsZero() {
		return s.EndDate.Time
	}
	return s.StartDate.Add(time.Duration(s.DurationDays) * 24 * time.Hour)
}
