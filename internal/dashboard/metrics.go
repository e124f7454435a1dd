package dashboard

import (
	"math"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
)

const day = 24 * time.Hour

// SuccessRate is the percentage of successful trades, rounded half up. It is
// 0 when no trades have been made.
func SuccessRate(total, successful int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(successful) / float64(total) * 100))
}

// DaysRemaining is the number of started days until the stake matures. It
// reaches 0 exactly at maturity and never goes negative.
func DaysRemaining(s domain.Stake, now time.Time) int {
	left := s.Ends().Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}

// Progress is the elapsed share of the lock period in percent, clamped to
// [0, 100]. A stake without a duration reports 0.
func Progress(s domain.Stake, now time.Time) float64 {
	if s.DurationDays <= 0 {
		return 0
	}
	elapsed := float64(s.DurationDays-DaysRemaining(s, now)) / float64(s.DurationDays) * 100
	return math.Max(0, math.Min(100, elapsed))
}

// ActiveStakes filters the stakes that have not matured yet.
func ActiveStakes(stakes []domain.Stake) []domain.Stake {
	out := make([]domain.Stake, 0, len(stakes))
	for _, s := range stakes {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

// StakeView pairs a stake with its derived display metrics.
type StakeView struct {
	domain.Stake
	DaysRemaining int     `json:"days_remaining"`
	Progress      float64 `json:"progress"`
}

// StakeViews derives metrics for the active stakes at now.
func StakeViews(stakes []domain.Stake, now time.Time) []StakeView {
	active := ActiveStakes(stakes)
	out := make([]StakeView, 0, len(active))
	for _, s := range active {
		out = append(out, StakeView{
			Stake:         s,
			DaysRemaining: DaysRemaining(s, now),
			Progress:      Progress(s, now),
		})
	}
	return out
}
