package dashboard

import (
	"testing"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		total, successful, want int
	}{
		{0, 0, 0},
		{10, 7, 70},
		{3, 1, 33},
		{3, 2, 67},
		{8, 1, 13}, // 12.5 rounds up
		{5, 5, 100},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SuccessRate(tc.total, tc.successful), "%d/%d", tc.successful, tc.total)
	}
}

func stakeStarting(start time.Time, days int) domain.Stake {
	return domain.Stake{
		DurationDays: days,
		StartDate:    domain.NewTimestamp(start),
		EndDate:      domain.NewTimestamp(start.AddDate(0, 0, days)),
		IsActive:     true,
	}
}

func TestDaysRemaining(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := stakeStarting(start, 30)

	assert.Equal(t, 30, DaysRemaining(s, start))
	assert.Equal(t, 30, DaysRemaining(s, start.Add(time.Hour)))
	assert.Equal(t, 29, DaysRemaining(s, start.Add(24*time.Hour)))
	assert.Equal(t, 1, DaysRemaining(s, s.Ends().Add(-time.Second)))
	assert.Equal(t, 0, DaysRemaining(s, s.Ends()))
	assert.Equal(t, 0, DaysRemaining(s, s.Ends().Add(90*24*time.Hour)))
}

func TestProgress(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := stakeStarting(start, 30)

	assert.Equal(t, 0.0, Progress(s, start))
	assert.Equal(t, 100.0, Progress(s, s.Ends()))
	assert.Equal(t, 100.0, Progress(s, s.Ends().Add(time.Hour)))
	assert.Equal(t, 0.0, Progress(domain.Stake{}, start))

	prev := -1.0
	for now := start.Add(-48 * time.Hour); now.Before(s.Ends().Add(48 * time.Hour)); now = now.Add(7 * time.Hour) {
		p := Progress(s, now)
		assert.GreaterOrEqual(t, p, prev)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 100.0)
		prev = p
	}
}

func TestStakeViewsSkipInactive(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	active := stakeStarting(start, 14)
	matured := stakeStarting(start.AddDate(-1, 0, 0), 14)
	matured.IsActive = false

	views := StakeViews([]domain.Stake{active, matured}, start.AddDate(0, 0, 7))
	assert.Len(t, views, 1)
	assert.Equal(t, 7, views[0].DaysRemaining)
	assert.Equal(t, 50.0, views[0].Progress)
}
