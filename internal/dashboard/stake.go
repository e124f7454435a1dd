package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Stake notices. MsgStakeFailed is shown when the backend gives no detail.
const (
	msgStakeCreated = "Staking successful!"
	MsgStakeFailed  = "Failed to stake"
)

// StakeDraft is the in-progress stake form.
type StakeDraft struct {
	Amount       string `json:"amount"`
	DurationDays int    `json:"duration_days"`
}

// DefaultStakeDraft is the reset state: empty amount, 30 days.
func DefaultStakeDraft() StakeDraft {
	return StakeDraft{DurationDays: domain.DefaultStakeDuration.Days()}
}

// Validate checks the draft and converts it into a request. The balance
// bound is advisory and reported by StakeAdvisories instead.
func (s StakeDraft) Validate() (domain.StakeRequest, error) {
	verr := &ValidationError{}

	amount := positiveField(verr, "amount", s.Amount)
	duration, err := domain.ParseStakeDuration(s.DurationDays)
	if err != nil {
		verr.add("duration_days", "must be one of 14, 30, 90, 180 or 360")
	}
	if err := verr.orNil(); err != nil {
		return domain.StakeRequest{}, err
	}
	return domain.StakeRequest{Amount: amount, DurationDays: duration.Days()}, nil
}

// StakeDraft returns the current stake form.
func (d *Dashboard) StakeDraft() StakeDraft {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stakeDraft
}

// SetStakeDraft replaces the stake form.
func (d *Dashboard) SetStakeDraft(s StakeDraft) {
	d.mu.Lock()
	d.stakeDraft = s
	d.mu.Unlock()
}

// UpdateStakeDraft edits the stake form in place.
func (d *Dashboard) UpdateStakeDraft(fn func(*StakeDraft)) {
	d.mu.Lock()
	fn(&d.stakeDraft)
	d.mu.Unlock()
}

// StakeState returns the stake submission state.
func (d *Dashboard) StakeState() SubmitState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stakeState
}

// StakeAdvisories warns when the draft amount exceeds the current balance.
// The backend is the authority on insufficient balance.
func (d *Dashboard) StakeAdvisories() []Advisory {
	draft := d.StakeDraft()
	balance, ok := d.balance()
	if !ok {
		return nil
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(draft.Amount))
	if err != nil || !amount.GreaterThan(balance) {
		return nil
	}
	return []Advisory{{
		Rule:    "balance",
		Message: fmt.Sprintf("Amount exceeds available balance of %s TFT", balance.StringFixed(2)),
	}}
}

// SubmitStake validates the draft and creates the stake. On success the
// draft resets and both the summary and the stake list are refetched; on
// failure the draft is kept and the backend's detail (or a generic message)
// becomes the notice.
func (d *Dashboard) SubmitStake(ctx context.Context) (domain.Stake, error) {
	sess := d.sessions.Current()
	if !sess.Authenticated() {
		return domain.Stake{}, fmt.Errorf("dashboard: submit stake: %w", domain.ErrNotAuthenticated)
	}

	d.mu.Lock()
	if d.stakeState == SubmitSubmitting {
		d.mu.Unlock()
		return domain.Stake{}, fmt.Errorf("dashboard: submit stake: %w", domain.ErrSubmitInFlight)
	}
	req, err := d.stakeDraft.Validate()
	if err != nil {
		d.mu.Unlock()
		return domain.Stake{}, err
	}
	d.stakeState = SubmitSubmitting
	d.mu.Unlock()

	unlock, err := d.acquireSubmitLock(ctx, ResourceStake)
	if err != nil {
		d.mu.Lock()
		d.stakeState = SubmitIdle
		d.mu.Unlock()
		return domain.Stake{}, err
	}
	defer unlock()

	start := time.Now()
	stake, err := d.api.CreateStake(ctx, sess.Credential, req)
	d.observeSubmit(ResourceStake, start, err)

	if err != nil {
		msg := failureMessage(err, MsgStakeFailed)
		d.mu.Lock()
		if !d.superseded(sess) {
			d.stakeState = SubmitFailed
			d.setNotice(NoticeError, msg)
		}
		d.mu.Unlock()

		d.logger.WarnContext(ctx, "stake rejected",
			slog.String("amount", req.Amount.String()),
			slog.Int("duration_days", req.DurationDays),
			slog.String("error", err.Error()),
		)
		d.auditLog(ctx, string(domain.EventStakeFailed), map[string]any{
			"amount":        req.Amount.String(),
			"duration_days": req.DurationDays,
			"reason":        msg,
		})
		d.emit(domain.EventStakeFailed, ResourceStake, msg, nil)
		return domain.Stake{}, fmt.Errorf("dashboard: submit stake: %w", err)
	}

	d.mu.Lock()
	stale := d.superseded(sess)
	if !stale {
		d.stakeState = SubmitSucceeded
		d.stakeDraft = DefaultStakeDraft()
		d.setNotice(NoticeSuccess, msgStakeCreated)
	}
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "stake created",
		slog.String("stake_id", stake.ID),
		slog.String("amount", stake.Amount.String()),
		slog.Int("duration_days", stake.DurationDays),
	)
	d.auditLog(ctx, string(domain.EventStakeCreated), map[string]any{
		"stake_id":      stake.ID,
		"amount":        stake.Amount.String(),
		"duration_days": stake.DurationDays,
	})
	d.emit(domain.EventStakeCreated, ResourceStake, msgStakeCreated, map[string]any{
		"stake_id": stake.ID,
	})

	if stale {
		return stake, nil
	}
	var g errgroup.Group
	g.Go(func() error { _ = d.RefreshSummary(ctx); return nil })
	g.Go(func() error { _ = d.RefreshStakes(ctx); return nil })
	_ = g.Wait()

	return stake, nil
}
