package dashboard

// View is the render projection of a Snapshot: the snapshot plus every
// derived display figure.
type View struct {
	Snapshot
	SuccessRate      int         `json:"success_rate"`
	ActiveStakeViews []StakeView `json:"active_stake_views"`
	OrderAdvisories  []Advisory  `json:"order_advisories,omitempty"`
	StakeAdvisories  []Advisory  `json:"stake_advisories,omitempty"`
}

// View computes the render projection from the current state.
func (d *Dashboard) View() View {
	snap := d.Snapshot()
	v := View{
		Snapshot:         snap,
		ActiveStakeViews: StakeViews(snap.Stakes.Value, snap.Now),
		OrderAdvisories:  d.OrderRiskAdvisories(),
		StakeAdvisories:  d.StakeAdvisories(),
	}
	if snap.Profile != nil {
		v.SuccessRate = SuccessRate(snap.Profile.TotalTrades, snap.Profile.SuccessfulTrades)
	}
	return v
}
