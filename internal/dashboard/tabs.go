package dashboard

import (
	"fmt"

	"github.com/alanyoungcy/averix/internal/domain"
)

// Tab selects the rendered panel. It has no effect on fetched data or drafts.
type Tab string

const (
	TabOverview Tab = "overview"
	TabTrading  Tab = "trading"
	TabStaking  Tab = "staking"
	TabHistory  Tab = "history"
)

// Tabs lists the panels in display order.
var Tabs = []Tab{TabOverview, TabTrading, TabStaking, TabHistory}

// ParseTab accepts a tab name.
func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabOverview, TabTrading, TabStaking, TabHistory:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownTab, s)
	}
}

// Tab returns the selected panel.
func (d *Dashboard) Tab() Tab {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tab
}

// SelectTab switches the rendered panel. Drafts and fetched data are left
// untouched and nothing is refetched.
func (d *Dashboard) SelectTab(name string) error {
	tab, err := ParseTab(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.tab
	d.tab = tab
	d.mu.Unlock()

	if prev != tab {
		d.emit(domain.EventTabChanged, "", string(tab), map[string]any{"from": string(prev)})
	}
	return nil
}
