package domain

import "time"

// EventKind names a dashboard state transition observers can react to.
type EventKind string

const (
	EventSummaryUpdated     EventKind = "summary_updated"
	EventInstrumentsUpdated EventKind = "instruments_updated"
	EventStakesUpdated      EventKind = "stakes_updated"
	EventHistoryUpdated     EventKind = "history_updated"
	EventFetchFailed        EventKind = "fetch_failed"
	EventTabChanged         EventKind = "tab_changed"
	EventOrderPlaced        EventKind = "order_placed"
	EventOrderFailed        EventKind = "order_failed"
	EventStakeCreated       EventKind = "stake_created"
	EventStakeFailed        EventKind = "stake_failed"
	EventSessionExpired     EventKind = "session_expired"
	EventDashboardReset     EventKind = "dashboard_reset"
)

// Event is a single dashboard notification. Resource names the state slice
// involved (summary, instruments, stakes, history, order, stake).
type Event struct {
	Kind     EventKind      `json:"kind"`
	Resource string         `json:"resource,omitempty"`
	Message  string         `json:"message,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}
