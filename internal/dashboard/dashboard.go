// Package dashboard is the trader dashboard state orchestrator. It fetches the
// account summary, instrument list, stakes and trade history independently,
// keeps the tab view state, validates and submits order and stake drafts, and
// derives display metrics from the fetched entities.
package dashboard

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/platform/averix"
	"github.com/alanyoungcy/averix/internal/session"
	"github.com/shopspring/decimal"
)

// API is the subset of the backend client the dashboard needs.
type API interface {
	GetDashboard(ctx context.Context, cred averix.Credential) (domain.DashboardSummary, error)
	GetInstruments(ctx context.Context, cred averix.Credential) ([]domain.Instrument, error)
	GetStakes(ctx context.Context, cred averix.Credential) ([]domain.Stake, error)
	GetTradeHistory(ctx context.Context, cred averix.Credential) ([]domain.Trade, error)
	PlaceOrder(ctx context.Context, cred averix.Credential, order domain.OrderRequest) (domain.Trade, error)
	CreateStake(ctx context.Context, cred averix.Credential, stake domain.StakeRequest) (domain.Stake, error)
}

// Sessions supplies the current session and receives profile updates for
// the credential that fetched them.
type Sessions interface {
	Current() session.Session
	SetProfile(cred averix.Credential, p domain.UserProfile)
	Expire(ctx context.Context)
}

// Recorder observes fetch and submission latency. internal/metrics provides
// the Prometheus implementation.
type Recorder interface {
	ObserveFetch(resource string, elapsed time.Duration, err error)
	ObserveSubmit(kind string, elapsed time.Duration, err error)
}

// Clock supplies the current time to derived metrics.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Config tunes the client-side risk mirror and submission guard.
type Config struct {
	MirrorRiskRules bool
	MaxPositionPct  decimal.Decimal // percent of balance
	MaxRiskReward   decimal.Decimal // risk per unit of reward
	LockTTL         time.Duration
}

// DefaultConfig mirrors the limits the backend enforces.
func DefaultConfig() Config {
	return Config{
		MirrorRiskRules: true,
		MaxPositionPct:  decimal.NewFromInt(5),
		MaxRiskReward:   decimal.NewFromInt(5),
		LockTTL:         30 * time.Second,
	}
}

// Resource names used in events, logs and metrics.
const (
	ResourceSummary     = "summary"
	ResourceInstruments = "instruments"
	ResourceStakes      = "stakes"
	ResourceHistory     = "history"
	ResourceOrder       = "order"
	ResourceStake       = "stake"
)

// Slice is one independently fetched piece of state. Value keeps the last
// successful result; a failure only records LastError and FailedAt.
type Slice[T any] struct {
	Value     T         `json:"value"`
	Loaded    bool      `json:"loaded"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	FailedAt  time.Time `json:"failed_at,omitempty"`
}

func (s *Slice[T]) set(v T, now time.Time) {
	s.Value = v
	s.Loaded = true
	s.UpdatedAt = now
	s.LastError = ""
	s.FailedAt = time.Time{}
}

func (s *Slice[T]) fail(err error, now time.Time) {
	s.LastError = err.Error()
	s.FailedAt = now
}

// NoticeLevel classifies a user-facing message.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is the latest user-facing message from a submission.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Snapshot is a consistent copy of the dashboard state for rendering.
type Snapshot struct {
	Tab         Tab                            `json:"tab"`
	Profile     *domain.UserProfile            `json:"profile,omitempty"`
	Summary     Slice[domain.DashboardSummary] `json:"summary"`
	Instruments Slice[[]domain.Instrument]     `json:"instruments"`
	Stakes      Slice[[]domain.Stake]          `json:"stakes"`
	History     Slice[[]domain.Trade]          `json:"history"`
	OrderDraft  OrderDraft                     `json:"order_draft"`
	OrderState  SubmitState                    `json:"order_state"`
	StakeDraft  StakeDraft                     `json:"stake_draft"`
	StakeState  SubmitState                    `json:"stake_state"`
	Notice      *Notice                        `json:"notice,omitempty"`
	Loading     bool                           `json:"loading"`
	Now         time.Time                      `json:"now"`
}

// Dashboard owns the state tree. Each slice has a single writer (its fetcher
// or submitter); mu serialises writers against readers.
type Dashboard struct {
	api      API
	sessions Sessions
	cfg      Config
	clock    Clock
	logger   *slog.Logger

	locks    domain.LockManager
	audit    domain.AuditStore
	journal  domain.TradeJournal
	recorder Recorder

	mu          sync.RWMutex
	tab         Tab
	summary     Slice[domain.DashboardSummary]
	instruments Slice[[]domain.Instrument]
	stakes      Slice[[]domain.Stake]
	history     Slice[[]domain.Trade]
	orderDraft  OrderDraft
	orderState  SubmitState
	stakeDraft  StakeDraft
	stakeState  SubmitState
	notice      *Notice
	loading     bool

	lmu       sync.RWMutex
	listeners map[int]func(domain.Event)
	nextID    int
}

// New creates a Dashboard in its initial state: Overview tab, default
// drafts, nothing loaded.
func New(api API, sessions Sessions, cfg Config, logger *slog.Logger) *Dashboard {
	d := &Dashboard{
		api:        api,
		sessions:   sessions,
		cfg:        cfg,
		clock:      SystemClock{},
		logger:     logger.With(slog.String("component", "dashboard")),
		tab:        TabOverview,
		stakeDraft: DefaultStakeDraft(),
		loading:    true,
		listeners:  make(map[int]func(domain.Event)),
	}
	d.orderDraft = DefaultOrderDraft(nil)
	return d
}

// Reset returns the state tree to what New produced: Overview tab, default
// drafts, Idle submissions, nothing loaded and no notice. Subscriptions
// survive. It runs whenever the session changes hands.
func (d *Dashboard) Reset() {
	d.mu.Lock()
	d.tab = TabOverview
	d.summary = Slice[domain.DashboardSummary]{}
	d.instruments = Slice[[]domain.Instrument]{}
	d.stakes = Slice[[]domain.Stake]{}
	d.history = Slice[[]domain.Trade]{}
	d.orderDraft = DefaultOrderDraft(nil)
	d.orderState = SubmitIdle
	d.stakeDraft = DefaultStakeDraft()
	d.stakeState = SubmitIdle
	d.notice = nil
	d.loading = true
	d.mu.Unlock()

	d.emit(domain.EventDashboardReset, "", "", nil)
}

// superseded reports whether the session that issued a request is no longer
// current. Its result must not land in the state tree.
func (d *Dashboard) superseded(sess session.Session) bool {
	return d.sessions.Current().Credential != sess.Credential
}

// WithClock replaces the wall clock used for derived metrics and timestamps.
func (d *Dashboard) WithClock(c Clock) *Dashboard {
	d.clock = c
	return d
}

// WithLockManager guards submissions with a distributed lock per user.
func (d *Dashboard) WithLockManager(l domain.LockManager) *Dashboard {
	d.locks = l
	return d
}

// WithAudit records submissions and session events.
func (d *Dashboard) WithAudit(a domain.AuditStore) *Dashboard {
	d.audit = a
	return d
}

// WithJournal keeps a local copy of every trade the backend reports.
func (d *Dashboard) WithJournal(j domain.TradeJournal) *Dashboard {
	d.journal = j
	return d
}

// WithRecorder attaches a latency recorder.
func (d *Dashboard) WithRecorder(r Recorder) *Dashboard {
	d.recorder = r
	return d
}

// Subscribe registers fn for every dashboard event. The returned function
// removes the subscription. fn runs synchronously on the emitting goroutine
// and must not block.
func (d *Dashboard) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	d.lmu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.lmu.Unlock()

	return func() {
		d.lmu.Lock()
		delete(d.listeners, id)
		d.lmu.Unlock()
	}
}

func (d *Dashboard) emit(kind domain.EventKind, resource, message string, detail map[string]any) {
	ev := domain.Event{
		Kind:     kind,
		Resource: resource,
		Message:  message,
		Detail:   detail,
		At:       d.clock.Now(),
	}

	d.lmu.RLock()
	fns := make([]func(domain.Event), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.lmu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() Snapshot {
	profile := d.sessions.Current().Profile

	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := Snapshot{
		Tab:         d.tab,
		Summary:     d.summary,
		Instruments: d.instruments,
		Stakes:      d.stakes,
		History:     d.history,
		OrderDraft:  d.orderDraft,
		OrderState:  d.orderState,
		StakeDraft:  d.stakeDraft,
		StakeState:  d.stakeState,
		Loading:     d.loading,
		Now:         d.clock.Now(),
	}
	if profile != nil {
		p := *profile
		snap.Profile = &p
	}
	snap.Summary.Value.RecentTrades = slices.Clone(d.summary.Value.RecentTrades)
	snap.Instruments.Value = slices.Clone(d.instruments.Value)
	snap.Stakes.Value = slices.Clone(d.stakes.Value)
	snap.History.Value = slices.Clone(d.history.Value)
	if d.notice != nil {
		n := *d.notice
		snap.Notice = &n
	}
	return snap
}

// Loading reports whether the instrument list has yet to settle for the
// first time.
func (d *Dashboard) Loading() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loading
}

// Notice returns the latest submission message, if any.
func (d *Dashboard) Notice() *Notice {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.notice == nil {
		return nil
	}
	n := *d.notice
	return &n
}

// ClearNotice dismisses the current message.
func (d *Dashboard) ClearNotice() {
	d.mu.Lock()
	d.notice = nil
	d.mu.Unlock()
}

// Profile returns the resolved profile of the current session.
func (d *Dashboard) Profile() *domain.UserProfile {
	return d.sessions.Current().Profile
}

// balance returns the profile balance, or zero when no profile is resolved.
func (d *Dashboard) balance() (decimal.Decimal, bool) {
	p := d.sessions.Current().Profile
	if p == nil {
		return decimal.Zero, false
	}
	return p.TFTBalance, true
}

// setNotice must be called with mu held.
func (d *Dashboard) setNotice(level NoticeLevel, msg string) {
	d.notice = &Notice{Level: level, Message: msg, At: d.clock.Now()}
}

func (d *Dashboard) auditLog(ctx context.Context, event string, detail map[string]any) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Log(ctx, event, detail); err != nil {
		d.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dashboard) journalTrades(ctx context.Context, trades []domain.Trade) {
	if d.journal == nil || len(trades) == 0 {
		return
	}
	userID := ""
	if p := d.sessions.Current().Profile; p != nil {
		userID = p.ID
	}
	if err := d.journal.Record(ctx, userID, trades); err != nil {
		d.logger.WarnContext(ctx, "journal record failed",
			slog.Int("trades", len(trades)),
			slog.String("error", err.Error()),
		)
	}
}
