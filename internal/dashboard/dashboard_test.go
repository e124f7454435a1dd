package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/platform/averix"
	"github.com/alanyoungcy/averix/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeSessions struct {
	mu      sync.Mutex
	sess    session.Session
	expired int
}

func newFakeSessions(balance int64) *fakeSessions {
	return &fakeSessions{sess: session.Session{
		Credential: "tok",
		Profile:    &domain.UserProfile{ID: "u1", TFTBalance: decimal.NewFromInt(balance)},
	}}
}

func (f *fakeSessions) Current() session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeSessions) SetProfile(cred averix.Credential, p domain.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess.Credential != cred {
		return
	}
	f.sess.Profile = &p
}

func (f *fakeSessions) Expire(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = session.Session{}
	f.expired++
}

type fakeAPI struct {
	mu sync.Mutex

	summary        domain.DashboardSummary
	summaryErr     error
	instruments    []domain.Instrument
	instrumentsErr error
	stakes         []domain.Stake
	stakesErr      error
	history        []domain.Trade
	orderErr       error
	stakeErr       error
	orderGate      chan struct{}
	stakesGate     chan struct{}

	calls map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		instruments: []domain.Instrument{
			{Symbol: "BTC/USDT", Price: decimal.NewFromInt(45000), Change: decimal.RequireFromString("2.5")},
			{Symbol: "ETH/USDT", Price: decimal.NewFromInt(2800), Change: decimal.RequireFromString("1.8")},
		},
		calls: make(map[string]int),
	}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) GetDashboard(context.Context, averix.Credential) (domain.DashboardSummary, error) {
	f.hit("dashboard")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary, f.summaryErr
}

func (f *fakeAPI) GetInstruments(context.Context, averix.Credential) ([]domain.Instrument, error) {
	f.hit("instruments")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.instrumentsErr != nil {
		return nil, f.instrumentsErr
	}
	return f.instruments, nil
}

func (f *fakeAPI) GetStakes(context.Context, averix.Credential) ([]domain.Stake, error) {
	f.hit("stakes")
	if f.stakesGate != nil {
		<-f.stakesGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stakesErr != nil {
		return nil, f.stakesErr
	}
	return f.stakes, nil
}

func (f *fakeAPI) GetTradeHistory(context.Context, averix.Credential) ([]domain.Trade, error) {
	f.hit("history")
	return f.history, nil
}

func (f *fakeAPI) PlaceOrder(_ context.Context, _ averix.Credential, o domain.OrderRequest) (domain.Trade, error) {
	f.hit("order")
	if f.orderGate != nil {
		<-f.orderGate
	}
	if f.orderErr != nil {
		return domain.Trade{}, f.orderErr
	}
	return domain.Trade{ID: "t1", Symbol: o.Symbol, Side: o.Side, Amount: o.Amount, Price: o.Price}, nil
}

func (f *fakeAPI) CreateStake(_ context.Context, _ averix.Credential, s domain.StakeRequest) (domain.Stake, error) {
	f.hit("stake")
	if f.stakeErr != nil {
		return domain.Stake{}, f.stakeErr
	}
	return domain.Stake{ID: "s1", Amount: s.Amount, DurationDays: s.DurationDays, IsActive: true}, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDashboard(api *fakeAPI, sess *fakeSessions) *Dashboard {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(api, sess, DefaultConfig(), logger).WithClock(fixedClock{t: testNow})
}

func validOrder() OrderDraft {
	return OrderDraft{
		Symbol:     "ETH/USDT",
		Side:       "sell",
		Amount:     "10",
		Price:      "2800",
		StopLoss:   "2900",
		TakeProfit: "2600",
	}
}

func TestNewDashboardInitialState(t *testing.T) {
	d := newTestDashboard(newFakeAPI(), newFakeSessions(1000))

	snap := d.Snapshot()
	assert.Equal(t, TabOverview, snap.Tab)
	assert.True(t, snap.Loading)
	assert.Equal(t, OrderDraft{Symbol: "BTC/USDT", Side: "buy"}, snap.OrderDraft)
	assert.Equal(t, StakeDraft{DurationDays: 30}, snap.StakeDraft)
	assert.Equal(t, SubmitIdle, snap.OrderState)
	assert.Nil(t, snap.Notice)
}

func TestActivateLoadsAllSlices(t *testing.T) {
	api := newFakeAPI()
	api.summary = domain.DashboardSummary{
		User:         &domain.UserProfile{ID: "u1", TFTBalance: decimal.NewFromInt(990), TotalTrades: 10, SuccessfulTrades: 7},
		TotalStaked:  decimal.NewFromInt(10),
		ActiveStakes: 1,
	}
	api.stakes = []domain.Stake{{ID: "s1", Amount: decimal.NewFromInt(10), DurationDays: 30, IsActive: true}}
	sess := newFakeSessions(1000)
	d := newTestDashboard(api, sess)

	var events []domain.EventKind
	var mu sync.Mutex
	d.Subscribe(func(ev domain.Event) {
		mu.Lock()
		events = append(events, ev.Kind)
		mu.Unlock()
	})

	<-d.Activate(context.Background())

	snap := d.Snapshot()
	assert.False(t, snap.Loading)
	assert.True(t, snap.Summary.Loaded)
	assert.Len(t, snap.Instruments.Value, 2)
	assert.Len(t, snap.Stakes.Value, 1)
	require.NotNil(t, snap.Profile)
	assert.True(t, snap.Profile.TFTBalance.Equal(decimal.NewFromInt(990)))
	assert.Equal(t, 70, SuccessRate(snap.Profile.TotalTrades, snap.Profile.SuccessfulTrades))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []domain.EventKind{
		domain.EventSummaryUpdated,
		domain.EventInstrumentsUpdated,
		domain.EventStakesUpdated,
	}, events)
}

func TestFetchFailuresAreIndependent(t *testing.T) {
	api := newFakeAPI()
	api.stakesErr = errors.New("connection reset")
	d := newTestDashboard(api, newFakeSessions(1000))

	<-d.Activate(context.Background())

	snap := d.Snapshot()
	assert.True(t, snap.Instruments.Loaded)
	assert.True(t, snap.Summary.Loaded)
	assert.False(t, snap.Stakes.Loaded)
	assert.Empty(t, snap.Stakes.Value)
	assert.Equal(t, "connection reset", snap.Stakes.LastError)
	assert.Equal(t, testNow, snap.Stakes.FailedAt)
}

func TestFailedInstrumentFetchKeepsPreviousList(t *testing.T) {
	api := newFakeAPI()
	d := newTestDashboard(api, newFakeSessions(1000))
	ctx := context.Background()

	require.NoError(t, d.RefreshInstruments(ctx))
	before := d.Snapshot().Instruments.Value

	api.mu.Lock()
	api.instrumentsErr = errors.New("503")
	api.mu.Unlock()

	err := d.RefreshInstruments(ctx)
	require.Error(t, err)

	snap := d.Snapshot()
	assert.Equal(t, before, snap.Instruments.Value)
	assert.True(t, snap.Instruments.Loaded)
	assert.NotEmpty(t, snap.Instruments.LastError)
	assert.False(t, snap.Loading)
}

func TestInstrumentFailureStillClearsLoading(t *testing.T) {
	api := newFakeAPI()
	api.instrumentsErr = errors.New("timeout")
	d := newTestDashboard(api, newFakeSessions(1000))

	_ = d.RefreshInstruments(context.Background())
	assert.False(t, d.Loading())
	assert.Empty(t, d.Snapshot().Instruments.Value)
}

func TestInstrumentsMoveUnlistedDraftSymbol(t *testing.T) {
	api := newFakeAPI()
	api.instruments = []domain.Instrument{{Symbol: "EUR/USD", Price: decimal.RequireFromString("1.12")}}
	d := newTestDashboard(api, newFakeSessions(1000))

	require.NoError(t, d.RefreshInstruments(context.Background()))
	assert.Equal(t, "EUR/USD", d.OrderDraft().Symbol)
}

func TestUnauthorizedSummaryExpiresSession(t *testing.T) {
	api := newFakeAPI()
	api.summaryErr = &averix.APIError{Status: 401, Detail: "Invalid authentication credentials"}
	sess := newFakeSessions(1000)
	d := newTestDashboard(api, sess)

	err := d.RefreshSummary(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 1, sess.expired)
	assert.False(t, sess.Current().Authenticated())
}

func TestFetchWithoutSessionSendsNothing(t *testing.T) {
	api := newFakeAPI()
	d := newTestDashboard(api, &fakeSessions{})

	err := d.RefreshStakes(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Zero(t, api.count("stakes"))
}

func TestSwitchingTabsKeepsDrafts(t *testing.T) {
	d := newTestDashboard(newFakeAPI(), newFakeSessions(1000))
	order := validOrder()
	stake := StakeDraft{Amount: "150", DurationDays: 90}
	d.SetOrderDraft(order)
	d.SetStakeDraft(stake)

	require.NoError(t, d.SelectTab("trading"))
	require.NoError(t, d.SelectTab("history"))
	require.NoError(t, d.SelectTab("overview"))

	assert.Equal(t, order, d.OrderDraft())
	assert.Equal(t, stake, d.StakeDraft())
	assert.Equal(t, TabOverview, d.Tab())

	err := d.SelectTab("settings")
	assert.ErrorIs(t, err, domain.ErrUnknownTab)
	assert.Equal(t, TabOverview, d.Tab())
}

func TestOrderMissingPriceSendsNoRequest(t *testing.T) {
	api := newFakeAPI()
	d := newTestDashboard(api, newFakeSessions(1000))
	draft := validOrder()
	draft.Price = ""
	d.SetOrderDraft(draft)

	_, err := d.SubmitOrder(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("price"))
	assert.False(t, verr.Has("amount"))
	assert.Zero(t, api.count("order"))
	assert.Equal(t, SubmitIdle, d.OrderState())
	assert.Equal(t, draft, d.OrderDraft())
}

func TestOrderDraftValidation(t *testing.T) {
	symbols := []string{"BTC/USDT", "ETH/USDT"}
	tests := []struct {
		name   string
		mutate func(*OrderDraft)
		field  string
	}{
		{"unlisted symbol", func(o *OrderDraft) { o.Symbol = "DOGE/USDT" }, "symbol"},
		{"empty symbol", func(o *OrderDraft) { o.Symbol = " " }, "symbol"},
		{"bad side", func(o *OrderDraft) { o.Side = "hold" }, "side"},
		{"zero amount", func(o *OrderDraft) { o.Amount = "0" }, "amount"},
		{"negative stop", func(o *OrderDraft) { o.StopLoss = "-1" }, "stop_loss"},
		{"not a number", func(o *OrderDraft) { o.TakeProfit = "abc" }, "take_profit"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			draft := validOrder()
			tc.mutate(&draft)
			_, err := draft.Validate(symbols)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tc.field), verr.Error())
		})
	}

	req, err := validOrder().Validate(symbols)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSideSell, req.Side)
	assert.True(t, req.Price.Equal(decimal.NewFromInt(2800)))

	_, err = OrderDraft{Symbol: "ANY", Side: "BUY", Amount: "1", Price: "1", StopLoss: "1", TakeProfit: "1"}.Validate(nil)
	assert.NoError(t, err)
}

func TestSuccessfulOrderResetsDraftAndRefreshesSummary(t *testing.T) {
	api := newFakeAPI()
	audit := &memAudit{}
	d := newTestDashboard(api, newFakeSessions(1000)).WithAudit(audit)
	ctx := context.Background()
	require.NoError(t, d.RefreshInstruments(ctx))
	d.SetOrderDraft(validOrder())

	trade, err := d.SubmitOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t1", trade.ID)

	assert.Equal(t, OrderDraft{Symbol: "BTC/USDT", Side: "buy"}, d.OrderDraft())
	assert.Equal(t, SubmitSucceeded, d.OrderState())
	require.NotNil(t, d.Notice())
	assert.Equal(t, "Trade placed successfully!", d.Notice().Message)
	assert.Equal(t, NoticeSuccess, d.Notice().Level)
	assert.Equal(t, 1, api.count("dashboard"))
	assert.Zero(t, api.count("stakes"))
	assert.Equal(t, []string{"order_placed"}, audit.events)
}

func TestRejectedOrderKeepsDraft(t *testing.T) {
	api := newFakeAPI()
	api.orderErr = &averix.APIError{Status: 400, Detail: "Order exceeds 5% of balance limit"}
	d := newTestDashboard(api, newFakeSessions(1000))
	d.SetOrderDraft(validOrder())

	_, err := d.SubmitOrder(context.Background())
	require.Error(t, err)

	assert.Equal(t, validOrder(), d.OrderDraft())
	assert.Equal(t, SubmitFailed, d.OrderState())
	assert.Equal(t, "Order exceeds 5% of balance limit", d.Notice().Message)
	assert.Equal(t, NoticeError, d.Notice().Level)
	assert.Zero(t, api.count("dashboard"))
}

func TestRejectedOrderWithoutDetailUsesFallback(t *testing.T) {
	api := newFakeAPI()
	api.orderErr = errors.New("dial tcp: connection refused")
	d := newTestDashboard(api, newFakeSessions(1000))
	d.SetOrderDraft(validOrder())

	_, err := d.SubmitOrder(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Failed to place trade", d.Notice().Message)
}

func TestOrderResubmitBlockedWhileSubmitting(t *testing.T) {
	api := newFakeAPI()
	api.orderGate = make(chan struct{})
	d := newTestDashboard(api, newFakeSessions(1000))
	d.SetOrderDraft(validOrder())

	done := make(chan error, 1)
	go func() {
		_, err := d.SubmitOrder(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return d.OrderState() == SubmitSubmitting }, time.Second, time.Millisecond)

	_, err := d.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubmitInFlight)

	close(api.orderGate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.count("order"))
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestOrderBlockedByDistributedLock(t *testing.T) {
	api := newFakeAPI()
	d := newTestDashboard(api, newFakeSessions(1000)).WithLockManager(heldLock{})
	d.SetOrderDraft(validOrder())

	_, err := d.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubmitInFlight)
	assert.Equal(t, SubmitIdle, d.OrderState())
	assert.Zero(t, api.count("order"))
}

func TestOrderRiskAdvisories(t *testing.T) {
	d := newTestDashboard(newFakeAPI(), newFakeSessions(1000))

	d.SetOrderDraft(OrderDraft{Symbol: "BTC/USDT", Side: "buy", Amount: "60", Price: "100", StopLoss: "40", TakeProfit: "110"})
	rules := map[string]bool{}
	for _, a := range d.OrderRiskAdvisories() {
		rules[a.Rule] = true
	}
	assert.True(t, rules["max_position"])
	assert.True(t, rules["risk_reward"])

	d.SetOrderDraft(OrderDraft{Symbol: "BTC/USDT", Side: "buy", Amount: "50", Price: "100", StopLoss: "95", TakeProfit: "110"})
	assert.Empty(t, d.OrderRiskAdvisories())

	cfg := DefaultConfig()
	cfg.MirrorRiskRules = false
	off := New(newFakeAPI(), newFakeSessions(1000), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	off.SetOrderDraft(OrderDraft{Amount: "999", Price: "1", StopLoss: "1", TakeProfit: "1"})
	assert.Nil(t, off.OrderRiskAdvisories())
}

func TestStakeDraftValidation(t *testing.T) {
	_, err := StakeDraft{Amount: "100", DurationDays: 45}.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("duration_days"))

	_, err = StakeDraft{Amount: "", DurationDays: 30}.Validate()
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("amount"))

	req, err := StakeDraft{Amount: "200", DurationDays: 360}.Validate()
	require.NoError(t, err)
	assert.Equal(t, 360, req.DurationDays)
}

func TestStakeAdvisoryAboveBalance(t *testing.T) {
	d := newTestDashboard(newFakeAPI(), newFakeSessions(1000))

	d.SetStakeDraft(StakeDraft{Amount: "1000", DurationDays: 30})
	assert.Empty(t, d.StakeAdvisories())

	d.SetStakeDraft(StakeDraft{Amount: "1000.01", DurationDays: 30})
	adv := d.StakeAdvisories()
	require.Len(t, adv, 1)
	assert.Equal(t, "balance", adv[0].Rule)
}

func TestSuccessfulStakeRefreshesSummaryAndStakes(t *testing.T) {
	api := newFakeAPI()
	d := newTestDashboard(api, newFakeSessions(1000))
	d.SetStakeDraft(StakeDraft{Amount: "200", DurationDays: 90})

	stake, err := d.SubmitStake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90, stake.DurationDays)

	assert.Equal(t, DefaultStakeDraft(), d.StakeDraft())
	assert.Equal(t, "Staking successful!", d.Notice().Message)
	assert.Equal(t, 1, api.count("dashboard"))
	assert.Equal(t, 1, api.count("stakes"))
}

func TestRejectedStakeKeepsDraft(t *testing.T) {
	api := newFakeAPI()
	api.stakeErr = &averix.APIError{Status: 400}
	d := newTestDashboard(api, newFakeSessions(1000))
	draft := StakeDraft{Amount: "5000", DurationDays: 30}
	d.SetStakeDraft(draft)

	_, err := d.SubmitStake(context.Background())
	require.Error(t, err)
	assert.Equal(t, draft, d.StakeDraft())
	assert.Equal(t, "Failed to stake", d.Notice().Message)
	assert.Equal(t, SubmitFailed, d.StakeState())
}

func TestSnapshotIsACopy(t *testing.T) {
	api := newFakeAPI()
	d := newTestDashboard(api, newFakeSessions(1000))
	require.NoError(t, d.RefreshInstruments(context.Background()))

	snap := d.Snapshot()
	snap.Instruments.Value[0].Symbol = "mutated"
	snap.Profile.ID = "mutated"

	again := d.Snapshot()
	assert.Equal(t, "BTC/USDT", again.Instruments.Value[0].Symbol)
	assert.Equal(t, "u1", again.Profile.ID)
}

func TestUnsubscribe(t *testing.T) {
	d := newTestDashboard(newFakeAPI(), newFakeSessions(1000))
	n := 0
	unsubscribe := d.Subscribe(func(domain.Event) { n++ })

	require.NoError(t, d.SelectTab("staking"))
	unsubscribe()
	require.NoError(t, d.SelectTab("trading"))
	assert.Equal(t, 1, n)
}

func TestViewDerivesDisplayFigures(t *testing.T) {
	api := newFakeAPI()
	api.stakes = []domain.Stake{
		{ID: "s1", Amount: decimal.NewFromInt(100), DurationDays: 30, IsActive: true, StartDate: domain.NewTimestamp(testNow)},
		{ID: "s2", Amount: decimal.NewFromInt(50), DurationDays: 14, IsActive: false, StartDate: domain.NewTimestamp(testNow)},
	}
	sess := newFakeSessions(100)
	sess.sess.Profile.TotalTrades = 8
	sess.sess.Profile.SuccessfulTrades = 1
	d := newTestDashboard(api, sess)
	<-d.Activate(context.Background())

	d.SetStakeDraft(StakeDraft{Amount: "500", DurationDays: 30})
	v := d.View()

	assert.Equal(t, 13, v.SuccessRate)
	require.Len(t, v.ActiveStakeViews, 1)
	assert.Equal(t, 30, v.ActiveStakeViews[0].DaysRemaining)
	require.Len(t, v.StakeAdvisories, 1)
	assert.Equal(t, "balance", v.StakeAdvisories[0].Rule)
}
