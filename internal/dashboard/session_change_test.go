package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
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

// accountsBackend serves per-account data keyed by bearer token.
type accountsBackend struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (b *accountsBackend) revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

func (b *accountsBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.URL.Path == "/api/auth/login" {
		var req struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		name := strings.Split(req.Email, "@")[0]
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + name, "token_type": "bearer",
			"user": map[string]any{"id": name, "email": req.Email, "tft_balance": 1000},
		})
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || b.revoked[token] {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid authentication credentials"})
		return
	}
	name := strings.TrimPrefix(token, "tok-")

	var out any
	switch r.URL.Path {
	case "/api/user/dashboard":
		trades := []any{}
		if name == "alice" {
			trades = append(trades, map[string]any{
				"id": "alice-trade", "user_id": "alice", "symbol": "BTC/USDT", "side": "buy",
				"amount": 1, "price": 45000, "status": "executed", "created_at": "2025-05-30T10:00:00",
			})
		}
		out = map[string]any{
			"user":         map[string]any{"id": name, "tft_balance": 1000},
			"total_staked": 0, "total_rewards": 0, "active_stakes": len(trades), "recent_trades": trades,
		}
	case "/api/trading/instruments":
		out = map[string]any{"instruments": []any{
			map[string]any{"symbol": "BTC/USDT", "price": 45000.0, "change": 2.5},
			map[string]any{"symbol": "ETH/USDT", "price": 2800.0, "change": 1.8},
		}}
	case "/api/staking/stakes":
		stakes := []any{}
		if name == "alice" {
			stakes = append(stakes, map[string]any{
				"id": "alice-stake", "user_id": "alice", "amount": 200, "duration_days": 30,
				"start_date": "2025-06-01T12:00:00", "end_date": "2025-07-01T12:00:00", "is_active": true,
			})
		}
		out = map[string]any{"stakes": stakes}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func newAccountsDashboard(t *testing.T) (*Dashboard, *session.Manager, *accountsBackend) {
	t.Helper()
	backend := &accountsBackend{revoked: make(map[string]bool)}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := averix.NewClient(averix.ClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	sessions := session.NewManager(client, session.NewMemoryStore(), "default", logger)
	d := New(client, sessions, DefaultConfig(), logger).WithClock(fixedClock{t: testNow})
	sessions.OnChange(d.Reset)
	sessions.OnExpire(d.Reset)
	return d, sessions, backend
}

func TestLogoutThenLoginStartsFromCleanState(t *testing.T) {
	d, sessions, _ := newAccountsDashboard(t)
	ctx := context.Background()

	_, err := sessions.Login(ctx, "alice@averix.io", "pw")
	require.NoError(t, err)
	<-d.Activate(ctx)
	require.Len(t, d.Snapshot().Stakes.Value, 1)

	d.SetStakeDraft(StakeDraft{Amount: "999", DurationDays: 90})
	d.UpdateOrderDraft(func(o *OrderDraft) { o.Symbol = "ETH/USDT"; o.Amount = "3" })
	require.NoError(t, d.SelectTab("staking"))

	require.NoError(t, sessions.Logout(ctx))
	_, err = sessions.Login(ctx, "bob@averix.io", "pw")
	require.NoError(t, err)

	snap := d.Snapshot()
	assert.Empty(t, snap.Stakes.Value)
	assert.False(t, snap.Summary.Loaded)
	assert.Empty(t, snap.Summary.Value.RecentTrades)
	assert.Equal(t, DefaultStakeDraft(), snap.StakeDraft)
	assert.Equal(t, DefaultOrderDraft(nil), snap.OrderDraft)
	assert.Equal(t, TabOverview, snap.Tab)
	assert.Equal(t, SubmitIdle, snap.StakeState)
	assert.True(t, snap.Loading)
	assert.Nil(t, snap.Notice)

	<-d.Activate(ctx)
	snap = d.Snapshot()
	assert.Empty(t, snap.Stakes.Value)
	assert.Empty(t, snap.Summary.Value.RecentTrades)
	assert.Equal(t, "bob", snap.Profile.ID)
}

func TestRejectedCredentialResetsDashboard(t *testing.T) {
	d, sessions, backend := newAccountsDashboard(t)
	ctx := context.Background()

	_, err := sessions.Login(ctx, "alice@averix.io", "pw")
	require.NoError(t, err)
	<-d.Activate(ctx)
	d.SetStakeDraft(StakeDraft{Amount: "50", DurationDays: 14})

	backend.revoke("tok-alice")
	require.ErrorIs(t, d.RefreshSummary(ctx), domain.ErrUnauthorized)

	assert.False(t, sessions.Current().Authenticated())
	snap := d.Snapshot()
	assert.Empty(t, snap.Stakes.Value)
	assert.Equal(t, DefaultStakeDraft(), snap.StakeDraft)
}

func TestResponseFromPreviousSessionIsDropped(t *testing.T) {
	api := newFakeAPI()
	api.stakes = []domain.Stake{{ID: "old", Amount: decimal.NewFromInt(200), DurationDays: 30, IsActive: true}}
	api.stakesGate = make(chan struct{})
	sess := newFakeSessions(1000)
	d := newTestDashboard(api, sess)

	errc := make(chan error, 1)
	go func() { errc <- d.RefreshStakes(context.Background()) }()
	require.Eventually(t, func() bool { return api.count("stakes") == 1 }, time.Second, 5*time.Millisecond)

	sess.mu.Lock()
	sess.sess = session.Session{Credential: "tok-next"}
	sess.mu.Unlock()
	close(api.stakesGate)

	err := <-errc
	assert.ErrorIs(t, err, domain.ErrSessionChanged)
	snap := d.Snapshot()
	assert.False(t, snap.Stakes.Loaded)
	assert.Empty(t, snap.Stakes.Value)
	assert.Empty(t, snap.Stakes.LastError)
}

func TestResetKeepsSubscriptions(t *testing.T) {
	d := newTestDashboard(newFakeAPI(), newFakeSessions(1000))
	var kinds []domain.EventKind
	d.Subscribe(func(ev domain.Event) { kinds = append(kinds, ev.Kind) })

	d.Reset()
	require.NoError(t, d.SelectTab("history"))
	assert.Equal(t, []domain.EventKind{domain.EventDashboardReset, domain.EventTabChanged}, kinds)
}
