package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/averix/internal/dashboard"
	"github.com/alanyoungcy/averix/internal/landing"
	"github.com/alanyoungcy/averix/internal/platform/averix"
	"github.com/alanyoungcy/averix/internal/server/handler"
	"github.com/alanyoungcy/averix/internal/session"
)

// backend answers the handful of Averix endpoints the bridge touches. Orders
// above 50 TFT are rejected the way the real position rule rejects them.
func backend() http.Handler {
	user := map[string]any{
		"id": "u1", "email": "trader@averix.io", "first_name": "Test", "last_name": "Trader",
		"tft_balance": 1000.0, "staked_amount": 0, "trading_level": "Bronze",
		"total_trades": 4, "successful_trades": 3, "is_active": true, "created_at": "2025-01-01T00:00:00",
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var out any
		switch r.URL.Path {
		case "/api/auth/login":
			out = map[string]any{"access_token": "tok", "token_type": "bearer", "user": user}
		case "/api/public/stats":
			out = map[string]any{"total_traders": 12, "total_volume": "1.2M", "active_stakes": 3, "tft_price": "0.85"}
		case "/api/user/dashboard":
			out = map[string]any{"user": user, "total_staked": 0, "total_rewards": 0, "active_stakes": 0, "recent_trades": []any{}}
		case "/api/trading/instruments":
			out = map[string]any{"instruments": []any{map[string]any{"symbol": "BTC/USDT", "price": 45000.0, "change": 2.5}}}
		case "/api/staking/stakes":
			out = map[string]any{"stakes": []any{}}
		case "/api/staking/stake":
			// Rejected with no detail body.
			w.WriteHeader(http.StatusInternalServerError)
			return
		case "/api/trading/place-order":
			var req struct {
				Amount float64 `json:"amount"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Amount > 50 {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Position size exceeds 5% of balance"})
				return
			}
			out = map[string]any{"message": "Order placed successfully", "trade": map[string]any{
				"id": "t1", "symbol": "BTC/USDT", "side": "buy", "amount": req.Amount, "price": 45000.0,
				"status": "open", "pnl": 0, "created_at": "2025-06-01T12:00:00",
			}}
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Not Found"})
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}

type bridge struct {
	http.Handler
	dash *dashboard.Dashboard
}

func newBridge(t *testing.T, apiKey string) bridge {
	t.Helper()
	upstream := httptest.NewServer(backend())
	t.Cleanup(upstream.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := averix.NewClient(averix.ClientConfig{BaseURL: upstream.URL, Timeout: 5 * time.Second})
	sessions := session.NewManager(client, session.NewMemoryStore(), "default", logger)
	dash := dashboard.New(client, sessions, dashboard.DefaultConfig(), logger)
	tracker, err := landing.NewSectionTracker(landing.Sections, landing.DefaultThreshold)
	require.NoError(t, err)

	h := NewHandler(
		Config{APIKey: apiKey},
		Handlers{
			Health: handler.NewHealthHandler(map[string]handler.Check{
				"backend": func(ctx context.Context) error { return nil },
			}, logger),
			Dashboard: handler.NewDashboardHandler(dash, nil, nil, "", logger),
			Session:   handler.NewSessionHandler(sessions, logger),
			Landing:   handler.NewLandingHandler(tracker, client, logger),
		},
		Options{},
		logger,
	)
	return bridge{Handler: h, dash: dash}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthIsOpen(t *testing.T) {
	b := newBridge(t, "secret")
	rec := do(t, b, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = do(t, b, http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthDegraded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.NewHealthHandler(map[string]handler.Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}, logger)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubmitWithoutSessionIsUnauthorized(t *testing.T) {
	b := newBridge(t, "")
	rec := do(t, b, http.MethodPost, "/api/dashboard/order/submit", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardFlow(t *testing.T) {
	b := newBridge(t, "")

	rec := do(t, b, http.MethodPost, "/api/session/login", map[string]string{"email": "trader@averix.io", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["authenticated"])
	assert.NotContains(t, rec.Body.String(), `"tok"`)

	rec = do(t, b, http.MethodPost, "/api/dashboard/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode(t, rec)
	assert.Equal(t, false, state["loading"])
	assert.Equal(t, 75.0, state["success_rate"])

	rec = do(t, b, http.MethodPut, "/api/dashboard/tab", map[string]string{"tab": "trading"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, b, http.MethodPut, "/api/dashboard/tab", map[string]string{"tab": "portfolio"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing price never reaches the backend.
	rec = do(t, b, http.MethodPut, "/api/dashboard/order", dashboard.OrderDraft{Symbol: "BTC/USDT", Side: "buy", Amount: "10"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, b, http.MethodPost, "/api/dashboard/order/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price"`)

	// Oversized order: backend detail is relayed and the draft kept.
	big := dashboard.OrderDraft{Symbol: "BTC/USDT", Side: "buy", Amount: "100", Price: "45000", StopLoss: "44000", TakeProfit: "47000"}
	rec = do(t, b, http.MethodPut, "/api/dashboard/order", big)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "max_position")
	rec = do(t, b, http.MethodPost, "/api/dashboard/order/submit", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Position size exceeds 5% of balance", decode(t, rec)["error"])
	assert.Equal(t, big, b.dash.OrderDraft())

	big.Amount = "10"
	do(t, b, http.MethodPut, "/api/dashboard/order", big)
	rec = do(t, b, http.MethodPost, "/api/dashboard/order/submit", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "t1", decode(t, rec)["id"])

	rec = do(t, b, http.MethodGet, "/api/dashboard", nil)
	state = decode(t, rec)
	assert.Equal(t, "trading", state["tab"])
	notice := state["notice"].(map[string]any)
	assert.Equal(t, "Trade placed successfully!", notice["message"])

	rec = do(t, b, http.MethodPost, "/api/dashboard/refresh/bogus", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, b, http.MethodGet, "/api/dashboard/journal", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectionWithoutDetailUsesNoticeFallback(t *testing.T) {
	b := newBridge(t, "")

	rec := do(t, b, http.MethodPost, "/api/session/login", map[string]string{"email": "trader@averix.io", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, b, http.MethodPut, "/api/dashboard/stake", dashboard.StakeDraft{Amount: "100", DurationDays: 30})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, b, http.MethodPost, "/api/dashboard/stake/submit", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, dashboard.MsgStakeFailed, decode(t, rec)["error"])

	notice := b.dash.Notice()
	require.NotNil(t, notice)
	assert.Equal(t, dashboard.MsgStakeFailed, notice.Message)
}

func TestLanding(t *testing.T) {
	b := newBridge(t, "")

	rec := do(t, b, http.MethodGet, "/api/landing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "hero", body["active_section"])
	assert.Equal(t, "0.85", body["stats"].(map[string]any)["tft_price"])

	rec = do(t, b, http.MethodPost, "/api/landing/visibility", map[string]any{"section": "roadmap", "ratio": 0.6})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "roadmap", decode(t, rec)["active_section"])

	rec = do(t, b, http.MethodPost, "/api/landing/visibility", map[string]any{"section": "pricing", "ratio": 0.6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
