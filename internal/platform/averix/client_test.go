package averix

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/"})
}

func TestGetInstrumentsSendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/trading/instruments", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{"instruments":[{"symbol":"BTC/USDT","price":45000.0,"change":2.5},{"symbol":"SOL/USDT","price":95.5,"change":-0.5}]}`)
	})

	got, err := c.GetInstruments(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTC/USDT", got[0].Symbol)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(45000)))
	assert.False(t, got[1].Rising())
}

func TestPublicStatsOmitsAuthorization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"total_traders":1250,"total_volume":"$2.5M","active_stakes":890,"tft_price":"$0.85"}`)
	})

	stats, err := c.GetPublicStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1250, stats.TotalTraders)
	assert.Equal(t, "$2.5M", stats.TotalVolume)
}

func TestPlaceOrderSendsNumbers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ETH/USDT", body["symbol"])
		assert.Equal(t, "sell", body["side"])
		assert.InDelta(t, 10.5, body["amount"], 1e-9)
		assert.InDelta(t, 2700.0, body["stop_loss"], 1e-9)

		_, _ = io.WriteString(w, `{"message":"Order placed successfully","trade":{"id":"t1","symbol":"ETH/USDT","side":"sell","amount":10.5,"price":2800,"stop_loss":2700,"take_profit":2900,"status":"open","pnl":0.21,"created_at":"2025-01-01T00:00:00"}}`)
	})

	trade, err := c.PlaceOrder(context.Background(), "tok", domain.OrderRequest{
		Symbol:     "ETH/USDT",
		Side:       domain.OrderSideSell,
		Amount:     decimal.RequireFromString("10.5"),
		Price:      decimal.NewFromInt(2800),
		StopLoss:   decimal.NewFromInt(2700),
		TakeProfit: decimal.NewFromInt(2900),
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", trade.ID)
	require.NotNil(t, trade.StopLoss)
	assert.True(t, trade.StopLoss.Equal(decimal.NewFromInt(2700)))
	assert.True(t, trade.ClosedAt.IsZero())
}

func TestCreateStake(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/staking/stake", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 200.0, body["amount"], 1e-9)
		assert.InDelta(t, 30.0, body["duration_days"], 1e-9)
		_, _ = io.WriteString(w, `{"message":"Stake created successfully","stake":{"id":"s1","amount":200,"duration_days":30,"start_date":"2025-01-01T00:00:00","end_date":"2025-01-31T00:00:00","is_active":true,"rewards_earned":0}}`)
	})

	stake, err := c.CreateStake(context.Background(), "tok", domain.StakeRequest{
		Amount:       decimal.NewFromInt(200),
		DurationDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", stake.ID)
	assert.True(t, stake.IsActive)
}

func TestErrorDetailString(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"Insufficient TFT balance"}`)
	})

	_, err := c.CreateStake(context.Background(), "tok", domain.StakeRequest{Amount: decimal.NewFromInt(1), DurationDays: 30})
	require.Error(t, err)
	assert.Equal(t, "Insufficient TFT balance", ErrorDetail(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestErrorDetailValidationList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":[{"loc":["body","amount"],"msg":"field required","type":"value_error.missing"}]}`)
	})

	_, err := c.GetStakes(context.Background(), "tok")
	assert.Equal(t, "field required", ErrorDetail(err))
}

func TestErrorDetailJoinsValidationIssues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":[`+
			`{"loc":["body","amount"],"msg":"field required","type":"value_error.missing"},`+
			`{"loc":["body","duration_days"],"msg":"value is not a valid integer","type":"type_error.integer"}]}`)
	})

	_, err := c.GetStakes(context.Background(), "tok")
	assert.Equal(t, "field required; value is not a valid integer", ErrorDetail(err))
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Invalid authentication credentials"}`)
	})

	_, err := c.GetProfile(context.Background(), "expired")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetDashboard(context.Background(), "tok")
	require.Error(t, err)
	assert.Empty(t, ErrorDetail(err))
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestLoginDecodesUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		_, _ = io.WriteString(w, `{"access_token":"abc","token_type":"bearer","user":{"id":"u1","email":"a@b.c","first_name":"Ada","last_name":"L","tft_balance":1000,"staked_amount":0,"trading_level":"Bronze","total_trades":0,"successful_trades":0,"is_active":true,"created_at":"2025-01-01T00:00:00"}}`)
	})

	resp, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.AccessToken)
	assert.Equal(t, "Ada L", resp.User.DisplayName())
}
