package averix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// apiPrefix is mounted under the backend root by the API router.
const apiPrefix = "/api"

// Credential is the bearer token of an authenticated session. The zero value
// sends no Authorization header.
type Credential string

// APIError is a non-2xx response from the backend. Detail carries the
// backend's human-readable reason when one was provided.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("averix: HTTP %d", e.Status)
	}
	return fmt.Sprintf("averix: HTTP %d: %s", e.Status, e.Detail)
}

// Is maps status codes onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// ErrorDetail returns the backend-supplied reason carried by err, or "" when
// err is not an APIError or the backend sent none.
func ErrorDetail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// ClientConfig holds the settings for the Averix REST client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the REST client for the Averix backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Averix REST client.
//
// BaseURL is the backend root, e.g. "https://averix.example.com"; the /api
// prefix is appended here.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + apiPrefix,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Register creates an account and returns its first credential.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &resp); err != nil {
		return AuthResponse{}, fmt.Errorf("averix: register: %w", err)
	}
	return resp, nil
}

// Login exchanges email and password for a credential.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var resp AuthResponse
	body := LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return AuthResponse{}, fmt.Errorf("averix: login: %w", err)
	}
	return resp, nil
}

// GetProfile returns the profile of the credential's owner.
func (c *Client) GetProfile(ctx context.Context, cred Credential) (domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.do(ctx, http.MethodGet, "/user/profile", cred, nil, &profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("averix: get profile: %w", err)
	}
	return profile, nil
}

// GetDashboard returns the account summary: totals over active stakes and
// the ten most recent trades, newest first.
func (c *Client) GetDashboard(ctx context.Context, cred Credential) (domain.DashboardSummary, error) {
	var summary domain.DashboardSummary
	if err := c.do(ctx, http.MethodGet, "/user/dashboard", cred, nil, &summary); err != nil {
		return domain.DashboardSummary{}, fmt.Errorf("averix: get dashboard: %w", err)
	}
	return summary, nil
}

// GetInstruments returns the tradable instruments with current prices.
func (c *Client) GetInstruments(ctx context.Context, cred Credential) ([]domain.Instrument, error) {
	var resp instrumentsResponse
	if err := c.do(ctx, http.MethodGet, "/trading/instruments", cred, nil, &resp); err != nil {
		return nil, fmt.Errorf("averix: get instruments: %w", err)
	}
	return resp.Instruments, nil
}

// PlaceOrder submits an order. The backend re-validates risk limits and
// rejects with a detail message when they are violated.
func (c *Client) PlaceOrder(ctx context.Context, cred Credential, order domain.OrderRequest) (domain.Trade, error) {
	payload := orderPayload{
		Symbol:     order.Symbol,
		Side:       string(order.Side),
		Amount:     number(order.Amount),
		Price:      number(order.Price),
		StopLoss:   number(order.StopLoss),
		TakeProfit: number(order.TakeProfit),
	}
	var resp placeOrderResponse
	if err := c.do(ctx, http.MethodPost, "/trading/place-order", cred, payload, &resp); err != nil {
		return domain.Trade{}, fmt.Errorf("averix: place order: %w", err)
	}
	return resp.Trade, nil
}

// GetTradeHistory returns up to fifty trades, newest first.
func (c *Client) GetTradeHistory(ctx context.Context, cred Credential) ([]domain.Trade, error) {
	var resp historyResponse
	if err := c.do(ctx, http.MethodGet, "/trading/history", cred, nil, &resp); err != nil {
		return nil, fmt.Errorf("averix: get trade history: %w", err)
	}
	return resp.Trades, nil
}

// GetStakes returns every stake of the user, active or not.
func (c *Client) GetStakes(ctx context.Context, cred Credential) ([]domain.Stake, error) {
	var resp stakesResponse
	if err := c.do(ctx, http.MethodGet, "/staking/stakes", cred, nil, &resp); err != nil {
		return nil, fmt.Errorf("averix: get stakes: %w", err)
	}
	return resp.Stakes, nil
}

// CreateStake locks amount for the requested duration.
func (c *Client) CreateStake(ctx context.Context, cred Credential, stake domain.StakeRequest) (domain.Stake, error) {
	payload := stakePayload{
		Amount:       number(stake.Amount),
		DurationDays: stake.DurationDays,
	}
	var resp createStakeResponse
	if err := c.do(ctx, http.MethodPost, "/staking/stake", cred, payload, &resp); err != nil {
		return domain.Stake{}, fmt.Errorf("averix: create stake: %w", err)
	}
	return resp.Stake, nil
}

// GetPublicStats returns the platform-wide landing page figures. No
// credential is required.
func (c *Client) GetPublicStats(ctx context.Context) (domain.PublicStats, error) {
	var stats domain.PublicStats
	if err := c.do(ctx, http.MethodGet, "/public/stats", "", nil, &stats); err != nil {
		return domain.PublicStats{}, fmt.Errorf("averix: get public stats: %w", err)
	}
	return stats, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// do builds, sends, and decodes a JSON request against the backend. out may
// be nil when the response body is not needed.
func (c *Client) do(ctx context.Context, method, path string, cred Credential, reqBody, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkStatus maps non-2xx HTTP status codes to an *APIError.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var errResp errorResponse
	_ = json.Unmarshal(body, &errResp)

	return &APIError{Status: statusCode, Detail: errResp.message()}
}
