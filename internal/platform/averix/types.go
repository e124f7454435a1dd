package averix

import (
	"encoding/json"
	"strings"

	"github.com/alanyoungcy/averix/internal/domain"
)

// --------------------------------------------------------------------------
// Averix API DTOs
// --------------------------------------------------------------------------

// RegisterRequest carries the fields of a new account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest carries account credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both register and login.
type AuthResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	User        domain.UserProfile `json:"user"`
}

type instrumentsResponse struct {
	Instruments []domain.Instrument `json:"instruments"`
}

type stakesResponse struct {
	Stakes []domain.Stake `json:"stakes"`
}

type historyResponse struct {
	Trades []domain.Trade `json:"trades"`
}

type placeOrderResponse struct {
	Message string       `json:"message"`
	Trade   domain.Trade `json:"trade"`
}

type createStakeResponse struct {
	Message string       `json:"message"`
	Stake   domain.Stake `json:"stake"`
}

// orderPayload sends decimals as bare JSON numbers; the backend models them
// as floats.
type orderPayload struct {
	Symbol     string      `json:"symbol"`
	Side       string      `json:"side"`
	Amount     json.Number `json:"amount"`
	Price      json.Number `json:"price"`
	StopLoss   json.Number `json:"stop_loss"`
	TakeProfit json.Number `json:"take_profit"`
}

type stakePayload struct {
	Amount       json.Number `json:"amount"`
	DurationDays int         `json:"duration_days"`
}

// errorResponse is the backend error envelope. Detail is either a string or,
// for request validation failures, a list of {loc, msg, type} objects.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Msg string `json:"msg"`
}

// message extracts a human-readable message from the detail field. Multiple
// validation issues are joined with "; ".
func (e errorResponse) message() string {
	if len(e.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	var issues []validationIssue
	if err := json.Unmarshal(e.Detail, &issues); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(issues))
	for _, is := range issues {
		if is.Msg != "" {
			msgs = append(msgs, is.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}
