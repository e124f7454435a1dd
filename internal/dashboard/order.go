package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/shopspring/decimal"
)

// Order notices. MsgOrderFailed is shown when the backend gives no detail.
const (
	msgOrderPlaced = "Trade placed successfully!"
	MsgOrderFailed = "Failed to place trade"
)

// OrderDraft is the in-progress order form. Numeric fields hold the raw
// form input until validation.
type OrderDraft struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Amount     string `json:"amount"`
	Price      string `json:"price"`
	StopLoss   string `json:"stop_loss"`
	TakeProfit string `json:"take_profit"`
}

// DefaultOrderDraft is the reset state: the first listed symbol (or
// BTC/USDT when none are loaded), side buy, empty numeric fields.
func DefaultOrderDraft(symbols []string) OrderDraft {
	symbol := domain.DefaultSymbol
	if len(symbols) > 0 {
		symbol = symbols[0]
	}
	return OrderDraft{Symbol: symbol, Side: string(domain.OrderSideBuy)}
}

// Validate checks the draft and converts it into a request. symbols is the
// loaded instrument list; when empty only presence of a symbol is checked.
func (o OrderDraft) Validate(symbols []string) (domain.OrderRequest, error) {
	verr := &ValidationError{}

	symbol := strings.TrimSpace(o.Symbol)
	switch {
	case symbol == "":
		verr.add("symbol", "is required")
	case len(symbols) > 0 && !slices.Contains(symbols, symbol):
		verr.add("symbol", "is not a listed instrument")
	}

	side, err := domain.ParseOrderSide(strings.ToLower(strings.TrimSpace(o.Side)))
	if err != nil {
		verr.add("side", "must be buy or sell")
	}

	req := domain.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Amount:     positiveField(verr, "amount", o.Amount),
		Price:      positiveField(verr, "price", o.Price),
		StopLoss:   positiveField(verr, "stop_loss", o.StopLoss),
		TakeProfit: positiveField(verr, "take_profit", o.TakeProfit),
	}
	if err := verr.orNil(); err != nil {
		return domain.OrderRequest{}, err
	}
	return req, nil
}

// OrderDraft returns the current order form.
func (d *Dashboard) OrderDraft() OrderDraft {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.orderDraft
}

// SetOrderDraft replaces the order form.
func (d *Dashboard) SetOrderDraft(o OrderDraft) {
	d.mu.Lock()
	d.orderDraft = o
	d.mu.Unlock()
}

// UpdateOrderDraft edits the order form in place.
func (d *Dashboard) UpdateOrderDraft(fn func(*OrderDraft)) {
	d.mu.Lock()
	fn(&d.orderDraft)
	d.mu.Unlock()
}

// OrderState returns the order submission state.
func (d *Dashboard) OrderState() SubmitState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.orderState
}

// OrderRiskAdvisories mirrors the backend's position-size and risk/reward
// limits against the current draft. Fields that do not parse are skipped;
// validation reports them. Returns nil when the mirror is disabled.
func (d *Dashboard) OrderRiskAdvisories() []Advisory {
	if !d.cfg.MirrorRiskRules {
		return nil
	}
	draft := d.OrderDraft()
	balance, haveBalance := d.balance()

	var out []Advisory

	amount, amountErr := decimal.NewFromString(strings.TrimSpace(draft.Amount))
	if haveBalance && amountErr == nil {
		limit := balance.Mul(d.cfg.MaxPositionPct).Div(decimal.NewFromInt(100))
		if amount.GreaterThan(limit) {
			out = append(out, Advisory{
				Rule:    "max_position",
				Message: fmt.Sprintf("Order exceeds %s%% of balance limit (max %s TFT)", d.cfg.MaxPositionPct, limit.StringFixed(2)),
			})
		}
	}

	price, err1 := decimal.NewFromString(strings.TrimSpace(draft.Price))
	stop, err2 := decimal.NewFromString(strings.TrimSpace(draft.StopLoss))
	take, err3 := decimal.NewFromString(strings.TrimSpace(draft.TakeProfit))
	if err1 == nil && err2 == nil && err3 == nil {
		risk := price.Sub(stop).Abs()
		reward := take.Sub(price).Abs()
		if risk.IsPositive() && (reward.IsZero() || risk.Div(reward).GreaterThan(d.cfg.MaxRiskReward)) {
			out = append(out, Advisory{
				Rule:    "risk_reward",
				Message: fmt.Sprintf("Risk/reward exceeds %s:1", d.cfg.MaxRiskReward),
			})
		}
	}
	return out
}

// SubmitOrder validates the draft and places it. On success the draft resets
// to defaults and the summary is refetched; on failure the draft is kept and
// the backend's detail (or a generic message) becomes the notice.
func (d *Dashboard) SubmitOrder(ctx context.Context) (domain.Trade, error) {
	sess := d.sessions.Current()
	if !sess.Authenticated() {
		return domain.Trade{}, fmt.Errorf("dashboard: submit order: %w", domain.ErrNotAuthenticated)
	}

	d.mu.Lock()
	if d.orderState == SubmitSubmitting {
		d.mu.Unlock()
		return domain.Trade{}, fmt.Errorf("dashboard: submit order: %w", domain.ErrSubmitInFlight)
	}
	req, err := d.orderDraft.Validate(symbolsOf(d.instruments.Value))
	if err != nil {
		d.mu.Unlock()
		return domain.Trade{}, err
	}
	d.orderState = SubmitSubmitting
	d.mu.Unlock()

	unlock, err := d.acquireSubmitLock(ctx, ResourceOrder)
	if err != nil {
		d.mu.Lock()
		d.orderState = SubmitIdle
		d.mu.Unlock()
		return domain.Trade{}, err
	}
	defer unlock()

	start := time.Now()
	trade, err := d.api.PlaceOrder(ctx, sess.Credential, req)
	d.observeSubmit(ResourceOrder, start, err)

	if err != nil {
		msg := failureMessage(err, MsgOrderFailed)
		d.mu.Lock()
		if !d.superseded(sess) {
			d.orderState = SubmitFailed
			d.setNotice(NoticeError, msg)
		}
		d.mu.Unlock()

		d.logger.WarnContext(ctx, "order rejected",
			slog.String("symbol", req.Symbol),
			slog.String("side", string(req.Side)),
			slog.String("error", err.Error()),
		)
		d.auditLog(ctx, string(domain.EventOrderFailed), map[string]any{
			"symbol": req.Symbol,
			"side":   string(req.Side),
			"amount": req.Amount.String(),
			"reason": msg,
		})
		d.emit(domain.EventOrderFailed, ResourceOrder, msg, nil)
		return domain.Trade{}, fmt.Errorf("dashboard: submit order: %w", err)
	}

	d.mu.Lock()
	stale := d.superseded(sess)
	if !stale {
		d.orderState = SubmitSucceeded
		d.orderDraft = DefaultOrderDraft(symbolsOf(d.instruments.Value))
		d.setNotice(NoticeSuccess, msgOrderPlaced)
	}
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "order placed",
		slog.String("trade_id", trade.ID),
		slog.String("symbol", trade.Symbol),
		slog.String("side", string(trade.Side)),
		slog.String("amount", trade.Amount.String()),
	)
	d.auditLog(ctx, string(domain.EventOrderPlaced), map[string]any{
		"trade_id": trade.ID,
		"symbol":   trade.Symbol,
		"side":     string(trade.Side),
		"amount":   trade.Amount.String(),
		"price":    trade.Price.String(),
	})
	d.journalTrades(ctx, []domain.Trade{trade})
	d.emit(domain.EventOrderPlaced, ResourceOrder, msgOrderPlaced, map[string]any{
		"trade_id": trade.ID,
		"symbol":   trade.Symbol,
	})

	if !stale {
		_ = d.RefreshSummary(ctx)
	}
	return trade, nil
}
