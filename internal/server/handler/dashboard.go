package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/averix/internal/dashboard"
	"github.com/alanyoungcy/averix/internal/domain"
)

// DashboardService defines what the dashboard handler requires from the
// dashboard state.
type DashboardService interface {
	Activate(ctx context.Context) <-chan struct{}
	View() dashboard.View
	Profile() *domain.UserProfile
	SelectTab(name string) error
	ClearNotice()

	RefreshSummary(ctx context.Context) error
	RefreshInstruments(ctx context.Context) error
	RefreshStakes(ctx context.Context) error
	RefreshHistory(ctx context.Context) error

	OrderDraft() dashboard.OrderDraft
	SetOrderDraft(o dashboard.OrderDraft)
	OrderState() dashboard.SubmitState
	OrderRiskAdvisories() []dashboard.Advisory
	SubmitOrder(ctx context.Context) (domain.Trade, error)

	StakeDraft() dashboard.StakeDraft
	SetStakeDraft(s dashboard.StakeDraft)
	StakeState() dashboard.SubmitState
	StakeAdvisories() []dashboard.Advisory
	SubmitStake(ctx context.Context) (domain.Stake, error)
}

// DashboardHandler serves the dashboard state and its mutations.
type DashboardHandler struct {
	dash    DashboardService
	journal domain.TradeJournal
	events  domain.EventLog
	stream  string
	logger  *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler. journal and events may be
// nil; the endpoints relying on them then answer 404.
func NewDashboardHandler(dash DashboardService, journal domain.TradeJournal, events domain.EventLog, stream string, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dash:    dash,
		journal: journal,
		events:  events,
		stream:  stream,
		logger:  logHandler(logger, "dashboard"),
	}
}

type tabRequest struct {
	Tab string `json:"tab"`
}

type orderResponse struct {
	Draft      dashboard.OrderDraft  `json:"draft"`
	State      dashboard.SubmitState `json:"state"`
	Advisories []dashboard.Advisory  `json:"advisories"`
}

type stakeResponse struct {
	Draft      dashboard.StakeDraft  `json:"draft"`
	State      dashboard.SubmitState `json:"state"`
	Advisories []dashboard.Advisory  `json:"advisories"`
}

// GetState returns the render projection.
// GET /api/dashboard
func (h *DashboardHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dash.View())
}

// Activate runs the three initial fetches and returns the resulting state.
// Individual fetch failures are reported inside the state, not as an error.
// POST /api/dashboard/activate
func (h *DashboardHandler) Activate(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.dash.Activate(r.Context()):
	case <-r.Context().Done():
		return
	}
	writeJSON(w, http.StatusOK, h.dash.View())
}

// SelectTab switches the visible tab.
// PUT /api/dashboard/tab
func (h *DashboardHandler) SelectTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.dash.SelectTab(req.Tab); err != nil {
		writeFailure(w, h.logger, r, err, msgUpstreamFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tab": req.Tab})
}

// ClearNotice dismisses the latest notice.
// DELETE /api/dashboard/notice
func (h *DashboardHandler) ClearNotice(w http.ResponseWriter, r *http.Request) {
	h.dash.ClearNotice()
	w.WriteHeader(http.StatusNoContent)
}

// Refresh refetches one resource.
// POST /api/dashboard/refresh/{resource}
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refresh func(context.Context) error
	switch resource := r.PathValue("resource"); resource {
	case dashboard.ResourceSummary:
		refresh = h.dash.RefreshSummary
	case dashboard.ResourceInstruments:
		refresh = h.dash.RefreshInstruments
	case dashboard.ResourceStakes:
		refresh = h.dash.RefreshStakes
	case dashboard.ResourceHistory:
		refresh = h.dash.RefreshHistory
	default:
		writeError(w, http.StatusNotFound, "unknown resource "+resource)
		return
	}
	if err := refresh(r.Context()); err != nil {
		writeFailure(w, h.logger, r, err, msgUpstreamFailed)
		return
	}
	writeJSON(w, http.StatusOK, h.dash.View())
}

// GetOrder returns the order draft, its submit state and advisories.
// GET /api/dashboard/order
func (h *DashboardHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orderResponse())
}

// PutOrder replaces the order draft.
// PUT /api/dashboard/order
func (h *DashboardHandler) PutOrder(w http.ResponseWriter, r *http.Request) {
	var draft dashboard.OrderDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.dash.SetOrderDraft(draft)
	writeJSON(w, http.StatusOK, h.orderResponse())
}

// SubmitOrder places the current order draft.
// POST /api/dashboard/order/submit
func (h *DashboardHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	trade, err := h.dash.SubmitOrder(r.Context())
	if err != nil {
		writeFailure(w, h.logger, r, err, dashboard.MsgOrderFailed)
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

// GetStake returns the stake draft, its submit state and advisories.
// GET /api/dashboard/stake
func (h *DashboardHandler) GetStake(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stakeResponse())
}

// PutStake replaces the stake draft.
// PUT /api/dashboard/stake
func (h *DashboardHandler) PutStake(w http.ResponseWriter, r *http.Request) {
	var draft dashboard.StakeDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.dash.SetStakeDraft(draft)
	writeJSON(w, http.StatusOK, h.stakeResponse())
}

// SubmitStake creates a stake from the current draft.
// POST /api/dashboard/stake/submit
func (h *DashboardHandler) SubmitStake(w http.ResponseWriter, r *http.Request) {
	stake, err := h.dash.SubmitStake(r.Context())
	if err != nil {
		writeFailure(w, h.logger, r, err, dashboard.MsgStakeFailed)
		return
	}
	writeJSON(w, http.StatusCreated, stake)
}

// GetJournal lists locally journaled trades of the signed-in user.
// GET /api/dashboard/journal?limit=50&offset=0
func (h *DashboardHandler) GetJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "trade journal not configured")
		return
	}
	profile := h.dash.Profile()
	if profile == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	trades, err := h.journal.List(r.Context(), profile.ID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list journal failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list journal")
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// GetEvents returns recent dashboard events, newest first.
// GET /api/dashboard/events?limit=50
func (h *DashboardHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotFound, "event log not configured")
		return
	}

	msgs, err := h.events.Recent(r.Context(), h.stream, parseListOpts(r).Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	out := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		if json.Valid(m.Payload) {
			out = append(out, m.Payload)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (h *DashboardHandler) orderResponse() orderResponse {
	adv := h.dash.OrderRiskAdvisories()
	if adv == nil {
		adv = []dashboard.Advisory{}
	}
	return orderResponse{
		Draft:      h.dash.OrderDraft(),
		State:      h.dash.OrderState(),
		Advisories: adv,
	}
}

func (h *DashboardHandler) stakeResponse() stakeResponse {
	adv := h.dash.StakeAdvisories()
	if adv == nil {
		adv = []dashboard.Advisory{}
	}
	return stakeResponse{
		Draft:      h.dash.StakeDraft(),
		State:      h.dash.StakeState(),
		Advisories: adv,
	}
}

// Compile-time interface check.
var _ DashboardService = (*dashboard.Dashboard)(nil)
