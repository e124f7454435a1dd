package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/averix/internal/domain"
)

// SectionTracker defines what the landing handler requires from the
// section tracker.
type SectionTracker interface {
	Active() string
	Observe(section string, ratio float64) error
}

// StatsSource provides the public platform figures.
type StatsSource interface {
	GetPublicStats(ctx context.Context) (domain.PublicStats, error)
}

// LandingHandler serves the public landing page state.
type LandingHandler struct {
	tracker SectionTracker
	stats   StatsSource
	logger  *slog.Logger
}

// NewLandingHandler creates a LandingHandler.
func NewLandingHandler(tracker SectionTracker, stats StatsSource, logger *slog.Logger) *LandingHandler {
	return &LandingHandler{tracker: tracker, stats: stats, logger: logHandler(logger, "landing")}
}

type visibilityRequest struct {
	Section string  `json:"section"`
	Ratio   float64 `json:"ratio"`
}

// GetLanding returns the active section and, when reachable, public stats.
// GET /api/landing
func (h *LandingHandler) GetLanding(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"active_section": h.tracker.Active()}
	if h.stats != nil {
		stats, err := h.stats.GetPublicStats(r.Context())
		if err != nil {
			h.logger.WarnContext(r.Context(), "public stats unavailable", slog.String("error", err.Error()))
		} else {
			resp["stats"] = stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReportVisibility feeds one visibility measurement to the tracker.
// POST /api/landing/visibility
func (h *LandingHandler) ReportVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.tracker.Observe(req.Section, req.Ratio); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active_section": h.tracker.Active()})
}
