package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/session"
)

// SessionService defines what the session handler requires.
type SessionService interface {
	Current() session.Session
	Login(ctx context.Context, email, password string) (session.Session, error)
	Logout(ctx context.Context) error
}

// SessionHandler serves login state for the bridge.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logHandler(logger, "session")}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse never includes the credential itself.
type sessionResponse struct {
	Authenticated bool                `json:"authenticated"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	Profile       *domain.UserProfile `json:"profile,omitempty"`
}

func toSessionResponse(s session.Session) sessionResponse {
	resp := sessionResponse{Authenticated: s.Authenticated(), Profile: s.Profile}
	if !s.ExpiresAt.IsZero() {
		t := s.ExpiresAt
		resp.ExpiresAt = &t
	}
	return resp
}

// GetSession reports whether the bridge holds a credential.
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.sessions.Current()))
}

// Login authenticates and stores the credential.
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeFailure(w, h.logger, r, err, msgAuthFailed)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// Logout drops the stored credential.
// POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "logout failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
