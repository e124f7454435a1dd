// Package handler implements the bridge server's HTTP endpoints over the
// dashboard state, the session and the landing tracker.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/averix/internal/dashboard"
	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/platform/averix"
)

// maxBodyBytes bounds a decoded request body.
const maxBodyBytes = 64 << 10

const (
	msgUpstreamFailed = "upstream request failed"
	msgAuthFailed     = "An error occurred. Please try again."
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps err onto a status code. Validation problems carry their
// field list; backend rejections carry the backend's detail, or fallback when
// the backend gave none.
func writeFailure(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error, fallback string) {
	var verr *dashboard.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "invalid draft",
			"fields": verr.Fields,
		})
		return
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	case errors.Is(err, domain.ErrSubmitInFlight), errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "submission already in flight")
		return
	case errors.Is(err, domain.ErrSessionChanged):
		writeError(w, http.StatusConflict, "session changed")
		return
	case errors.Is(err, domain.ErrUnknownTab), errors.Is(err, domain.ErrInvalidDuration), errors.Is(err, domain.ErrInvalidSide):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	if detail := averix.ErrorDetail(err); detail != "" {
		writeError(w, http.StatusBadGateway, detail)
		return
	}
	logger.ErrorContext(r.Context(), "request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusBadGateway, fallback)
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
