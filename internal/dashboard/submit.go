package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/platform/averix"
	"github.com/shopspring/decimal"
)

// SubmitState tracks one draft's submission. A draft cannot be resubmitted
// while Submitting.
type SubmitState int

const (
	SubmitIdle SubmitState = iota
	SubmitSubmitting
	SubmitSucceeded
	SubmitFailed
)

func (s SubmitState) String() string {
	switch s {
	case SubmitIdle:
		return "idle"
	case SubmitSubmitting:
		return "submitting"
	case SubmitSucceeded:
		return "succeeded"
	case SubmitFailed:
		return "failed"
	default:
		return fmt.Sprintf("SubmitState(%d)", int(s))
	}
}

// MarshalText renders the state by name.
func (s SubmitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FieldError is a single draft field problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field problem of a draft. No request is sent
// for a draft that fails validation.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "dashboard: invalid draft: " + strings.Join(parts, "; ")
}

// Has reports whether field has a problem.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// positiveField parses a required positive decimal form value.
func positiveField(verr *ValidationError, field, raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.add(field, "is required")
		return decimal.Zero
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		verr.add(field, "must be a number")
		return decimal.Zero
	}
	if !v.IsPositive() {
		verr.add(field, "must be positive")
	}
	return v
}

// Advisory is a non-blocking client-side warning. The backend remains the
// authority on whether a submission is accepted.
type Advisory struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// failureMessage surfaces the backend detail verbatim, else fallback.
func failureMessage(err error, fallback string) string {
	if detail := averix.ErrorDetail(err); detail != "" {
		return detail
	}
	return fallback
}

// acquireSubmitLock takes the cross-process submit lock for kind when a lock
// manager is configured. The returned unlock is never nil.
func (d *Dashboard) acquireSubmitLock(ctx context.Context, kind string) (func(), error) {
	if d.locks == nil {
		return func() {}, nil
	}
	userID := "anonymous"
	if p := d.sessions.Current().Profile; p != nil && p.ID != "" {
		userID = p.ID
	}
	unlock, err := d.locks.Acquire(ctx, "submit:"+kind+":"+userID, d.cfg.LockTTL)
	if errors.Is(err, domain.ErrLockHeld) {
		return nil, fmt.Errorf("dashboard: %s submit: %w", kind, domain.ErrSubmitInFlight)
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard: %s submit lock: %w", kind, err)
	}
	return unlock, nil
}

func (d *Dashboard) observeSubmit(kind string, start time.Time, err error) {
	if d.recorder != nil {
		d.recorder.ObserveSubmit(kind, time.Since(start), err)
	}
}
