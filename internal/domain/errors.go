package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRateLimited      = errors.New("rate limited")
	ErrInvalidDuration  = errors.New("invalid staking duration")
	ErrInvalidSide      = errors.New("invalid order side")
	ErrUnknownTab       = errors.New("unknown dashboard tab")
	ErrSubmitInFlight   = errors.New("submission already in flight")
	ErrLockHeld         = errors.New("lock already held")
	ErrSessionChanged   = errors.New("session changed during request")
)
