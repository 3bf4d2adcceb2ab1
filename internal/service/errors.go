package service

import "errors"

var (
	// ErrUpstreamUnavailable marks a run in which the event log could not be
	// reached after retries.
	ErrUpstreamUnavailable = errors.New("event log unavailable")
	// ErrScopeUndetermined marks a failed night whose week could not be
	// worked out, so no week scope can safely be reconciled.
	ErrScopeUndetermined = errors.New("scope undetermined")
)
