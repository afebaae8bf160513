package models

import "fmt"

// ValidationError rejects a malformed or mode-violating request before any
// state is written.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// RateLimitError is returned by the entitlement gate when a user is over
// quota. It carries everything the client needs to render the limit.
type RateLimitError struct {
	Limit        int `json:"limit"`
	PeriodHours  int `json:"period_hours"`
	CurrentCount int `json:"current_count"`
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("message limit of %d per %dh reached (current: %d)",
		e.Limit, e.PeriodHours, e.CurrentCount)
}

// UpstreamError wraps a model or collaborator failure.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
