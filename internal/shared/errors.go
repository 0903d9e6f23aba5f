package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across domain packages. Services wrap these with
// package-specific context; httpx maps them to HTTP statuses.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the operation is illegal for the entity's
	// current state (e.g. paying a paid receivable).
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientStock indicates a movement would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict indicates a uniqueness or concurrency conflict.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
)

// PolicyError reports a failed credit policy check. It carries the rule that
// fired so callers can surface a deterministic first-failure reason.
type PolicyError struct {
	Rule   string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("credit policy %s: %s", e.Rule, e.Reason)
}

// NewPolicyError builds a PolicyError with a formatted reason.
func NewPolicyError(rule, format string, args ...any) *PolicyError {
	return &PolicyError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}
