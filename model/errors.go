/*
errors.go - Error taxonomy for the engine

ERROR CATEGORIES:
  1. Validation errors - bad caller input, nothing persisted
  2. Configuration errors - stored reference data makes the computation
     impossible (all-zero profile, no commission bracket); fix the data,
     retrying will not help
  3. Not-found errors - a referenced record does not exist. A missing active
     target is NOT an error: calculators return a zero result instead
  4. Lifecycle errors - an illegal payout status transition
  5. Concurrency errors - a read observed a half-regenerated allocation set

USAGE:
  if errors.Is(err, model.ErrConfiguration) {
      // surface to the planner, do not retry
  }
*/
package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when caller input is rejected before any computation.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration is returned when stored reference data cannot support a computation.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a uniqueness rule is violated.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidTransition is returned for payout transitions that skip or reverse a stage.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConcurrentModification is returned when allocations changed under a reader.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputError names the offending field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrValidation }

// NoProfileError is returned when a target names no profile and no default exists,
// or names a profile that is gone.
type NoProfileError struct {
	TargetID  TargetID
	ProfileID ProfileID
}

func (e *NoProfileError) Error() string {
	if e.ProfileID != "" {
		return fmt.Sprintf("target %s: weight profile %s does not exist", e.TargetID, e.ProfileID)
	}
	return fmt.Sprintf("target %s: no weight profile and no default profile configured", e.TargetID)
}

func (e *NoProfileError) Unwrap() error { return ErrConfiguration }

// DegenerateProfileError is returned when every day of a month weighs zero.
type DegenerateProfileError struct {
	ProfileID ProfileID
	YearMonth YearMonth
}

func (e *DegenerateProfileError) Error() string {
	return fmt.Sprintf("weight profile %s gives every day of %s zero weight", e.ProfileID, e.YearMonth)
}

func (e *DegenerateProfileError) Unwrap() error { return ErrConfiguration }

// NoBracketError is returned when no active commission rate covers a sales total.
type NoBracketError struct {
	Scope      Scope
	TotalSales decimal.Decimal
}

func (e *NoBracketError) Error() string {
	return fmt.Sprintf("no active %s commission bracket covers sales of %s", e.Scope, e.TotalSales.StringFixed(2))
}

func (e *NoBracketError) Unwrap() error { return ErrConfiguration }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransitionError describes a rejected payout transition.
type TransitionError struct {
	From PayoutStatus
	To   PayoutStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrInvalidTransition)
}

// IsConfigError returns true if stored reference data must be fixed.
func IsConfigError(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrConcurrentModification) }
