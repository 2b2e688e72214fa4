/*
errors.go - Centralized error types for the clinic core

PURPOSE:
  All domain error kinds in one place. Handlers map these to HTTP status
  codes; nothing in this package retries silently - every failure is
  surfaced to the caller for an explicit decision.

ERROR CATEGORIES:
  1. Lookup errors   - missing patient/treatment/consultation/payment/appointment
  2. Balance errors  - amount exceeds or mismatches the outstanding balance
  3. Lifecycle errors - stale amend, cancelled-record mutation, permissions
  4. Scheduling errors - slot conflicts
  5. Audit errors    - trail append failure (fatal to the enclosing mutation)

USAGE:
  if errors.Is(err, clinic.ErrInsufficientBalance) { ... }
  var sc *clinic.SlotConflictError
  if errors.As(err, &sc) { ... sc.ConflictingID ... }
*/
package clinic

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced patient, owner, payment or
	// appointment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance is returned when a treatment/partial payment
	// exceeds the treatment's outstanding balance.
	ErrInsufficientBalance = errors.New("amount exceeds outstanding balance")

	// ErrExactAmountRequired is returned when a full-kind payment does not
	// match the outstanding balance exactly (even when it is less).
	ErrExactAmountRequired = errors.New("full payment must match outstanding balance exactly")

	// ErrStalePayment is returned when an amend is attempted more than 24
	// hours after the record was created. Permanent for that record.
	ErrStalePayment = errors.New("payment is older than the amendment window")

	// ErrSlotConflict is returned when a booking's start instant falls
	// within 30 minutes of an existing active appointment.
	ErrSlotConflict = errors.New("appointment slot conflict")

	// ErrAuditWriteFailed is returned when the audit append cannot be
	// persisted; the enclosing ledger mutation is rejected (fail-closed).
	ErrAuditWriteFailed = errors.New("audit trail write failed")

	// ErrCancelledPayment is returned when mutating a cancelled record.
	// Cancelled is terminal.
	ErrCancelledPayment = errors.New("payment is cancelled")

	// ErrNotPermitted is returned when the actor's role may not perform
	// the operation (amend is restricted to privileged actors).
	ErrNotPermitted = errors.New("actor not permitted")

	// ErrDuplicateID is returned when an insert carries an id that already
	// exists. Turns a retried create into a rejected duplicate instead of
	// a double-apply.
	ErrDuplicateID = errors.New("id already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry numeric context for the caller
// =============================================================================

// BalanceError reports a rejected payment amount together with the
// outstanding balance computed at the instant of the call, so the caller
// can resubmit a corrected amount.
type BalanceError struct {
	TreatmentID TreatmentID
	Requested   decimal.Decimal
	Outstanding decimal.Decimal
	Exact       bool // true for full-kind mismatches
}

func (e *BalanceError) Error() string {
	if e.Exact {
		return fmt.Sprintf("full payment of %s rejected: outstanding balance is exactly %s",
			e.Requested, e.Outstanding)
	}
	return fmt.Sprintf("payment of %s rejected: outstanding balance is %s",
		e.Requested, e.Outstanding)
}

func (e *BalanceError) Unwrap() error {
	if e.Exact {
		return ErrExactAmountRequired
	}
	return ErrInsufficientBalance
}

// SlotConflictError identifies the appointment occupying the contested
// 30-minute window.
type SlotConflictError struct {
	ConflictingID AppointmentID
	Candidate     time.Time
	Existing      time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot conflict: %s is within 30 minutes of appointment %s at %s",
		e.Candidate.Format("2006-01-02 15:04"), e.ConflictingID, e.Existing.Format("15:04"))
}

func (e *SlotConflictError) Unwrap() error { return ErrSlotConflict }

// StalePaymentError reports how far outside the amendment window the
// record is.
type StalePaymentError struct {
	PaymentID PaymentID
	CreatedAt time.Time
	Age       time.Duration
}

func (e *StalePaymentError) Error() string {
	return fmt.Sprintf("payment %s created %s ago; amendments allowed within %s",
		e.PaymentID, e.Age.Round(time.Minute), AmendWindow)
}

func (e *StalePaymentError) Unwrap() error { return ErrStalePayment }

// FieldError reports a shape/range validation failure on an input field,
// surfaced before any store access.
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return e.Err }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsClientError reports whether the error is caused by the request rather
// than the system.
func IsClientError(err error) bool {
	var fe *FieldError
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrExactAmountRequired) ||
		errors.Is(err, ErrStalePayment) ||
		errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrCancelledPayment) ||
		errors.Is(err, ErrNotPermitted) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.As(err, &fe)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
