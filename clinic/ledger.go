/*
ledger.go - Payment record lifecycle

PURPOSE:
  The Ledger is the authoritative log of financial movements. It owns the
  four payment mutations - Create, Amend, Delete, MarkPaid - and guarantees
  that each one commits together with exactly one audit entry.

MUTATION RULES:
  Create:   amount >= 0; treatment-settling kinds validated against a
            freshly computed outstanding balance inside the write
            transaction (partial/treatment-fee: amount <= outstanding;
            full: amount == outstanding exactly).
  Amend:    privileged actors only, and only while the record is younger
            than AmendWindow (24h). Captures a full prior snapshot.
  Delete:   snapshots the record into the trail (with a reason), then
            removes it. The audit history survives the record.
  MarkPaid: narrow pending->paid transition; no freshness check; idempotent
            when already paid. Nothing ever leaves cancelled.

ATOMICITY:
  Every mutation runs in store.WithTx pairing the payment write with the
  audit append. If the trail cannot be persisted the mutation is rejected
  (ErrAuditWriteFailed) and nothing is committed.

RETRY SAFETY:
  A timed-out Create can be retried: the caller may pre-assign the payment
  id, and the primary-key constraint turns a double-apply into a rejected
  duplicate. MarkPaid is naturally idempotent.

SEE ALSO:
  - balance.go: the write-time balance validation
  - audit.go: trail semantics
*/
package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmendWindow is how long after creation a payment record stays amendable.
const AmendWindow = 24 * time.Hour

// Ledger coordinates payment mutations with balance validation and the
// audit trail.
type Ledger struct {
	store TxStore
	audit *AuditTrail

	now   func() time.Time
	newID func() string
}

func NewLedger(store TxStore) *Ledger {
	return &Ledger{
		store: store,
		audit: NewAuditTrail(store),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Audit exposes the trail for history queries.
func (l *Ledger) Audit() *AuditTrail { return l.audit }

// =============================================================================
// CREATE
// =============================================================================

// Create validates and persists a new payment record together with its
// `created` audit entry. The balance validation for treatment-settling
// kinds runs inside the transaction, against the balance at the instant of
// the write, not a caller-observed value.
func (l *Ledger) Create(ctx context.Context, rec PaymentRecord, actor Actor) (*PaymentRecord, error) {
	if err := l.validateNew(&rec); err != nil {
		return nil, err
	}

	patient, err := l.store.GetPatient(ctx, rec.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, fmt.Errorf("patient %s: %w", rec.PatientID, ErrNotFound)
	}

	now := l.now()
	if rec.ID == "" {
		rec.ID = PaymentID(l.newID())
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.CreatedAt = now
	rec.CreatedBy = actor.ID
	rec.CreatedRole = actor.Role

	err = l.store.WithTx(ctx, func(s Store) error {
		if rec.Kind.appliesToTreatment() {
			engine := NewBalanceEngine(s)
			outstanding, err := engine.OutstandingTreatment(ctx, rec.TreatmentID)
			if err != nil {
				return err
			}
			if rec.Kind == KindFull {
				if !rec.Amount.Equal(outstanding) {
					return &BalanceError{TreatmentID: rec.TreatmentID, Requested: rec.Amount, Outstanding: outstanding, Exact: true}
				}
			} else if rec.Amount.GreaterThan(outstanding) {
				return &BalanceError{TreatmentID: rec.TreatmentID, Requested: rec.Amount, Outstanding: outstanding}
			}
		}
		if rec.ConsultationID != "" {
			c, err := s.GetConsultation(ctx, rec.ConsultationID)
			if err != nil {
				return err
			}
			if c == nil {
				return fmt.Errorf("consultation %s: %w", rec.ConsultationID, ErrNotFound)
			}
		}
		if err := s.InsertPayment(ctx, rec); err != nil {
			return err
		}
		after := rec
		return l.audit.Record(ctx, s, AuditCreated, rec.ID, actor, nil, &after, "")
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *Ledger) validateNew(rec *PaymentRecord) error {
	if rec.PatientID == "" {
		return &FieldError{Field: "patientId", Reason: "required"}
	}
	if !rec.Kind.Valid() {
		return &FieldError{Field: "kind", Reason: "unknown payment kind"}
	}
	if rec.Amount.IsNegative() {
		return &FieldError{Field: "amount", Reason: "must be non-negative"}
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if !rec.Status.Valid() {
		return &FieldError{Field: "status", Reason: "unknown status"}
	}
	if rec.Kind.appliesToTreatment() && rec.TreatmentID == "" {
		return &FieldError{Field: "treatmentId", Reason: "required for " + string(rec.Kind) + " payments"}
	}
	if rec.Kind == KindConsultationFee && rec.ConsultationID == "" {
		return &FieldError{Field: "consultationId", Reason: "required for consultation-fee payments"}
	}
	return nil
}

// =============================================================================
// AMEND
// =============================================================================

// Amendment carries the fields a privileged actor may change. Nil fields
// are left untouched.
type Amendment struct {
	Concept *string
	Amount  *decimal.Decimal
	Status  *PaymentStatus
	Method  *string
	Notes   *string
}

// Amend applies the change set to a record younger than AmendWindow,
// writing a `modified` audit entry with both snapshots. Cancelled records
// never change again.
func (l *Ledger) Amend(ctx context.Context, id PaymentID, change Amendment, actor Actor) (*PaymentRecord, error) {
	if !actor.Privileged() {
		return nil, fmt.Errorf("amend requires admin or doctor role: %w", ErrNotPermitted)
	}
	if change.Amount != nil && change.Amount.IsNegative() {
		return nil, &FieldError{Field: "amount", Reason: "must be non-negative"}
	}
	if change.Status != nil && !change.Status.Valid() {
		return nil, &FieldError{Field: "status", Reason: "unknown status"}
	}

	var updated PaymentRecord
	err := l.store.WithTx(ctx, func(s Store) error {
		rec, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}
		if rec.Status == StatusCancelled {
			return fmt.Errorf("payment %s: %w", id, ErrCancelledPayment)
		}
		if age := l.now().Sub(rec.CreatedAt); age > AmendWindow {
			return &StalePaymentError{PaymentID: id, CreatedAt: rec.CreatedAt, Age: age}
		}

		before := *rec
		updated = *rec
		if change.Concept != nil {
			updated.Concept = *change.Concept
		}
		if change.Amount != nil {
			updated.Amount = *change.Amount
		}
		if change.Status != nil {
			updated.Status = *change.Status
		}
		if change.Method != nil {
			updated.Method = *change.Method
		}
		if change.Notes != nil {
			updated.Notes = *change.Notes
		}
		updated.ModifiedBy = actor.ID
		updated.ModifiedAt = l.now()

		if err := s.UpdatePayment(ctx, updated); err != nil {
			return err
		}
		after := updated
		return l.audit.Record(ctx, s, AuditModified, id, actor, &before, &after, "")
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete writes a `deleted` audit entry holding the full pre-deletion
// snapshot and the reason, then removes the record. The record itself is
// not mutated on the way out.
func (l *Ledger) Delete(ctx context.Context, id PaymentID, reason string, actor Actor) error {
	return l.store.WithTx(ctx, func(s Store) error {
		rec, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}

		before := *rec
		if err := l.audit.Record(ctx, s, AuditDeleted, id, actor, &before, nil, reason); err != nil {
			return err
		}
		return s.RemovePayment(ctx, id)
	})
}

// =============================================================================
// MARK PAID
// =============================================================================

// MarkPaid transitions a record to paid. Unlike Amend it carries no
// freshness check, and calling it on an already-paid record is a no-op
// returning the same end state. Cancelled records are rejected.
func (l *Ledger) MarkPaid(ctx context.Context, id PaymentID, actor Actor) (*PaymentRecord, error) {
	var updated PaymentRecord
	err := l.store.WithTx(ctx, func(s Store) error {
		rec, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}
		if rec.Status == StatusCancelled {
			return fmt.Errorf("payment %s: %w", id, ErrCancelledPayment)
		}
		if rec.Status == StatusPaid {
			updated = *rec // idempotent: no write, no audit entry
			return nil
		}

		before := *rec
		updated = *rec
		updated.Status = StatusPaid
		updated.ModifiedBy = actor.ID
		updated.ModifiedAt = l.now()

		if err := s.UpdatePayment(ctx, updated); err != nil {
			return err
		}
		after := updated
		return l.audit.Record(ctx, s, AuditModified, id, actor, &before, &after, "")
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a payment record by id.
func (l *Ledger) Get(ctx context.Context, id PaymentID) (*PaymentRecord, error) {
	rec, err := l.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// ByPatient returns every payment owned by the patient.
func (l *Ledger) ByPatient(ctx context.Context, id PatientID) ([]PaymentRecord, error) {
	return l.store.PaymentsByPatient(ctx, id)
}
