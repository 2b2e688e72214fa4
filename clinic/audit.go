/*
audit.go - Immutable audit trail for payment mutations

PURPOSE:
  Every create, modify and delete of a PaymentRecord leaves exactly one
  AuditEntry with before/after snapshots and the acting identity. The trail
  is append-only; entries are never updated or deleted.

FAIL-CLOSED CONTRACT:
  The audit append and the ledger write commit together or not at all. If
  the trail cannot be durably persisted the enclosing mutation is rejected
  with ErrAuditWriteFailed. A payment mutation without a matching trail
  entry is an invariant violation, not a degraded mode.

SNAPSHOTS:
  created:  Before absent, After = record as written
  modified: Before = prior state, After = new state
  deleted:  Before = pre-deletion state, After absent, Reason always set
            (falls back to DefaultDeleteReason)

SEE ALSO:
  - ledger.go: wraps every mutation with a trail append
*/
package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditCreated  AuditAction = "created"
	AuditModified AuditAction = "modified"
	AuditDeleted  AuditAction = "deleted"
)

// DefaultDeleteReason is recorded when a deletion carries no reason.
const DefaultDeleteReason = "no reason provided"

// AuditEntry is immutable once written.
type AuditEntry struct {
	ID        string
	PaymentID PaymentID
	Action    AuditAction
	ActorID   string
	ActorRole Role
	Before    *PaymentRecord // absent for created
	After     *PaymentRecord // absent for deleted
	Reason    string         // set for deletions
	Timestamp time.Time
}

// AuditTrail records ledger mutations and serves their history.
type AuditTrail struct {
	store Store

	now   func() time.Time
	newID func() string
}

func NewAuditTrail(store Store) *AuditTrail {
	return &AuditTrail{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Record appends one entry through the given store view. Ledger mutations
// pass their transaction-scoped Store so the append commits with the
// mutation; any persistence failure surfaces as ErrAuditWriteFailed and
// aborts the enclosing transaction.
func (t *AuditTrail) Record(ctx context.Context, s Store, action AuditAction, paymentID PaymentID, actor Actor, before, after *PaymentRecord, reason string) error {
	if action == AuditDeleted && reason == "" {
		reason = DefaultDeleteReason
	}
	entry := AuditEntry{
		ID:        t.newID(),
		PaymentID: paymentID,
		Action:    action,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Before:    before,
		After:     after,
		Reason:    reason,
		Timestamp: t.now(),
	}
	if err := s.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
	}
	return nil
}

// History returns the entries for a payment, newest first. Deleted payments
// keep their history; the trail outlives the record.
func (t *AuditTrail) History(ctx context.Context, paymentID PaymentID) ([]AuditEntry, error) {
	return t.store.AuditByPayment(ctx, paymentID)
}
