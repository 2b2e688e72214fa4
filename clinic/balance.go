/*
balance.go - Outstanding-balance computation

PURPOSE:
  Answers "how much does this treatment or consultation still owe?". The
  value is derived on every call from the owner's fixed total cost and the
  payment log - there is no stored balance field anywhere, so it can never
  drift. The cost is an O(payments-per-owner) scan per query, accepted by
  design.

ALGORITHM:
  outstanding = max(0, totalCost - sum(amount of non-cancelled payments))
  fullyPaid  <=> outstanding == 0 after flooring

STALENESS:
  The result is advisory the instant after it is read. Writers that depend
  on it (Ledger.Create) recompute it inside their own transaction instead
  of trusting a caller-supplied value.

SEE ALSO:
  - billing.go: calls Outstanding once per open treatment
  - ledger.go: re-validates amounts against a fresh balance at write time
*/
package clinic

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceEngine computes outstanding balances. Read-only; safe for
// concurrent use over any Store view.
type BalanceEngine struct {
	Store Store
}

func NewBalanceEngine(store Store) *BalanceEngine {
	return &BalanceEngine{Store: store}
}

// Outstanding computes the floored balance for an owner. Fails with
// ErrNotFound when the owner id does not reference an existing record.
func (e *BalanceEngine) Outstanding(ctx context.Context, kind OwnerKind, id string) (decimal.Decimal, error) {
	switch kind {
	case OwnerTreatment:
		return e.OutstandingTreatment(ctx, TreatmentID(id))
	case OwnerConsultation:
		return e.OutstandingConsultation(ctx, ConsultationID(id))
	default:
		return decimal.Zero, &FieldError{Field: "ownerKind", Reason: "want treatment or consultation"}
	}
}

// OutstandingTreatment returns the treatment's cost minus its non-cancelled
// payments, floored at zero.
func (e *BalanceEngine) OutstandingTreatment(ctx context.Context, id TreatmentID) (decimal.Decimal, error) {
	t, err := e.Store.GetTreatment(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if t == nil {
		return decimal.Zero, fmt.Errorf("treatment %s: %w", id, ErrNotFound)
	}
	payments, err := e.Store.PaymentsByTreatment(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return floored(t.Cost.Sub(sumActive(payments))), nil
}

// OutstandingConsultation measures payments against costTotal plus the
// consultation fee.
func (e *BalanceEngine) OutstandingConsultation(ctx context.Context, id ConsultationID) (decimal.Decimal, error) {
	c, err := e.Store.GetConsultation(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	if c == nil {
		return decimal.Zero, fmt.Errorf("consultation %s: %w", id, ErrNotFound)
	}
	payments, err := e.Store.PaymentsByConsultation(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return floored(c.TotalCost().Sub(sumActive(payments))), nil
}

// FullyPaid reports whether the owner carries no outstanding balance.
func (e *BalanceEngine) FullyPaid(ctx context.Context, kind OwnerKind, id string) (bool, error) {
	out, err := e.Outstanding(ctx, kind, id)
	if err != nil {
		return false, err
	}
	return out.IsZero(), nil
}

// sumActive totals the amounts of records that still count toward a
// balance. Cancelled records are excluded; pending and paid both count.
func sumActive(payments []PaymentRecord) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status == StatusCancelled {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total
}

func floored(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
