package clinic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
)

// =============================================================================
// DERIVATION TESTS
// =============================================================================

func TestBalance_Outstanding_DerivedFromPayments(t *testing.T) {
	// GIVEN: A treatment costing 100 with a 30 pending and a 20 paid payment
	// WHEN: Computing the outstanding balance
	// THEN: Both statuses count, leaving 50

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	seedTreatment(t, store, "tr-1", "pat-1", "100", clinic.TreatmentInProgress)

	ledger := clinic.NewLedger(store)
	_, err := ledger.Create(ctx, treatmentPayment("pat-1", "tr-1", "30", clinic.KindPartial), frontDesk)
	require.NoError(t, err)
	paid, err := ledger.Create(ctx, treatmentPayment("pat-1", "tr-1", "20", clinic.KindPartial), frontDesk)
	require.NoError(t, err)
	_, err = ledger.MarkPaid(ctx, paid.ID, frontDesk)
	require.NoError(t, err)

	engine := clinic.NewBalanceEngine(store)
	outstanding, err := engine.OutstandingTreatment(ctx, "tr-1")
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(dec("50")), "want 50, got %s", outstanding)
}

func TestBalance_CancelledPaymentsExcluded(t *testing.T) {
	// GIVEN: A treatment with one active and one cancelled payment
	// WHEN: Computing the outstanding balance
	// THEN: The cancelled payment contributes nothing

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	seedTreatment(t, store, "tr-1", "pat-1", "100", clinic.TreatmentInProgress)

	ledger := clinic.NewLedger(store)
	_, err := ledger.Create(ctx, treatmentPayment("pat-1", "tr-1", "40", clinic.KindPartial), frontDesk)
	require.NoError(t, err)
	toCancel, err := ledger.Create(ctx, treatmentPayment("pat-1", "tr-1", "40", clinic.KindPartial), frontDesk)
	require.NoError(t, err)

	cancelled := clinic.StatusCancelled
	_, err = ledger.Amend(ctx, toCancel.ID, clinic.Amendment{Status: &cancelled}, admin)
	require.NoError(t, err)

	engine := clinic.NewBalanceEngine(store)
	outstanding, err := engine.OutstandingTreatment(ctx, "tr-1")
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(dec("60")), "want 60, got %s", outstanding)
}

func TestBalance_FlooredAtZero(t *testing.T) {
	// GIVEN: Payments exceeding the treatment cost (cost lowered after the fact)
	// WHEN: Computing the outstanding balance
	// THEN: The result floors at zero and the treatment reads fully paid

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	tr := seedTreatment(t, store, "tr-1", "pat-1", "100", clinic.TreatmentInProgress)

	ledger := clinic.NewLedger(store)
	_, err := ledger.Create(ctx, treatmentPayment("pat-1", "tr-1", "80", clinic.KindPartial), frontDesk)
	require.NoError(t, err)

	tr.Cost = dec("50")
	require.NoError(t, store.SaveTreatment(ctx, tr))

	engine := clinic.NewBalanceEngine(store)
	outstanding, err := engine.OutstandingTreatment(ctx, "tr-1")
	require.NoError(t, err)
	assert.True(t, outstanding.IsZero(), "want 0, got %s", outstanding)

	full, err := engine.FullyPaid(ctx, clinic.OwnerTreatment, "tr-1")
	require.NoError(t, err)
	assert.True(t, full)
}

func TestBalance_ConsultationIncludesFee(t *testing.T) {
	// GIVEN: A consultation with costTotal 200 and fee 50, 100 already paid
	// WHEN: Computing the outstanding balance
	// THEN: The total cost is costTotal + fee, leaving 150

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	seedConsultation(t, store, "con-1", "pat-1", "200", "50")

	ledger := clinic.NewLedger(store)
	_, err := ledger.Create(ctx, clinic.PaymentRecord{
		PatientID:      "pat-1",
		ConsultationID: "con-1",
		Kind:           clinic.KindConsultationFee,
		Amount:         dec("100"),
	}, frontDesk)
	require.NoError(t, err)

	engine := clinic.NewBalanceEngine(store)
	outstanding, err := engine.OutstandingConsultation(ctx, "con-1")
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(dec("150")), "want 150, got %s", outstanding)
}

func TestBalance_UnknownOwner_NotFound(t *testing.T) {
	// GIVEN: No treatment with the queried id
	// WHEN: Computing the outstanding balance
	// THEN: The query fails with NotFound instead of returning zero

	store := newTestStore(t)
	engine := clinic.NewBalanceEngine(store)

	_, err := engine.OutstandingTreatment(context.Background(), "missing")
	assert.ErrorIs(t, err, clinic.ErrNotFound)

	_, err = engine.Outstanding(context.Background(), clinic.OwnerConsultation, "missing")
	assert.ErrorIs(t, err, clinic.ErrNotFound)
}
