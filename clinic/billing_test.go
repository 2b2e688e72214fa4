package clinic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
)

// =============================================================================
// FEE WAIVER TESTS
// =============================================================================

func TestBilling_OpenTreatmentWithDebt_WaivesFee(t *testing.T) {
	// GIVEN: A patient with an in-progress treatment carrying debt
	// WHEN: Evaluating the consultation-fee policy
	// THEN: The fee is waived

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	seedTreatment(t, store, "tr-1", "pat-1", "300", clinic.TreatmentInProgress)

	policy := clinic.NewBillingPolicy(store)
	charge, err := policy.ShouldChargeConsultationFee(ctx, "pat-1", dec("50"))
	require.NoError(t, err)
	assert.False(t, charge)
}

func TestBilling_CompletedButUnpaidTreatment_StillWaives(t *testing.T) {
	// GIVEN: A completed treatment that is not fully paid
	// WHEN: Evaluating the consultation-fee policy
	// THEN: Completed treatments remain billable, so the fee is waived

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	seedTreatment(t, store, "tr-1", "pat-1", "300", clinic.TreatmentCompleted)

	ledger := clinic.NewLedger(store)
	_, err := ledger.Create(ctx, treatmentPayment("pat-1", "tr-1", "100", clinic.KindPartial), frontDesk)
	require.NoError(t, err)

	policy := clinic.NewBillingPolicy(store)
	charge, err := policy.ShouldChargeConsultationFee(ctx, "pat-1", dec("50"))
	require.NoError(t, err)
	assert.False(t, charge)
}

func TestBilling_CancelledTreatmentDebt_Ignored(t *testing.T) {
	// GIVEN: The patient's only indebted treatment is cancelled
	// WHEN: Evaluating the consultation-fee policy
	// THEN: Cancelled treatments never waive, so the fee is charged

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	seedTreatment(t, store, "tr-1", "pat-1", "300", clinic.TreatmentCancelled)

	policy := clinic.NewBillingPolicy(store)
	charge, err := policy.ShouldChargeConsultationFee(ctx, "pat-1", dec("50"))
	require.NoError(t, err)
	assert.True(t, charge)
}

func TestBilling_DebtSettled_FeeCharged(t *testing.T) {
	// GIVEN: A treatment whose outstanding balance was settled in full
	// WHEN: Evaluating the consultation-fee policy
	// THEN: The fee is charged

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	seedTreatment(t, store, "tr-1", "pat-1", "300", clinic.TreatmentInProgress)

	ledger := clinic.NewLedger(store)
	_, err := ledger.Create(ctx, treatmentPayment("pat-1", "tr-1", "300", clinic.KindFull), frontDesk)
	require.NoError(t, err)

	policy := clinic.NewBillingPolicy(store)
	charge, err := policy.ShouldChargeConsultationFee(ctx, "pat-1", dec("50"))
	require.NoError(t, err)
	assert.True(t, charge)
}

func TestBilling_ZeroFee_NeverCharged(t *testing.T) {
	// GIVEN: A debt-free patient and a zero proposed fee
	// WHEN: Evaluating the consultation-fee policy
	// THEN: No charge; zero-amount fee records are never created

	store := newTestStore(t)
	seedPatient(t, store, "pat-1")

	policy := clinic.NewBillingPolicy(store)
	charge, err := policy.ShouldChargeConsultationFee(context.Background(), "pat-1", dec("0"))
	require.NoError(t, err)
	assert.False(t, charge)
}

func TestBilling_UnknownPatient_NotFound(t *testing.T) {
	store := newTestStore(t)
	policy := clinic.NewBillingPolicy(store)

	_, err := policy.ShouldChargeConsultationFee(context.Background(), "missing", dec("50"))
	assert.ErrorIs(t, err, clinic.ErrNotFound)
}

// =============================================================================
// FEE RECORD TESTS
// =============================================================================

func TestBilling_ConsultationFeeRecord_Shape(t *testing.T) {
	// GIVEN: A consultation whose fee survived the waiver
	// WHEN: Building the fee payment record
	// THEN: Kind consultation-fee, status pending, amount equal to the fee

	c := clinic.Consultation{
		ID:              "con-1",
		PatientID:       "pat-1",
		ConsultationFee: dec("50"),
	}
	at := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	rec := clinic.ConsultationFeeRecord(c, drGomez, at)
	assert.Equal(t, clinic.KindConsultationFee, rec.Kind)
	assert.Equal(t, clinic.StatusPending, rec.Status)
	assert.True(t, rec.Amount.Equal(dec("50")))
	assert.Equal(t, clinic.ConsultationID("con-1"), rec.ConsultationID)
	assert.Equal(t, clinic.PatientID("pat-1"), rec.PatientID)
	assert.Equal(t, at, rec.Timestamp)
}

// =============================================================================
// DECISION/WRITE RACE
// =============================================================================

func TestBilling_DecisionWriteRace_FeeStillRecorded(t *testing.T) {
	// GIVEN: The policy decided to charge while the patient was debt-free
	// WHEN: New treatment debt appears before the fee record is written
	// THEN: The fee write proceeds anyway; the decision is not re-evaluated

	store := newTestStore(t)
	ctx := context.Background()
	seedPatient(t, store, "pat-1")
	c := seedConsultation(t, store, "con-1", "pat-1", "0", "50")

	policy := clinic.NewBillingPolicy(store)
	charge, err := policy.ShouldChargeConsultationFee(ctx, "pat-1", c.ConsultationFee)
	require.NoError(t, err)
	require.True(t, charge)

	// Debt lands between the decision and the write.
	seedTreatment(t, store, "tr-1", "pat-1", "300", clinic.TreatmentInProgress)

	ledger := clinic.NewLedger(store)
	rec, err := ledger.Create(ctx, clinic.ConsultationFeeRecord(c, frontDesk, time.Now().UTC()), frontDesk)
	require.NoError(t, err, "stale decision still applies")
	assert.Equal(t, clinic.StatusPending, rec.Status)
}
