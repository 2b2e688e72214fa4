package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
	"github.com/Nikise23/odontologia-app-sub001/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testPayment(id string) clinic.PaymentRecord {
	return clinic.PaymentRecord{
		ID:          clinic.PaymentID(id),
		PatientID:   "pat-1",
		TreatmentID: "tr-1",
		Timestamp:   time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		Kind:        clinic.KindPartial,
		Concept:     "installment",
		Amount:      clinic.MustDecimal("40.50"),
		Status:      clinic.StatusPending,
		Method:      "cash",
		CreatedBy:   "user-recep",
		CreatedRole: clinic.RoleAssistant,
		CreatedAt:   time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// ROUNDTRIP TESTS
// =============================================================================

func TestSQLite_Payment_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := testPayment("pay-1")
	require.NoError(t, store.InsertPayment(ctx, want))

	got, err := store.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.PatientID, got.PatientID)
	assert.Equal(t, want.TreatmentID, got.TreatmentID)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, got.Amount.Equal(clinic.MustDecimal("40.50")), "decimal survives the TEXT column")
	assert.True(t, got.Timestamp.Equal(want.Timestamp))
	assert.True(t, got.ModifiedAt.IsZero(), "null modified_at maps to zero time")
}

func TestSQLite_Payment_MissingIsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetPayment(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_PaymentsByTreatment_OrderedByTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	later := testPayment("pay-2")
	later.Timestamp = later.Timestamp.Add(time.Hour)
	require.NoError(t, store.InsertPayment(ctx, later))
	require.NoError(t, store.InsertPayment(ctx, testPayment("pay-1")))

	got, err := store.PaymentsByTreatment(ctx, "tr-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, clinic.PaymentID("pay-1"), got[0].ID)
	assert.Equal(t, clinic.PaymentID("pay-2"), got[1].ID)
}

func TestSQLite_Audit_SnapshotsRoundtrip(t *testing.T) {
	// Audit snapshots are stored as JSON; amounts and owners must survive.
	store := newTestStore(t)
	ctx := context.Background()

	before := testPayment("pay-1")
	after := before
	after.Amount = clinic.MustDecimal("25")

	entry := clinic.AuditEntry{
		ID:        "audit-1",
		PaymentID: "pay-1",
		Action:    clinic.AuditModified,
		ActorID:   "user-admin",
		ActorRole: clinic.RoleAdmin,
		Before:    &before,
		After:     &after,
		Timestamp: time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.AppendAudit(ctx, entry))

	got, err := store.AuditByPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Before)
	require.NotNil(t, got[0].After)
	assert.True(t, got[0].Before.Amount.Equal(clinic.MustDecimal("40.50")))
	assert.True(t, got[0].After.Amount.Equal(clinic.MustDecimal("25")))
	assert.Equal(t, clinic.RoleAdmin, got[0].ActorRole)
}

func TestSQLite_Audit_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"audit-1", "audit-2", "audit-3"} {
		require.NoError(t, store.AppendAudit(ctx, clinic.AuditEntry{
			ID:        id,
			PaymentID: "pay-1",
			Action:    clinic.AuditModified,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := store.AuditByPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "audit-3", got[0].ID)
}

func TestSQLite_AppointmentsInWindow_InclusiveBounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, a := range []clinic.Appointment{
		{ID: "ap-1", PatientID: "pat-1", Date: "2026-09-14", Time: "10:00", DurationMinutes: 30, Status: clinic.ApptScheduled},
		{ID: "ap-2", PatientID: "pat-1", Date: "2026-09-14", Time: "10:30", DurationMinutes: 30, Status: clinic.ApptScheduled},
		{ID: "ap-3", PatientID: "pat-1", Date: "2026-09-14", Time: "10:31", DurationMinutes: 30, Status: clinic.ApptScheduled},
	} {
		require.NoError(t, store.InsertAppointment(ctx, a))
	}

	from, err := clinic.ParseSlotInstant("2026-09-14", "10:00")
	require.NoError(t, err)
	to, err := clinic.ParseSlotInstant("2026-09-14", "10:30")
	require.NoError(t, err)

	got, err := store.AppointmentsInWindow(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, clinic.AppointmentID("ap-1"), got[0].ID)
	assert.Equal(t, clinic.AppointmentID("ap-2"), got[1].ID)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s clinic.Store) error {
		if err := s.InsertPayment(ctx, testPayment("pay-1")); err != nil {
			return err
		}
		if err := s.AppendAudit(ctx, clinic.AuditEntry{ID: "audit-1", PaymentID: "pay-1", Action: clinic.AuditCreated, Timestamp: time.Now().UTC()}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	payment, err := store.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Nil(t, payment, "payment rolled back")

	entries, err := store.AuditByPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Empty(t, entries, "audit entry rolled back with it")
}

func TestSQLite_WithTx_CommitsPairedWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s clinic.Store) error {
		if err := s.InsertPayment(ctx, testPayment("pay-1")); err != nil {
			return err
		}
		return s.AppendAudit(ctx, clinic.AuditEntry{ID: "audit-1", PaymentID: "pay-1", Action: clinic.AuditCreated, Timestamp: time.Now().UTC()})
	})
	require.NoError(t, err)

	payment, err := store.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.NotNil(t, payment)

	entries, err := store.AuditByPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestSQLite_Treatment_UpsertAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tr := clinic.Treatment{
		ID: "tr-1", PatientID: "pat-1", Concept: "orthodontics",
		Cost: clinic.MustDecimal("1200"), Status: clinic.TreatmentScheduled,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveTreatment(ctx, tr))

	tr.Status = clinic.TreatmentInProgress
	require.NoError(t, store.SaveTreatment(ctx, tr), "save is an upsert")

	got, err := store.GetTreatment(ctx, "tr-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, clinic.TreatmentInProgress, got.Status)
	assert.True(t, got.Cost.Equal(clinic.MustDecimal("1200")))

	byPatient, err := store.TreatmentsByPatient(ctx, "pat-1")
	require.NoError(t, err)
	assert.Len(t, byPatient, 1)
}

func TestSQLite_ListPatients_SortedByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePatient(ctx, clinic.Patient{ID: "pat-2", Name: "Zoe", CreatedAt: time.Now().UTC()}))
	require.NoError(t, store.SavePatient(ctx, clinic.Patient{ID: "pat-1", Name: "Ana", CreatedAt: time.Now().UTC()}))

	got, err := store.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ana", got[0].Name)
	assert.Equal(t, "Zoe", got[1].Name)
}

func TestSQLite_InsertPayment_RejectsDuplicateID(t *testing.T) {
	// A retried insert under the same id must not double-apply.
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertPayment(ctx, testPayment("pay-1")))

	err := store.InsertPayment(ctx, testPayment("pay-1"))
	assert.ErrorIs(t, err, clinic.ErrDuplicateID)
}

func TestSQLite_InsertAppointment_RejectsDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	appt := clinic.Appointment{
		ID: "ap-1", PatientID: "pat-1",
		Date: "2026-09-14", Time: "10:00", DurationMinutes: 30,
		Status: clinic.ApptScheduled, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertAppointment(ctx, appt))

	err := store.InsertAppointment(ctx, appt)
	assert.ErrorIs(t, err, clinic.ErrDuplicateID)
}
