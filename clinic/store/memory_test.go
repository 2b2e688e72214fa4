package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
	"github.com/Nikise23/odontologia-app-sub001/clinic/store"
)

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes a payment and then fails
	// WHEN: WithTx returns the error
	// THEN: The write is not visible afterwards

	m := store.NewMemory()
	ctx := context.Background()

	err := m.WithTx(ctx, func(s clinic.Store) error {
		if err := s.InsertPayment(ctx, clinic.PaymentRecord{ID: "pay-1", PatientID: "pat-1"}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := m.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	err := m.WithTx(ctx, func(s clinic.Store) error {
		return s.InsertPayment(ctx, clinic.PaymentRecord{ID: "pay-1", PatientID: "pat-1"})
	})
	require.NoError(t, err)

	got, err := m.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, clinic.PatientID("pat-1"), got.PatientID)
}

func TestMemory_AuditByPayment_NewestFirst(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a-1", "a-2", "a-3"} {
		require.NoError(t, m.AppendAudit(ctx, clinic.AuditEntry{
			ID:        id,
			PaymentID: "pay-1",
			Action:    clinic.AuditModified,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := m.AuditByPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a-3", entries[0].ID)
	assert.Equal(t, "a-1", entries[2].ID)
}

func TestMemory_AppointmentsInWindow_InclusiveBounds(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	for _, a := range []clinic.Appointment{
		{ID: "ap-1", PatientID: "pat-1", Date: "2026-09-14", Time: "09:30", DurationMinutes: 30, Status: clinic.ApptScheduled},
		{ID: "ap-2", PatientID: "pat-1", Date: "2026-09-14", Time: "10:00", DurationMinutes: 30, Status: clinic.ApptScheduled},
		{ID: "ap-3", PatientID: "pat-1", Date: "2026-09-14", Time: "10:31", DurationMinutes: 30, Status: clinic.ApptScheduled},
	} {
		require.NoError(t, m.InsertAppointment(ctx, a))
	}

	from, err := clinic.ParseSlotInstant("2026-09-14", "09:30")
	require.NoError(t, err)
	to, err := clinic.ParseSlotInstant("2026-09-14", "10:30")
	require.NoError(t, err)

	appts, err := m.AppointmentsInWindow(ctx, from, to)
	require.NoError(t, err)
	ids := make([]string, len(appts))
	for i, a := range appts {
		ids[i] = string(a.ID)
	}
	assert.ElementsMatch(t, []string{"ap-1", "ap-2"}, ids)
}

func TestMemory_InsertPayment_RejectsDuplicateID(t *testing.T) {
	// GIVEN: A stored payment
	// WHEN: Inserting another record under the same id
	// THEN: Rejected with ErrDuplicateID; the original is untouched

	m := store.NewMemory()
	ctx := context.Background()

	original := clinic.PaymentRecord{ID: "pay-1", PatientID: "pat-1", Concept: "first"}
	require.NoError(t, m.InsertPayment(ctx, original))

	err := m.InsertPayment(ctx, clinic.PaymentRecord{ID: "pay-1", PatientID: "pat-1", Concept: "second"})
	assert.ErrorIs(t, err, clinic.ErrDuplicateID)

	got, err := m.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Concept)
}

func TestMemory_InsertAppointment_RejectsDuplicateID(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	appt := clinic.Appointment{
		ID: "ap-1", PatientID: "pat-1",
		Date: "2026-09-14", Time: "10:00", DurationMinutes: 30,
		Status: clinic.ApptScheduled, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.InsertAppointment(ctx, appt))

	err := m.InsertAppointment(ctx, appt)
	assert.ErrorIs(t, err, clinic.ErrDuplicateID)
}
