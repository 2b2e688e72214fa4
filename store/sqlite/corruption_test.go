package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
)

// White-box: damages stored decimal columns directly to verify the read
// path refuses them instead of decoding them as zero.

func TestCorruptPaymentAmount_FailsRead(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	require.NoError(t, s.InsertPayment(ctx, clinic.PaymentRecord{
		ID:        "pay-1",
		PatientID: "pat-1",
		Kind:      clinic.KindPartial,
		Amount:    clinic.MustDecimal("40"),
		Status:    clinic.StatusPending,
		Timestamp: time.Now().UTC(),
		CreatedAt: time.Now().UTC(),
	}))

	_, err = s.db.ExecContext(ctx, `UPDATE payments SET amount = 'not-a-number' WHERE id = 'pay-1'`)
	require.NoError(t, err)

	got, err := s.GetPayment(ctx, "pay-1")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "corrupt amount")
}

func TestCorruptTreatmentCost_FailsRead(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	require.NoError(t, s.SaveTreatment(ctx, clinic.Treatment{
		ID:        "tr-1",
		PatientID: "pat-1",
		Cost:      clinic.MustDecimal("100"),
		Status:    clinic.TreatmentInProgress,
		CreatedAt: time.Now().UTC(),
	}))

	_, err = s.db.ExecContext(ctx, `UPDATE treatments SET cost = '' WHERE id = 'tr-1'`)
	require.NoError(t, err)

	got, err := s.GetTreatment(ctx, "tr-1")
	require.Error(t, err)
	assert.Nil(t, got)
}
