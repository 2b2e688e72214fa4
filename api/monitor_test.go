package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikise23/odontologia-app-sub001/api"
	"github.com/Nikise23/odontologia-app-sub001/clinic"
	memstore "github.com/Nikise23/odontologia-app-sub001/clinic/store"
)

func TestIntegrityMonitor_CleanLedgerYieldsNoFindings(t *testing.T) {
	srv, store := newTestServer(t)
	seedPatient(t, store, "pat-1")
	seedTreatment(t, store, "tr-1", "pat-1", "100", clinic.TreatmentInProgress)

	var payment api.PaymentDTO
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/payments", api.CreatePaymentRequest{
		PatientID: "pat-1", TreatmentID: "tr-1", Kind: "partial", Amount: "40",
	}, &doctor, &payment)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var report struct {
		Findings []api.Finding `json:"findings"`
		Clean    bool          `json:"clean"`
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/integrity", nil, nil, &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, report.Clean)
	assert.Empty(t, report.Findings)
}

func TestIntegrityMonitor_FlagsOutOfBandEdits(t *testing.T) {
	// GIVEN: A payment inserted behind the ledger's back, pointing at a
	//        treatment that does not exist and carrying no audit entry
	// WHEN: Sweeping
	// THEN: Both the missing owner and the missing creation entry surface

	store := memstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.SavePatient(ctx, clinic.Patient{
		ID: "pat-1", Name: "Pat", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.InsertPayment(ctx, clinic.PaymentRecord{
		ID:          "pay-ghost",
		PatientID:   "pat-1",
		TreatmentID: "tr-missing",
		Kind:        clinic.KindPartial,
		Amount:      clinic.MustDecimal("10"),
		Status:      clinic.StatusPending,
		Timestamp:   time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}))

	monitor := api.NewIntegrityMonitor(store, zerolog.Nop())
	findings := monitor.RunNow(ctx)

	kinds := make(map[string]bool)
	for _, f := range findings {
		kinds[f.Kind] = true
		assert.Equal(t, "pay-ghost", f.SubjectID)
	}
	assert.True(t, kinds["missing-owner"])
	assert.True(t, kinds["missing-created-audit"])
}

func TestIntegrityMonitor_FlagsOverpaidTreatment(t *testing.T) {
	store := memstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.SavePatient(ctx, clinic.Patient{
		ID: "pat-1", Name: "Pat", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.SaveTreatment(ctx, clinic.Treatment{
		ID: "tr-1", PatientID: "pat-1",
		Cost: clinic.MustDecimal("50"), Status: clinic.TreatmentInProgress,
		CreatedAt: time.Now().UTC(),
	}))
	// Cost was lowered after this payment was taken.
	require.NoError(t, store.InsertPayment(ctx, clinic.PaymentRecord{
		ID: "pay-1", PatientID: "pat-1", TreatmentID: "tr-1",
		Kind: clinic.KindPartial, Amount: clinic.MustDecimal("80"),
		Status: clinic.StatusPaid, Timestamp: time.Now().UTC(), CreatedAt: time.Now().UTC(),
	}))

	monitor := api.NewIntegrityMonitor(store, zerolog.Nop())
	findings := monitor.RunNow(ctx)

	var overpaid bool
	for _, f := range findings {
		if f.Kind == "overpaid-treatment" {
			overpaid = true
			assert.Equal(t, "tr-1", f.SubjectID)
		}
	}
	assert.True(t, overpaid)
}
