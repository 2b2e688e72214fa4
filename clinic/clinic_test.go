package clinic_test

// =============================================================================
// SHARED TEST SETUP
// =============================================================================

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
	memstore "github.com/Nikise23/odontologia-app-sub001/clinic/store"
)

var (
	frontDesk = clinic.Actor{ID: "user-recep", Role: clinic.RoleAssistant}
	drGomez   = clinic.Actor{ID: "user-gomez", Role: clinic.RoleDoctor}
	admin     = clinic.Actor{ID: "user-admin", Role: clinic.RoleAdmin}
)

func newTestStore(t *testing.T) *memstore.Memory {
	t.Helper()
	return memstore.NewMemory()
}

func dec(s string) decimal.Decimal {
	return clinic.MustDecimal(s)
}

func seedPatient(t *testing.T, s clinic.Store, id string) clinic.Patient {
	t.Helper()
	p := clinic.Patient{
		ID:        clinic.PatientID(id),
		Name:      "Patient " + id,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SavePatient(context.Background(), p))
	return p
}

func seedTreatment(t *testing.T, s clinic.Store, id, patientID, cost string, status clinic.TreatmentStatus) clinic.Treatment {
	t.Helper()
	tr := clinic.Treatment{
		ID:        clinic.TreatmentID(id),
		PatientID: clinic.PatientID(patientID),
		Concept:   "endodontics",
		Cost:      dec(cost),
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveTreatment(context.Background(), tr))
	return tr
}

func seedConsultation(t *testing.T, s clinic.Store, id, patientID, costTotal, fee string) clinic.Consultation {
	t.Helper()
	c := clinic.Consultation{
		ID:              clinic.ConsultationID(id),
		PatientID:       clinic.PatientID(patientID),
		Reason:          "checkup",
		CostTotal:       dec(costTotal),
		ConsultationFee: dec(fee),
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.SaveConsultation(context.Background(), c))
	return c
}

func treatmentPayment(patientID, treatmentID, amount string, kind clinic.PaymentKind) clinic.PaymentRecord {
	return clinic.PaymentRecord{
		PatientID:   clinic.PatientID(patientID),
		TreatmentID: clinic.TreatmentID(treatmentID),
		Kind:        kind,
		Amount:      dec(amount),
	}
}
