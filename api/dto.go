/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Patients:
    PatientDTO, CreatePatientRequest

  Treatments:
    TreatmentDTO, CreateTreatmentRequest

  Consultations:
    ConsultationDTO, CreateConsultationRequest (carries the fee decision)

  Payments:
    PaymentDTO, CreatePaymentRequest, AmendPaymentRequest

  Appointments:
    AppointmentDTO, CreateAppointmentRequest, UpdateAppointmentRequest

  Audit:
    AuditEntryDTO (before/after snapshots as nested PaymentDTOs)

  Balance:
    BalanceDTO

AMOUNTS:
  Monetary fields travel as decimal strings ("150.00"), never floats.
  Handlers parse them with shopspring/decimal.

VALIDATION:
  Validation is done in handlers and domain logic, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - clinic/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
)

// =============================================================================
// PATIENTS
// =============================================================================

// PatientDTO represents a patient in API responses.
type PatientDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreatePatientRequest is the request to register a patient.
type CreatePatientRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func toPatientDTO(p clinic.Patient) PatientDTO {
	return PatientDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Phone:     p.Phone,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// TREATMENTS
// =============================================================================

// TreatmentDTO represents a treatment plan in API responses.
type TreatmentDTO struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	Concept   string `json:"concept,omitempty"`
	Cost      string `json:"cost"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateTreatmentRequest is the request to open a treatment plan.
type CreateTreatmentRequest struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	Concept   string `json:"concept"`
	Cost      string `json:"cost"`
	Status    string `json:"status"`
}

// UpdateTreatmentRequest changes the mutable fields of a treatment.
type UpdateTreatmentRequest struct {
	Concept *string `json:"concept,omitempty"`
	Cost    *string `json:"cost,omitempty"`
	Status  *string `json:"status,omitempty"`
}

func toTreatmentDTO(t clinic.Treatment) TreatmentDTO {
	return TreatmentDTO{
		ID:        string(t.ID),
		PatientID: string(t.PatientID),
		Concept:   t.Concept,
		Cost:      t.Cost.String(),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// CONSULTATIONS
// =============================================================================

// ConsultationDTO represents a consultation in API responses. FeeCharged
// and FeePaymentID report the billing-policy outcome at creation time.
type ConsultationDTO struct {
	ID              string `json:"id"`
	PatientID       string `json:"patient_id"`
	Reason          string `json:"reason,omitempty"`
	CostTotal       string `json:"cost_total"`
	ConsultationFee string `json:"consultation_fee"`
	FeeCharged      bool   `json:"fee_charged,omitempty"`
	FeePaymentID    string `json:"fee_payment_id,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// CreateConsultationRequest is the request to record a consultation.
// ConsultationFee is the fee the clinic WOULD charge; whether it is
// actually charged is decided server-side.
type CreateConsultationRequest struct {
	ID              string `json:"id"`
	PatientID       string `json:"patient_id"`
	Reason          string `json:"reason"`
	CostTotal       string `json:"cost_total"`
	ConsultationFee string `json:"consultation_fee"`
}

func toConsultationDTO(c clinic.Consultation) ConsultationDTO {
	return ConsultationDTO{
		ID:              string(c.ID),
		PatientID:       string(c.PatientID),
		Reason:          c.Reason,
		CostTotal:       c.CostTotal.String(),
		ConsultationFee: c.ConsultationFee.String(),
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents a payment record in API responses.
type PaymentDTO struct {
	ID             string `json:"id"`
	PatientID      string `json:"patient_id"`
	ConsultationID string `json:"consultation_id,omitempty"`
	TreatmentID    string `json:"treatment_id,omitempty"`
	Timestamp      string `json:"timestamp"`
	Kind           string `json:"kind"`
	Concept        string `json:"concept,omitempty"`
	Amount         string `json:"amount"`
	Status         string `json:"status"`
	Method         string `json:"method,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
	CreatedRole    string `json:"created_role,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	ModifiedBy     string `json:"modified_by,omitempty"`
	ModifiedAt     string `json:"modified_at,omitempty"`
}

// CreatePaymentRequest is the request to record a payment.
type CreatePaymentRequest struct {
	PatientID      string `json:"patient_id"`
	ConsultationID string `json:"consultation_id"`
	TreatmentID    string `json:"treatment_id"`
	Kind           string `json:"kind"`
	Concept        string `json:"concept"`
	Amount         string `json:"amount"`
	Method         string `json:"method"`
	Notes          string `json:"notes"`
}

// AmendPaymentRequest changes the mutable fields of a payment. Only the
// fields present in the JSON body are applied.
type AmendPaymentRequest struct {
	Concept *string `json:"concept,omitempty"`
	Amount  *string `json:"amount,omitempty"`
	Status  *string `json:"status,omitempty"`
	Method  *string `json:"method,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

// DeletePaymentRequest carries the operator-supplied deletion reason.
type DeletePaymentRequest struct {
	Reason string `json:"reason"`
}

func toPaymentDTO(p clinic.PaymentRecord) PaymentDTO {
	dto := PaymentDTO{
		ID:             string(p.ID),
		PatientID:      string(p.PatientID),
		ConsultationID: string(p.ConsultationID),
		TreatmentID:    string(p.TreatmentID),
		Timestamp:      p.Timestamp.Format(time.RFC3339),
		Kind:           string(p.Kind),
		Concept:        p.Concept,
		Amount:         p.Amount.String(),
		Status:         string(p.Status),
		Method:         p.Method,
		Notes:          p.Notes,
		CreatedBy:      p.CreatedBy,
		CreatedRole:    string(p.CreatedRole),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		ModifiedBy:     p.ModifiedBy,
	}
	if !p.ModifiedAt.IsZero() {
		dto.ModifiedAt = p.ModifiedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO reports the derived outstanding balance of a treatment or
// consultation at read time.
type BalanceDTO struct {
	OwnerKind   string `json:"owner_kind"`
	OwnerID     string `json:"owner_id"`
	Outstanding string `json:"outstanding"`
	FullyPaid   bool   `json:"fully_paid"`
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

// AppointmentDTO represents a booked slot in API responses.
type AppointmentDTO struct {
	ID              string `json:"id"`
	PatientID       string `json:"patient_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	ConsultationID  string `json:"consultation_id,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// CreateAppointmentRequest is the request to book a slot.
type CreateAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// UpdateAppointmentRequest changes a booking. Only present fields apply.
type UpdateAppointmentRequest struct {
	Date            *string `json:"date,omitempty"`
	Time            *string `json:"time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Status          *string `json:"status,omitempty"`
	ConsultationID  *string `json:"consultation_id,omitempty"`
}

func toAppointmentDTO(a clinic.Appointment) AppointmentDTO {
	return AppointmentDTO{
		ID:              string(a.ID),
		PatientID:       string(a.PatientID),
		Date:            a.Date,
		Time:            a.Time,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		ConsultationID:  string(a.ConsultationID),
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditEntryDTO represents one entry of a payment's audit history.
type AuditEntryDTO struct {
	ID        string      `json:"id"`
	PaymentID string      `json:"payment_id"`
	Action    string      `json:"action"`
	ActorID   string      `json:"actor_id,omitempty"`
	ActorRole string      `json:"actor_role,omitempty"`
	Before    *PaymentDTO `json:"before,omitempty"`
	After     *PaymentDTO `json:"after,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func toAuditEntryDTO(e clinic.AuditEntry) AuditEntryDTO {
	dto := AuditEntryDTO{
		ID:        string(e.ID),
		PaymentID: string(e.PaymentID),
		Action:    string(e.Action),
		ActorID:   e.ActorID,
		ActorRole: string(e.ActorRole),
		Reason:    e.Reason,
		Timestamp: e.Timestamp.Format(time.RFC3339),
	}
	if e.Before != nil {
		b := toPaymentDTO(*e.Before)
		dto.Before = &b
	}
	if e.After != nil {
		a := toPaymentDTO(*e.After)
		dto.After = &a
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error payload. Details carries numeric
// context (requested vs outstanding, conflicting slot) when available.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
