/*
handlers.go - HTTP API handlers for the clinic ledger system

PURPOSE:
  Exposes the payment ledger, billing policy, balance engine and slot
  scheduler via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Patients:
    GET    /api/patients                    List patients
    GET    /api/patients/{id}               Get patient
    POST   /api/patients                    Register patient
    GET    /api/patients/{id}/payments      Payment history
    GET    /api/patients/{id}/treatments    Treatment plans
    GET    /api/patients/{id}/appointments  Bookings

  Treatments:
    POST   /api/treatments                  Open treatment plan
    GET    /api/treatments/{id}             Get treatment
    PUT    /api/treatments/{id}             Update treatment
    GET    /api/treatments/{id}/balance     Derived outstanding balance

  Consultations:
    POST   /api/consultations               Record consultation (fee decision)
    GET    /api/consultations/{id}          Get consultation
    GET    /api/consultations/{id}/balance  Derived outstanding balance

  Payments:
    POST   /api/payments                    Record payment (balance-validated)
    GET    /api/payments/{id}               Get payment
    PUT    /api/payments/{id}               Amend payment (privileged, 24h)
    DELETE /api/payments/{id}               Delete payment (audited)
    POST   /api/payments/{id}/paid          Mark paid (idempotent)
    GET    /api/payments/{id}/audit         Audit history, newest first

  Appointments:
    POST   /api/appointments                Book slot (conflict-checked)
    GET    /api/appointments/{id}           Get appointment
    PUT    /api/appointments/{id}           Update appointment
    GET    /api/appointments/conflict       Advisory slot check

ACTOR IDENTITY:
  Mutating endpoints read the acting user from X-Actor-Id and X-Actor-Role
  headers. The role gates privileged operations (payment amendment) and is
  recorded verbatim in the audit trail. An upstream gateway is expected to
  authenticate and set these headers; this service trusts them.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Actor role not permitted
  - 404: Resource not found
  - 409: Conflict (slot taken, stale amendment, cancelled payment)
  - 422: Balance rule violation (overpayment, inexact full payment)
  - 500: Internal errors
  Balance and slot errors carry their numeric context in details so the
  front desk can relay exact amounts and times.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - clinic/ledger.go: The mutation rules enforced here
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     clinic.TxStore
	Ledger    *clinic.Ledger
	Scheduler *clinic.Scheduler
	Engine    *clinic.BalanceEngine
	Billing   *clinic.BillingPolicy
	Monitor   *IntegrityMonitor

	Log zerolog.Logger
}

// NewHandler creates a new handler wired to the given store.
func NewHandler(store clinic.TxStore, log zerolog.Logger) *Handler {
	return &Handler{
		Store:     store,
		Ledger:    clinic.NewLedger(store),
		Scheduler: clinic.NewScheduler(store),
		Engine:    clinic.NewBalanceEngine(store),
		Billing:   clinic.NewBillingPolicy(store),
		Monitor:   NewIntegrityMonitor(store, log),
		Log:       log,
	}
}

// actorFrom extracts the acting user from request headers. Requests
// without headers act as the front-desk assistant, which cannot perform
// privileged operations.
func actorFrom(r *http.Request) clinic.Actor {
	actor := clinic.Actor{
		ID:   r.Header.Get("X-Actor-Id"),
		Role: clinic.Role(r.Header.Get("X-Actor-Role")),
	}
	if actor.ID == "" {
		actor.ID = "anonymous"
	}
	if actor.Role == "" {
		actor.Role = clinic.RoleAssistant
	}
	return actor
}

// =============================================================================
// PATIENT HANDLERS
// =============================================================================

// CreatePatient registers a patient.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	patient := clinic.Patient{
		ID:        clinic.PatientID(req.ID),
		Name:      req.Name,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SavePatient(r.Context(), patient); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save patient", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientDTO(patient))
}

// ListPatients returns all registered patients.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.Store.ListPatients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list patients", err)
		return
	}

	dtos := make([]PatientDTO, len(patients))
	for i, p := range patients {
		dtos[i] = toPatientDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPatient returns a single patient.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := clinic.PatientID(chi.URLParam(r, "id"))

	patient, err := h.Store.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get patient", err)
		return
	}
	if patient == nil {
		writeError(w, http.StatusNotFound, "Patient not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPatientDTO(*patient))
}

// ListPatientPayments returns the payment history of a patient.
func (h *Handler) ListPatientPayments(w http.ResponseWriter, r *http.Request) {
	id := clinic.PatientID(chi.URLParam(r, "id"))

	payments, err := h.Ledger.ByPatient(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPatientTreatments returns a patient's treatment plans.
func (h *Handler) ListPatientTreatments(w http.ResponseWriter, r *http.Request) {
	id := clinic.PatientID(chi.URLParam(r, "id"))

	treatments, err := h.Store.TreatmentsByPatient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list treatments", err)
		return
	}

	dtos := make([]TreatmentDTO, len(treatments))
	for i, t := range treatments {
		dtos[i] = toTreatmentDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPatientAppointments returns a patient's bookings.
func (h *Handler) ListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	id := clinic.PatientID(chi.URLParam(r, "id"))

	appts, err := h.Scheduler.ByPatient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list appointments", err)
		return
	}

	dtos := make([]AppointmentDTO, len(appts))
	for i, a := range appts {
		dtos[i] = toAppointmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TREATMENT HANDLERS
// =============================================================================

// CreateTreatment opens a treatment plan.
func (h *Handler) CreateTreatment(w http.ResponseWriter, r *http.Request) {
	var req CreateTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "patient_id is required", nil)
		return
	}
	cost, err := decimal.NewFromString(req.Cost)
	if err != nil || cost.IsNegative() {
		writeError(w, http.StatusBadRequest, "cost must be a non-negative decimal", err)
		return
	}

	status := clinic.TreatmentStatus(req.Status)
	if status == "" {
		status = clinic.TreatmentScheduled
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	patient, err := h.Store.GetPatient(r.Context(), clinic.PatientID(req.PatientID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get patient", err)
		return
	}
	if patient == nil {
		writeError(w, http.StatusNotFound, "Patient not found", nil)
		return
	}

	treatment := clinic.Treatment{
		ID:        clinic.TreatmentID(req.ID),
		PatientID: clinic.PatientID(req.PatientID),
		Concept:   req.Concept,
		Cost:      cost,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveTreatment(r.Context(), treatment); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save treatment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTreatmentDTO(treatment))
}

// GetTreatment returns a single treatment.
func (h *Handler) GetTreatment(w http.ResponseWriter, r *http.Request) {
	id := clinic.TreatmentID(chi.URLParam(r, "id"))

	treatment, err := h.Store.GetTreatment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get treatment", err)
		return
	}
	if treatment == nil {
		writeError(w, http.StatusNotFound, "Treatment not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTreatmentDTO(*treatment))
}

// UpdateTreatment changes concept, cost or status of a treatment.
func (h *Handler) UpdateTreatment(w http.ResponseWriter, r *http.Request) {
	id := clinic.TreatmentID(chi.URLParam(r, "id"))

	var req UpdateTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	treatment, err := h.Store.GetTreatment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get treatment", err)
		return
	}
	if treatment == nil {
		writeError(w, http.StatusNotFound, "Treatment not found", nil)
		return
	}

	if req.Concept != nil {
		treatment.Concept = *req.Concept
	}
	if req.Cost != nil {
		cost, err := decimal.NewFromString(*req.Cost)
		if err != nil || cost.IsNegative() {
			writeError(w, http.StatusBadRequest, "cost must be a non-negative decimal", err)
			return
		}
		treatment.Cost = cost
	}
	if req.Status != nil {
		treatment.Status = clinic.TreatmentStatus(*req.Status)
	}

	if err := h.Store.SaveTreatment(r.Context(), *treatment); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save treatment", err)
		return
	}
	writeJSON(w, http.StatusOK, toTreatmentDTO(*treatment))
}

// GetTreatmentBalance returns the derived outstanding balance.
func (h *Handler) GetTreatmentBalance(w http.ResponseWriter, r *http.Request) {
	id := clinic.TreatmentID(chi.URLParam(r, "id"))

	outstanding, err := h.Engine.OutstandingTreatment(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to calculate balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		OwnerKind:   string(clinic.OwnerTreatment),
		OwnerID:     string(id),
		Outstanding: outstanding.String(),
		FullyPaid:   outstanding.IsZero(),
	})
}

// =============================================================================
// CONSULTATION HANDLERS
// =============================================================================

// CreateConsultation records a consultation and applies the fee policy:
// the fee is waived while the patient carries debt on an open treatment,
// and a pending fee payment is written only when a positive fee survives
// the waiver.
func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(r)

	var req CreateConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "patient_id is required", nil)
		return
	}
	costTotal, err := decimal.NewFromString(orZero(req.CostTotal))
	if err != nil || costTotal.IsNegative() {
		writeError(w, http.StatusBadRequest, "cost_total must be a non-negative decimal", err)
		return
	}
	fee, err := decimal.NewFromString(orZero(req.ConsultationFee))
	if err != nil || fee.IsNegative() {
		writeError(w, http.StatusBadRequest, "consultation_fee must be a non-negative decimal", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	charge, err := h.Billing.ShouldChargeConsultationFee(ctx, clinic.PatientID(req.PatientID), fee)
	if err != nil {
		writeDomainError(w, "Failed to evaluate fee policy", err)
		return
	}

	consultation := clinic.Consultation{
		ID:              clinic.ConsultationID(req.ID),
		PatientID:       clinic.PatientID(req.PatientID),
		Reason:          req.Reason,
		CostTotal:       costTotal,
		ConsultationFee: decimal.Zero,
		CreatedAt:       time.Now().UTC(),
	}
	if charge {
		consultation.ConsultationFee = fee
	}
	if err := h.Store.SaveConsultation(ctx, consultation); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save consultation", err)
		return
	}

	dto := toConsultationDTO(consultation)
	dto.FeeCharged = charge

	if charge {
		feeRec := clinic.ConsultationFeeRecord(consultation, actor, time.Now().UTC())
		created, err := h.Ledger.Create(ctx, feeRec, actor)
		if err != nil {
			// The consultation stands; surface the ledger failure so the
			// fee can be re-recorded manually.
			h.Log.Error().Err(err).
				Str("consultation_id", req.ID).
				Msg("consultation saved but fee payment failed")
			writeDomainError(w, "Consultation saved but fee payment failed", err)
			return
		}
		dto.FeePaymentID = string(created.ID)
	}

	writeJSON(w, http.StatusCreated, dto)
}

// GetConsultation returns a single consultation.
func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id := clinic.ConsultationID(chi.URLParam(r, "id"))

	consultation, err := h.Store.GetConsultation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get consultation", err)
		return
	}
	if consultation == nil {
		writeError(w, http.StatusNotFound, "Consultation not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toConsultationDTO(*consultation))
}

// GetConsultationBalance returns the derived outstanding balance.
func (h *Handler) GetConsultationBalance(w http.ResponseWriter, r *http.Request) {
	id := clinic.ConsultationID(chi.URLParam(r, "id"))

	outstanding, err := h.Engine.OutstandingConsultation(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to calculate balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		OwnerKind:   string(clinic.OwnerConsultation),
		OwnerID:     string(id),
		Outstanding: outstanding.String(),
		FullyPaid:   outstanding.IsZero(),
	})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// CreatePayment records a payment. Amounts against a treatment are
// validated against the outstanding balance inside the write transaction.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(orZero(req.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a decimal", err)
		return
	}

	rec := clinic.PaymentRecord{
		PatientID:      clinic.PatientID(req.PatientID),
		ConsultationID: clinic.ConsultationID(req.ConsultationID),
		TreatmentID:    clinic.TreatmentID(req.TreatmentID),
		Kind:           clinic.PaymentKind(req.Kind),
		Concept:        req.Concept,
		Amount:         amount,
		Method:         req.Method,
		Notes:          req.Notes,
	}

	created, err := h.Ledger.Create(r.Context(), rec, actor)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*created))
}

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := clinic.PaymentID(chi.URLParam(r, "id"))

	payment, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*payment))
}

// AmendPayment modifies a payment. Privileged roles only, and only within
// the amendment window.
func (h *Handler) AmendPayment(w http.ResponseWriter, r *http.Request) {
	id := clinic.PaymentID(chi.URLParam(r, "id"))
	actor := actorFrom(r)

	var req AmendPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	change := clinic.Amendment{
		Concept: req.Concept,
		Method:  req.Method,
		Notes:   req.Notes,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "amount must be a decimal", err)
			return
		}
		change.Amount = &amount
	}
	if req.Status != nil {
		status := clinic.PaymentStatus(*req.Status)
		change.Status = &status
	}

	amended, err := h.Ledger.Amend(r.Context(), id, change, actor)
	if err != nil {
		writeDomainError(w, "Failed to amend payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*amended))
}

// DeletePayment removes a payment, leaving an audit snapshot behind. The
// reason may come from the JSON body or a query parameter.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := clinic.PaymentID(chi.URLParam(r, "id"))
	actor := actorFrom(r)

	reason := r.URL.Query().Get("reason")
	if reason == "" && r.Body != nil {
		var req DeletePaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			reason = req.Reason
		}
	}

	if err := h.Ledger.Delete(r.Context(), id, reason, actor); err != nil {
		writeDomainError(w, "Failed to delete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MarkPaymentPaid settles a pending payment. Repeat calls are no-ops.
func (h *Handler) MarkPaymentPaid(w http.ResponseWriter, r *http.Request) {
	id := clinic.PaymentID(chi.URLParam(r, "id"))
	actor := actorFrom(r)

	payment, err := h.Ledger.MarkPaid(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, "Failed to mark payment paid", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(*payment))
}

// GetPaymentAudit returns the audit history of a payment, newest first.
// History survives deletion of the payment itself.
func (h *Handler) GetPaymentAudit(w http.ResponseWriter, r *http.Request) {
	id := clinic.PaymentID(chi.URLParam(r, "id"))

	entries, err := h.Ledger.Audit().History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get audit history", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// APPOINTMENT HANDLERS
// =============================================================================

// CreateAppointment books a slot, rejecting bookings within thirty minutes
// of an existing active appointment.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	appt := clinic.Appointment{
		PatientID:       clinic.PatientID(req.PatientID),
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
	}

	booked, err := h.Scheduler.Book(r.Context(), appt)
	if err != nil {
		writeDomainError(w, "Failed to book appointment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentDTO(*booked))
}

// GetAppointment returns a single appointment.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := clinic.AppointmentID(chi.URLParam(r, "id"))

	appt, err := h.Scheduler.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDTO(*appt))
}

// UpdateAppointment reschedules or transitions an appointment.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id := clinic.AppointmentID(chi.URLParam(r, "id"))

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	change := clinic.AppointmentUpdate{
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
	}
	if req.Status != nil {
		status := clinic.AppointmentStatus(*req.Status)
		change.Status = &status
	}
	if req.ConsultationID != nil {
		cid := clinic.ConsultationID(*req.ConsultationID)
		change.ConsultationID = &cid
	}

	updated, err := h.Scheduler.Update(r.Context(), id, change)
	if err != nil {
		writeDomainError(w, "Failed to update appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDTO(*updated))
}

// CheckSlot is the advisory pre-check used by the booking UI. The booking
// itself re-validates, so a clear answer here is not a reservation.
func (h *Handler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	timeOfDay := r.URL.Query().Get("time")
	exclude := clinic.AppointmentID(r.URL.Query().Get("exclude"))

	err := h.Scheduler.CheckConflict(r.Context(), date, timeOfDay, exclude)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"available": true})
		return
	}
	var conflict *clinic.SlotConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusOK, map[string]any{
			"available":      false,
			"conflicting_id": string(conflict.ConflictingID),
			"existing":       conflict.Existing.Format(time.RFC3339),
		})
		return
	}
	writeDomainError(w, "Failed to check slot", err)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// IntegrityReport runs one synchronous integrity sweep and returns the
// findings. Sweeps are read-only, so any actor may request one.
func (h *Handler) IntegrityReport(w http.ResponseWriter, r *http.Request) {
	findings := h.Monitor.RunNow(r.Context())
	if findings == nil {
		findings = []Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"findings": findings,
		"clean":    len(findings) == 0,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses. Structured
// errors carry their numeric context (requested vs outstanding amounts,
// conflicting slot times) in their message, which lands in details.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case clinic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, clinic.ErrNotPermitted):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, clinic.ErrInsufficientBalance),
		errors.Is(err, clinic.ErrExactAmountRequired):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case errors.Is(err, clinic.ErrSlotConflict),
		errors.Is(err, clinic.ErrStalePayment),
		errors.Is(err, clinic.ErrCancelledPayment),
		errors.Is(err, clinic.ErrDuplicateID):
		writeError(w, http.StatusConflict, message, err)
	case clinic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
