/*
store.go - Persistence interface for the clinic core

PURPOSE:
  Defines the boundary between domain logic and the database. Two
  implementations exist: store/sqlite (durable) and clinic/store (transient
  in-memory, for tests and degraded mode). Which one runs is a configuration
  choice, never ambient global state.

KEY INTERFACES:
  Store:   payment, audit, appointment and catalog persistence
  TxStore: Store plus WithTx for atomic multi-write operations

ATOMICITY CONTRACT:
  Every ledger mutation and its audit entry MUST be committed together.
  Callers wrap the pair in WithTx; if either write fails, neither is
  durable. The same applies to the slot-conflict check plus the appointment
  insert: WithTx serializes them against concurrent bookings so two requests
  cannot both observe "no conflict" and both commit.

AUDIT APPEND-ONLY:
  AppendAudit is the only write on the audit collection. There is no update
  or delete for audit entries. Ever.

SEE ALSO:
  - store/sqlite/sqlite.go: durable implementation
  - clinic/store/memory.go: in-memory implementation
*/
package clinic

import (
	"context"
	"time"
)

// Store handles persistence for the ledger subsystem and the thin catalog
// records it consumes (patients, treatments, consultations).
type Store interface {
	// Payments. UpdatePayment and RemovePayment exist only for the Ledger;
	// both must run inside WithTx paired with an audit append. Inserts
	// reject an existing id with ErrDuplicateID on every backend.
	InsertPayment(ctx context.Context, p PaymentRecord) error
	GetPayment(ctx context.Context, id PaymentID) (*PaymentRecord, error)
	UpdatePayment(ctx context.Context, p PaymentRecord) error
	RemovePayment(ctx context.Context, id PaymentID) error
	PaymentsByPatient(ctx context.Context, id PatientID) ([]PaymentRecord, error)
	PaymentsByTreatment(ctx context.Context, id TreatmentID) ([]PaymentRecord, error)
	PaymentsByConsultation(ctx context.Context, id ConsultationID) ([]PaymentRecord, error)

	// Audit trail. Append-only; AuditByPayment returns entries newest first.
	AppendAudit(ctx context.Context, e AuditEntry) error
	AuditByPayment(ctx context.Context, id PaymentID) ([]AuditEntry, error)

	// Appointments. AppointmentsInWindow returns every appointment whose
	// start instant lies in [from, to] inclusive, regardless of status;
	// the Scheduler filters by status so the exemption rule lives in one
	// place.
	InsertAppointment(ctx context.Context, a Appointment) error
	GetAppointment(ctx context.Context, id AppointmentID) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment) error
	AppointmentsInWindow(ctx context.Context, from, to time.Time) ([]Appointment, error)
	AppointmentsByPatient(ctx context.Context, id PatientID) ([]Appointment, error)

	// Catalog records owned by the CRUD subsystem; the ledger core reads
	// them for existence and cost lookups only.
	SavePatient(ctx context.Context, p Patient) error
	GetPatient(ctx context.Context, id PatientID) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	SaveTreatment(ctx context.Context, t Treatment) error
	GetTreatment(ctx context.Context, id TreatmentID) (*Treatment, error)
	TreatmentsByPatient(ctx context.Context, id PatientID) ([]Treatment, error)
	SaveConsultation(ctx context.Context, c Consultation) error
	GetConsultation(ctx context.Context, id ConsultationID) (*Consultation, error)
}

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction rolls back; otherwise it commits. Implementations serialize
// WithTx calls against each other, which is what makes check-then-insert
// operations (slot booking, balance-validated payment creation) safe under
// concurrent requests.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
