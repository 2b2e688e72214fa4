/*
Package clinic contains the financial ledger and scheduling-consistency core
of the clinic backend.

PURPOSE:
  This package holds the domain types and algorithms that keep derived state
  (outstanding balances, billing decisions, audit history, slot occupancy)
  consistent with the authoritative payment log. The surrounding CRUD routes
  only parse requests and delegate here.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentRecord: one financial movement against a treatment or consultation
  - Owner: the Treatment or Consultation a payment is applied against
  - Appointment: a booked slot, subject to the 30-minute exclusivity rule
  - Actor: the identity+role performing a mutation (trusted as given)

DESIGN PRINCIPLES:
  1. Precision: all monetary amounts are decimal.Decimal, never float64
  2. Derived state is recomputed, never stored (no cached balance field)
  3. Foreign keys are plain id fields resolved through the Store, never
     embedded object graphs
  4. Every payment mutation is paired with an audit entry

SEE ALSO:
  - balance.go: outstanding-balance computation
  - ledger.go: payment lifecycle (create/amend/delete/markPaid)
  - schedule.go: appointment slot exclusivity
  - audit.go: immutable mutation trail
*/
package clinic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PatientID string
type TreatmentID string
type ConsultationID string
type PaymentID string
type AppointmentID string

// =============================================================================
// ACTOR - Identity performing a mutation
// =============================================================================

// Actor is the authenticated identity attached to a request. The subsystem
// trusts the id and role as given; authentication happens upstream.
type Actor struct {
	ID   string
	Role Role
}

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDoctor    Role = "doctor"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Privileged reports whether the actor may amend payment records.
func (a Actor) Privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleDoctor
}

// =============================================================================
// PAYMENT RECORD - One financial movement
// =============================================================================

type PaymentKind string

const (
	KindConsultationFee PaymentKind = "consultation-fee"
	KindTreatmentFee    PaymentKind = "treatment-fee"
	KindPartial         PaymentKind = "partial"
	KindFull            PaymentKind = "full"
)

func (k PaymentKind) Valid() bool {
	switch k {
	case KindConsultationFee, KindTreatmentFee, KindPartial, KindFull:
		return true
	}
	return false
}

// appliesToTreatment reports whether this kind settles treatment debt and
// must therefore be validated against the treatment's outstanding balance.
func (k PaymentKind) appliesToTreatment() bool {
	return k == KindTreatmentFee || k == KindPartial || k == KindFull
}

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusPaid      PaymentStatus = "paid"
	StatusCancelled PaymentStatus = "cancelled" // terminal: never re-enters an active state
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// PaymentRecord represents one financial movement. A record contributes to
// balances only while its status is not cancelled.
type PaymentRecord struct {
	ID             PaymentID
	PatientID      PatientID
	ConsultationID ConsultationID // optional owner
	TreatmentID    TreatmentID    // optional owner
	Timestamp      time.Time
	Kind           PaymentKind
	Concept        string
	Amount         decimal.Decimal // invariant: >= 0
	Status         PaymentStatus
	Method         string
	Notes          string

	CreatedBy   string
	CreatedRole Role
	CreatedAt   time.Time

	ModifiedBy string
	ModifiedAt time.Time
}

// Owner returns the owner this record is applied against. Treatment wins
// when both ids are set; a record with neither has no owner balance.
func (p PaymentRecord) Owner() (OwnerKind, string, bool) {
	if p.TreatmentID != "" {
		return OwnerTreatment, string(p.TreatmentID), true
	}
	if p.ConsultationID != "" {
		return OwnerConsultation, string(p.ConsultationID), true
	}
	return "", "", false
}

// =============================================================================
// OWNER - Treatment or Consultation a payment settles
// =============================================================================

type OwnerKind string

const (
	OwnerTreatment    OwnerKind = "treatment"
	OwnerConsultation OwnerKind = "consultation"
)

type TreatmentStatus string

const (
	TreatmentScheduled  TreatmentStatus = "scheduled"
	TreatmentInProgress TreatmentStatus = "in-progress"
	TreatmentCompleted  TreatmentStatus = "completed"
	TreatmentCancelled  TreatmentStatus = "cancelled"
)

// Open reports whether the treatment still participates in billing.
// Completed treatments remain billable until paid; cancelled ones do not.
func (s TreatmentStatus) Open() bool {
	switch s {
	case TreatmentScheduled, TreatmentInProgress, TreatmentCompleted:
		return true
	}
	return false
}

// Treatment is owned by the CRUD subsystem and consumed here read-only.
// Cost is an immutable input to the Balance Engine.
type Treatment struct {
	ID        TreatmentID
	PatientID PatientID
	Concept   string
	Cost      decimal.Decimal
	Status    TreatmentStatus
	CreatedAt time.Time
}

// Consultation is owned by the CRUD subsystem and consumed here read-only.
// Its total cost for balance purposes is CostTotal + ConsultationFee.
type Consultation struct {
	ID              ConsultationID
	PatientID       PatientID
	Reason          string
	CostTotal       decimal.Decimal
	ConsultationFee decimal.Decimal
	CreatedAt       time.Time
}

// TotalCost is the amount the Balance Engine measures payments against.
func (c Consultation) TotalCost() decimal.Decimal {
	return c.CostTotal.Add(c.ConsultationFee)
}

// Patient existence is all this subsystem needs from the patient record.
type Patient struct {
	ID        PatientID
	Name      string
	Phone     string
	CreatedAt time.Time
}

// =============================================================================
// APPOINTMENT - Booked slot
// =============================================================================

type AppointmentStatus string

const (
	ApptScheduled  AppointmentStatus = "scheduled"
	ApptConfirmed  AppointmentStatus = "confirmed"
	ApptInProgress AppointmentStatus = "in-progress"
	ApptCompleted  AppointmentStatus = "completed"
	ApptNoShow     AppointmentStatus = "no-show"
	ApptCancelled  AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case ApptScheduled, ApptConfirmed, ApptInProgress, ApptCompleted, ApptNoShow, ApptCancelled:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this status holds its slot.
// Cancelled and no-show appointments free the slot.
func (s AppointmentStatus) Occupies() bool {
	return s != ApptCancelled && s != ApptNoShow
}

// Appointment holds date and time-of-day as entered ("2006-01-02", "15:04");
// StartAt is the derived instant the Slot Scheduler compares against.
type Appointment struct {
	ID              AppointmentID
	PatientID       PatientID
	Date            string // YYYY-MM-DD
	Time            string // HH:MM
	DurationMinutes int
	Status          AppointmentStatus
	ConsultationID  ConsultationID // bound once attended
	CreatedAt       time.Time
}

// StartAt computes the appointment's start instant in UTC.
func (a Appointment) StartAt() (time.Time, error) {
	return ParseSlotInstant(a.Date, a.Time)
}

// ParseSlotInstant combines a calendar date and a time-of-day into the
// instant used for slot-window comparisons.
func ParseSlotInstant(date, timeOfDay string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04", date+" "+timeOfDay)
	if err != nil {
		return time.Time{}, &FieldError{Field: "date/time", Reason: "want YYYY-MM-DD and HH:MM", Err: err}
	}
	return t, nil
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// MustDecimal parses a decimal literal, returning zero on malformed input.
// Intended for constants and test fixtures.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
