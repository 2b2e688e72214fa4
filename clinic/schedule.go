/*
schedule.go - Appointment slot exclusivity

PURPOSE:
  Gates appointment creation and rescheduling so that no two active
  appointments start within 30 minutes of each other. Cancelled and no-show
  appointments free their slot.

WINDOW SEMANTICS:
  Conflict iff |candidate - existing| <= SlotWindow, both bounds inclusive:
  against an existing 10:00 booking, 10:30 conflicts and 10:31 does not.
  The window is fixed policy, independent of either appointment's declared
  duration.

SERIALIZATION:
  The conflict check and the write run inside one store transaction.
  TxStore implementations serialize WithTx calls, so two concurrent
  bookings for the same window cannot both observe "no conflict" and both
  commit - the second one re-checks after the first has committed.

SEE ALSO:
  - store/sqlite/sqlite.go: AppointmentsInWindow query + writer lock
*/
package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotWindow is the half-window around an appointment's start instant
// within which no other active appointment may start.
const SlotWindow = 30 * time.Minute

// Scheduler enforces slot exclusivity on appointment writes.
type Scheduler struct {
	store TxStore

	now   func() time.Time
	newID func() string
}

func NewScheduler(store TxStore) *Scheduler {
	return &Scheduler{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// =============================================================================
// CONFLICT CHECK
// =============================================================================

// CheckConflict reports whether an active appointment occupies the window
// around the candidate date+time. excludeID skips the appointment being
// updated so it never conflicts with itself. Returns nil when the slot is
// free and a *SlotConflictError otherwise.
//
// This is the advisory form; Book and Update repeat the check inside
// their write transaction.
func (sc *Scheduler) CheckConflict(ctx context.Context, date, timeOfDay string, excludeID AppointmentID) error {
	instant, err := ParseSlotInstant(date, timeOfDay)
	if err != nil {
		return err
	}
	return checkConflict(ctx, sc.store, instant, excludeID)
}

func checkConflict(ctx context.Context, s Store, instant time.Time, excludeID AppointmentID) error {
	others, err := s.AppointmentsInWindow(ctx, instant.Add(-SlotWindow), instant.Add(SlotWindow))
	if err != nil {
		return err
	}
	for _, other := range others {
		if other.ID == excludeID || !other.Status.Occupies() {
			continue
		}
		start, err := other.StartAt()
		if err != nil {
			continue // unparseable stored slot cannot be compared
		}
		diff := instant.Sub(start)
		if diff < 0 {
			diff = -diff
		}
		if diff <= SlotWindow {
			return &SlotConflictError{ConflictingID: other.ID, Candidate: instant, Existing: start}
		}
	}
	return nil
}

// =============================================================================
// BOOKING
// =============================================================================

// Book validates and persists a new appointment, rejecting it with
// SlotConflict when the window is occupied. The check and the insert are
// one atomic unit; nothing partially applies.
func (sc *Scheduler) Book(ctx context.Context, appt Appointment) (*Appointment, error) {
	if err := sc.validateNew(&appt); err != nil {
		return nil, err
	}
	instant, err := appt.StartAt()
	if err != nil {
		return nil, err
	}

	patient, err := sc.store.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, fmt.Errorf("patient %s: %w", appt.PatientID, ErrNotFound)
	}

	if appt.ID == "" {
		appt.ID = AppointmentID(sc.newID())
	}
	appt.CreatedAt = sc.now()

	err = sc.store.WithTx(ctx, func(s Store) error {
		if err := checkConflict(ctx, s, instant, ""); err != nil {
			return err
		}
		return s.InsertAppointment(ctx, appt)
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (sc *Scheduler) validateNew(appt *Appointment) error {
	if appt.PatientID == "" {
		return &FieldError{Field: "patientId", Reason: "required"}
	}
	if appt.DurationMinutes <= 0 {
		return &FieldError{Field: "durationMinutes", Reason: "must be positive"}
	}
	if appt.Status == "" {
		appt.Status = ApptScheduled
	}
	if appt.Status != ApptScheduled {
		return &FieldError{Field: "status", Reason: "new appointments start as scheduled"}
	}
	return nil
}

// =============================================================================
// UPDATE
// =============================================================================

// AppointmentUpdate carries the fields an update may change. Nil fields
// are left untouched.
type AppointmentUpdate struct {
	Date            *string
	Time            *string
	DurationMinutes *int
	Status          *AppointmentStatus
	ConsultationID  *ConsultationID
}

func (u AppointmentUpdate) movesSlot() bool { return u.Date != nil || u.Time != nil }

// Update applies the change set. When date or time is among the changed
// fields, or the status transitions back from cancelled/no-show into an
// occupying one, the slot invariant is re-validated with self-exclusion;
// a status change to cancelled or no-show frees the slot without any
// check. Transitioning to completed binds the consultation id.
func (sc *Scheduler) Update(ctx context.Context, id AppointmentID, change AppointmentUpdate) (*Appointment, error) {
	if change.Status != nil && !change.Status.Valid() {
		return nil, &FieldError{Field: "status", Reason: "unknown status"}
	}
	if change.DurationMinutes != nil && *change.DurationMinutes <= 0 {
		return nil, &FieldError{Field: "durationMinutes", Reason: "must be positive"}
	}
	if change.Status != nil && *change.Status == ApptCompleted && change.ConsultationID == nil {
		return nil, &FieldError{Field: "consultationId", Reason: "required when completing an appointment"}
	}

	var updated Appointment
	err := sc.store.WithTx(ctx, func(s Store) error {
		appt, err := s.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if appt == nil {
			return fmt.Errorf("appointment %s: %w", id, ErrNotFound)
		}

		updated = *appt
		if change.Date != nil {
			updated.Date = *change.Date
		}
		if change.Time != nil {
			updated.Time = *change.Time
		}
		if change.DurationMinutes != nil {
			updated.DurationMinutes = *change.DurationMinutes
		}
		if change.Status != nil {
			updated.Status = *change.Status
		}
		if change.ConsultationID != nil {
			updated.ConsultationID = *change.ConsultationID
		}

		// A reactivated appointment re-enters the window it once held,
		// which someone else may have booked in the meantime.
		reactivated := !appt.Status.Occupies() && updated.Status.Occupies()
		if updated.Status.Occupies() && (change.movesSlot() || reactivated) {
			instant, err := updated.StartAt()
			if err != nil {
				return err
			}
			if err := checkConflict(ctx, s, instant, id); err != nil {
				return err
			}
		}
		return s.UpdateAppointment(ctx, updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Get returns an appointment by id.
func (sc *Scheduler) Get(ctx context.Context, id AppointmentID) (*Appointment, error) {
	appt, err := sc.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return appt, nil
}

// ByPatient returns the patient's appointments.
func (sc *Scheduler) ByPatient(ctx context.Context, id PatientID) ([]Appointment, error) {
	return sc.store.AppointmentsByPatient(ctx, id)
}
