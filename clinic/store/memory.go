// Package store provides the transient in-memory Store implementation,
// used by tests and as the degraded-mode backend when no database path is
// configured. Selected by configuration, never ambient global state.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements clinic.TxStore with plain maps guarded by one mutex.
// WithTx simulates transactions with a snapshot + rollback on error; the
// lock held for the whole closure gives the same single-writer
// serialization the sqlite backend gets from its writer lock.
type Memory struct {
	mu sync.RWMutex

	payments      map[clinic.PaymentID]clinic.PaymentRecord
	audits        map[clinic.PaymentID][]clinic.AuditEntry
	appointments  map[clinic.AppointmentID]clinic.Appointment
	patients      map[clinic.PatientID]clinic.Patient
	treatments    map[clinic.TreatmentID]clinic.Treatment
	consultations map[clinic.ConsultationID]clinic.Consultation
}

func NewMemory() *Memory {
	return &Memory{
		payments:      make(map[clinic.PaymentID]clinic.PaymentRecord),
		audits:        make(map[clinic.PaymentID][]clinic.AuditEntry),
		appointments:  make(map[clinic.AppointmentID]clinic.Appointment),
		patients:      make(map[clinic.PatientID]clinic.Patient),
		treatments:    make(map[clinic.TreatmentID]clinic.Treatment),
		consultations: make(map[clinic.ConsultationID]clinic.Consultation),
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) InsertPayment(_ context.Context, p clinic.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().InsertPayment(nil, p)
}

func (m *Memory) GetPayment(_ context.Context, id clinic.PaymentID) (*clinic.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetPayment(nil, id)
}

func (m *Memory) UpdatePayment(_ context.Context, p clinic.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().UpdatePayment(nil, p)
}

func (m *Memory) RemovePayment(_ context.Context, id clinic.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().RemovePayment(nil, id)
}

func (m *Memory) PaymentsByPatient(_ context.Context, id clinic.PatientID) ([]clinic.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().PaymentsByPatient(nil, id)
}

func (m *Memory) PaymentsByTreatment(_ context.Context, id clinic.TreatmentID) ([]clinic.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().PaymentsByTreatment(nil, id)
}

func (m *Memory) PaymentsByConsultation(_ context.Context, id clinic.ConsultationID) ([]clinic.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().PaymentsByConsultation(nil, id)
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, e clinic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().AppendAudit(nil, e)
}

func (m *Memory) AuditByPayment(_ context.Context, id clinic.PaymentID) ([]clinic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().AuditByPayment(nil, id)
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

func (m *Memory) InsertAppointment(_ context.Context, a clinic.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().InsertAppointment(nil, a)
}

func (m *Memory) GetAppointment(_ context.Context, id clinic.AppointmentID) (*clinic.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetAppointment(nil, id)
}

func (m *Memory) UpdateAppointment(_ context.Context, a clinic.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().UpdateAppointment(nil, a)
}

func (m *Memory) AppointmentsInWindow(_ context.Context, from, to time.Time) ([]clinic.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().AppointmentsInWindow(nil, from, to)
}

func (m *Memory) AppointmentsByPatient(_ context.Context, id clinic.PatientID) ([]clinic.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().AppointmentsByPatient(nil, id)
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) SavePatient(_ context.Context, p clinic.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().SavePatient(nil, p)
}

func (m *Memory) GetPatient(_ context.Context, id clinic.PatientID) (*clinic.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetPatient(nil, id)
}

func (m *Memory) ListPatients(_ context.Context) ([]clinic.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().ListPatients(nil)
}

func (m *Memory) SaveTreatment(_ context.Context, t clinic.Treatment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().SaveTreatment(nil, t)
}

func (m *Memory) GetTreatment(_ context.Context, id clinic.TreatmentID) (*clinic.Treatment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetTreatment(nil, id)
}

func (m *Memory) TreatmentsByPatient(_ context.Context, id clinic.PatientID) ([]clinic.Treatment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().TreatmentsByPatient(nil, id)
}

func (m *Memory) SaveConsultation(_ context.Context, c clinic.Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().SaveConsultation(nil, c)
}

func (m *Memory) GetConsultation(_ context.Context, id clinic.ConsultationID) (*clinic.Consultation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().GetConsultation(nil, id)
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback
// =============================================================================

// WithTx executes fn against the store while holding the write lock. On
// error the pre-transaction snapshot is restored, so partial writes never
// become visible.
func (m *Memory) WithTx(_ context.Context, fn func(clinic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(m.view()); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() *Memory {
	s := NewMemory()
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.audits {
		s.audits[k] = append([]clinic.AuditEntry(nil), v...)
	}
	for k, v := range m.appointments {
		s.appointments[k] = v
	}
	for k, v := range m.patients {
		s.patients[k] = v
	}
	for k, v := range m.treatments {
		s.treatments[k] = v
	}
	for k, v := range m.consultations {
		s.consultations[k] = v
	}
	return s
}

func (m *Memory) restore(s *Memory) {
	m.payments = s.payments
	m.audits = s.audits
	m.appointments = s.appointments
	m.patients = s.patients
	m.treatments = s.treatments
	m.consultations = s.consultations
}

// view returns the lock-free inner implementation. Callers must hold the
// appropriate lock; WithTx hands this view to its closure.
func (m *Memory) view() *memView { return &memView{m: m} }

type memView struct {
	m *Memory
}

func (v *memView) InsertPayment(_ context.Context, p clinic.PaymentRecord) error {
	if _, ok := v.m.payments[p.ID]; ok {
		return fmt.Errorf("payment %s: %w", p.ID, clinic.ErrDuplicateID)
	}
	v.m.payments[p.ID] = p
	return nil
}

func (v *memView) GetPayment(_ context.Context, id clinic.PaymentID) (*clinic.PaymentRecord, error) {
	p, ok := v.m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (v *memView) UpdatePayment(_ context.Context, p clinic.PaymentRecord) error {
	v.m.payments[p.ID] = p
	return nil
}

func (v *memView) RemovePayment(_ context.Context, id clinic.PaymentID) error {
	delete(v.m.payments, id)
	return nil
}

func (v *memView) PaymentsByPatient(_ context.Context, id clinic.PatientID) ([]clinic.PaymentRecord, error) {
	var out []clinic.PaymentRecord
	for _, p := range v.m.payments {
		if p.PatientID == id {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (v *memView) PaymentsByTreatment(_ context.Context, id clinic.TreatmentID) ([]clinic.PaymentRecord, error) {
	var out []clinic.PaymentRecord
	for _, p := range v.m.payments {
		if p.TreatmentID == id {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (v *memView) PaymentsByConsultation(_ context.Context, id clinic.ConsultationID) ([]clinic.PaymentRecord, error) {
	var out []clinic.PaymentRecord
	for _, p := range v.m.payments {
		if p.ConsultationID == id {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (v *memView) AppendAudit(_ context.Context, e clinic.AuditEntry) error {
	v.m.audits[e.PaymentID] = append(v.m.audits[e.PaymentID], e)
	return nil
}

func (v *memView) AuditByPayment(_ context.Context, id clinic.PaymentID) ([]clinic.AuditEntry, error) {
	entries := v.m.audits[id]
	out := make([]clinic.AuditEntry, len(entries))
	// Stored oldest first; served newest first.
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out, nil
}

func (v *memView) InsertAppointment(_ context.Context, a clinic.Appointment) error {
	if _, ok := v.m.appointments[a.ID]; ok {
		return fmt.Errorf("appointment %s: %w", a.ID, clinic.ErrDuplicateID)
	}
	v.m.appointments[a.ID] = a
	return nil
}

func (v *memView) GetAppointment(_ context.Context, id clinic.AppointmentID) (*clinic.Appointment, error) {
	a, ok := v.m.appointments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (v *memView) UpdateAppointment(_ context.Context, a clinic.Appointment) error {
	v.m.appointments[a.ID] = a
	return nil
}

func (v *memView) AppointmentsInWindow(_ context.Context, from, to time.Time) ([]clinic.Appointment, error) {
	var out []clinic.Appointment
	for _, a := range v.m.appointments {
		start, err := a.StartAt()
		if err != nil {
			continue
		}
		if !start.Before(from) && !start.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (v *memView) AppointmentsByPatient(_ context.Context, id clinic.PatientID) ([]clinic.Appointment, error) {
	var out []clinic.Appointment
	for _, a := range v.m.appointments {
		if a.PatientID == id {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date+out[i].Time < out[j].Date+out[j].Time
	})
	return out, nil
}

func (v *memView) SavePatient(_ context.Context, p clinic.Patient) error {
	v.m.patients[p.ID] = p
	return nil
}

func (v *memView) GetPatient(_ context.Context, id clinic.PatientID) (*clinic.Patient, error) {
	p, ok := v.m.patients[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (v *memView) ListPatients(_ context.Context) ([]clinic.Patient, error) {
	out := make([]clinic.Patient, 0, len(v.m.patients))
	for _, p := range v.m.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *memView) SaveTreatment(_ context.Context, t clinic.Treatment) error {
	v.m.treatments[t.ID] = t
	return nil
}

func (v *memView) GetTreatment(_ context.Context, id clinic.TreatmentID) (*clinic.Treatment, error) {
	t, ok := v.m.treatments[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (v *memView) TreatmentsByPatient(_ context.Context, id clinic.PatientID) ([]clinic.Treatment, error) {
	var out []clinic.Treatment
	for _, t := range v.m.treatments {
		if t.PatientID == id {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *memView) SaveConsultation(_ context.Context, c clinic.Consultation) error {
	v.m.consultations[c.ID] = c
	return nil
}

func (v *memView) GetConsultation(_ context.Context, id clinic.ConsultationID) (*clinic.Consultation, error) {
	c, ok := v.m.consultations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func sortPayments(ps []clinic.PaymentRecord) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Timestamp.Before(ps[j].Timestamp) })
}
