/*
Package sqlite provides a SQLite-backed implementation of the clinic storage
interfaces.

PURPOSE:
  Implements clinic.Store and clinic.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  payments:      Authoritative payment log (keyed by id, secondary lookups
                 by patient/treatment/consultation)
  audit_entries: Append-only trail with JSON before/after snapshots; this
                 package contains no UPDATE or DELETE statement for it
  appointments:  Bookings with a derived start_at column indexed for the
                 slot-window query
  patients, treatments, consultations: catalog records read for cost and
                 existence checks

INDEXES:
  Critical indexes for performance:
  - idx_appointments_start: slot conflict window scan (hot path)
  - idx_payments_treatment: outstanding balance calculation
  - idx_audit_payment: newest-first history reads

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; WithTx holds the writer lock for the
  whole transaction, so a conflict check plus insert (slot booking) or a
  balance validation plus insert (payment creation) observes a stable store
  and cannot interleave with another writer. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/clinic.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := clinic.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - clinic/store.go: Interface definitions
  - clinic/store/memory.go: Transient implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
)

// Store implements clinic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Authoritative payment log
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		consultation_id TEXT,
		treatment_id TEXT,
		ts TEXT NOT NULL,
		kind TEXT NOT NULL,
		concept TEXT,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		method TEXT,
		notes TEXT,
		created_by TEXT,
		created_role TEXT,
		created_at TEXT NOT NULL,
		modified_by TEXT,
		modified_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payments_patient
		ON payments(patient_id);
	CREATE INDEX IF NOT EXISTS idx_payments_treatment
		ON payments(treatment_id) WHERE treatment_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_payments_consultation
		ON payments(consultation_id) WHERE consultation_id IS NOT NULL;

	-- Audit trail (append-only: no UPDATE/DELETE exists for this table)
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT,
		actor_role TEXT,
		before_json TEXT,
		after_json TEXT,
		reason TEXT,
		ts TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_payment
		ON audit_entries(payment_id, ts DESC);

	-- Appointments; start_at is derived from date+time at write time and
	-- drives the slot-window query
	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		status TEXT NOT NULL,
		consultation_id TEXT,
		start_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_start
		ON appointments(start_at);
	CREATE INDEX IF NOT EXISTS idx_appointments_patient
		ON appointments(patient_id);

	-- Catalog records
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS treatments (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		concept TEXT,
		cost TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_treatments_patient
		ON treatments(patient_id);

	CREATE TABLE IF NOT EXISTS consultations (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		reason TEXT,
		cost_total TEXT NOT NULL,
		consultation_fee TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the same query
// helpers serve direct calls and transactional calls.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, patient_id, consultation_id, treatment_id, ts, kind, concept,
	amount, status, method, notes, created_by, created_role, created_at, modified_by, modified_at`

func (s *Store) InsertPayment(ctx context.Context, p clinic.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func insertPayment(ctx context.Context, q querier, p clinic.PaymentRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.PatientID,
		nullString(string(p.ConsultationID)),
		nullString(string(p.TreatmentID)),
		p.Timestamp.UTC().Format(time.RFC3339),
		p.Kind,
		p.Concept,
		p.Amount.String(),
		p.Status,
		p.Method,
		p.Notes,
		p.CreatedBy,
		p.CreatedRole,
		p.CreatedAt.UTC().Format(time.RFC3339),
		nullString(p.ModifiedBy),
		nullTime(p.ModifiedAt),
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("payment %s: %w", p.ID, clinic.ErrDuplicateID)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id clinic.PaymentID) (*clinic.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, q querier, id clinic.PaymentID) (*clinic.PaymentRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ps, err := collectPayments(rows)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

func (s *Store) UpdatePayment(ctx context.Context, p clinic.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePayment(ctx, s.db, p)
}

func updatePayment(ctx context.Context, q querier, p clinic.PaymentRecord) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payments
		SET concept = ?, amount = ?, status = ?, method = ?, notes = ?,
		    modified_by = ?, modified_at = ?
		WHERE id = ?`,
		p.Concept, p.Amount.String(), p.Status, p.Method, p.Notes,
		nullString(p.ModifiedBy), nullTime(p.ModifiedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("payment %s: %w", p.ID, clinic.ErrNotFound)
	}
	return nil
}

func (s *Store) RemovePayment(ctx context.Context, id clinic.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removePayment(ctx, s.db, id)
}

func removePayment(ctx context.Context, q querier, id clinic.PaymentID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	return err
}

func (s *Store) PaymentsByPatient(ctx context.Context, id clinic.PatientID) ([]clinic.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPayments(ctx, s.db, `patient_id = ?`, string(id))
}

func (s *Store) PaymentsByTreatment(ctx context.Context, id clinic.TreatmentID) ([]clinic.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPayments(ctx, s.db, `treatment_id = ?`, string(id))
}

func (s *Store) PaymentsByConsultation(ctx context.Context, id clinic.ConsultationID) ([]clinic.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPayments(ctx, s.db, `consultation_id = ?`, string(id))
}

func queryPayments(ctx context.Context, q querier, where string, arg any) ([]clinic.PaymentRecord, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE `+where+` ORDER BY ts ASC, id ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]clinic.PaymentRecord, error) {
	var out []clinic.PaymentRecord
	for rows.Next() {
		var (
			p                           clinic.PaymentRecord
			consultationID, treatmentID sql.NullString
			ts, createdAt, amount       string
			modifiedBy, modifiedAt      sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.PatientID, &consultationID, &treatmentID, &ts, &p.Kind, &p.Concept,
			&amount, &p.Status, &p.Method, &p.Notes, &p.CreatedBy, &p.CreatedRole,
			&createdAt, &modifiedBy, &modifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.ConsultationID = clinic.ConsultationID(consultationID.String)
		p.TreatmentID = clinic.TreatmentID(treatmentID.String)
		p.Timestamp, _ = time.Parse(time.RFC3339, ts)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		amt, err := parseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		p.Amount = amt
		p.ModifiedBy = modifiedBy.String
		if modifiedAt.Valid {
			p.ModifiedAt, _ = time.Parse(time.RFC3339, modifiedAt.String)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e clinic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, e)
}

func appendAudit(ctx context.Context, q querier, e clinic.AuditEntry) error {
	beforeJSON, err := marshalSnapshot(e.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalSnapshot(e.After)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_entries (id, payment_id, action, actor_id, actor_role, before_json, after_json, reason, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PaymentID, e.Action, e.ActorID, e.ActorRole,
		beforeJSON, afterJSON, e.Reason, e.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) AuditByPayment(ctx context.Context, id clinic.PaymentID) ([]clinic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return auditByPayment(ctx, s.db, id)
}

func auditByPayment(ctx context.Context, q querier, id clinic.PaymentID) ([]clinic.AuditEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, payment_id, action, actor_id, actor_role, before_json, after_json, reason, ts
		FROM audit_entries
		WHERE payment_id = ?
		ORDER BY ts DESC, id DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []clinic.AuditEntry
	for rows.Next() {
		var (
			e                     clinic.AuditEntry
			beforeJSON, afterJSON sql.NullString
			ts                    string
		)
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Action, &e.ActorID, &e.ActorRole,
			&beforeJSON, &afterJSON, &e.Reason, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if e.Before, err = unmarshalSnapshot(beforeJSON); err != nil {
			return nil, err
		}
		if e.After, err = unmarshalSnapshot(afterJSON); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func marshalSnapshot(p *clinic.PaymentRecord) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalSnapshot(ns sql.NullString) (*clinic.PaymentRecord, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var p clinic.PaymentRecord
	if err := json.Unmarshal([]byte(ns.String), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &p, nil
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

const appointmentColumns = `id, patient_id, date, time, duration_minutes, status, consultation_id, created_at`

func (s *Store) InsertAppointment(ctx context.Context, a clinic.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAppointment(ctx, s.db, a)
}

func insertAppointment(ctx context.Context, q querier, a clinic.Appointment) error {
	start, err := a.StartAt()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`, start_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PatientID, a.Date, a.Time, a.DurationMinutes, a.Status,
		nullString(string(a.ConsultationID)),
		a.CreatedAt.UTC().Format(time.RFC3339),
		start.Format(time.RFC3339),
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("appointment %s: %w", a.ID, clinic.ErrDuplicateID)
		}
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, id clinic.AppointmentID) (*clinic.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAppointment(ctx, s.db, id)
}

func getAppointment(ctx context.Context, q querier, id clinic.AppointmentID) (*clinic.Appointment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	as, err := collectAppointments(rows)
	if err != nil || len(as) == 0 {
		return nil, err
	}
	return &as[0], nil
}

func (s *Store) UpdateAppointment(ctx context.Context, a clinic.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAppointment(ctx, s.db, a)
}

func updateAppointment(ctx context.Context, q querier, a clinic.Appointment) error {
	start, err := a.StartAt()
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE appointments
		SET date = ?, time = ?, duration_minutes = ?, status = ?, consultation_id = ?, start_at = ?
		WHERE id = ?`,
		a.Date, a.Time, a.DurationMinutes, a.Status,
		nullString(string(a.ConsultationID)), start.Format(time.RFC3339), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("appointment %s: %w", a.ID, clinic.ErrNotFound)
	}
	return nil
}

func (s *Store) AppointmentsInWindow(ctx context.Context, from, to time.Time) ([]clinic.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return appointmentsInWindow(ctx, s.db, from, to)
}

func appointmentsInWindow(ctx context.Context, q querier, from, to time.Time) ([]clinic.Appointment, error) {
	// Both bounds inclusive: an appointment exactly to minutes away still
	// falls inside the conflict window.
	rows, err := q.QueryContext(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE start_at >= ? AND start_at <= ?
		ORDER BY start_at ASC`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query appointment window: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (s *Store) AppointmentsByPatient(ctx context.Context, id clinic.PatientID) ([]clinic.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return appointmentsByPatient(ctx, s.db, id)
}

func appointmentsByPatient(ctx context.Context, q querier, id clinic.PatientID) ([]clinic.Appointment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = ?
		ORDER BY start_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows *sql.Rows) ([]clinic.Appointment, error) {
	var out []clinic.Appointment
	for rows.Next() {
		var (
			a              clinic.Appointment
			consultationID sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Date, &a.Time, &a.DurationMinutes,
			&a.Status, &consultationID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		a.ConsultationID = clinic.ConsultationID(consultationID.String)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) SavePatient(ctx context.Context, p clinic.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePatient(ctx, s.db, p)
}

func savePatient(ctx context.Context, q querier, p clinic.Patient) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO patients (id, name, phone, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone`,
		p.ID, p.Name, p.Phone, p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}
	return nil
}

func (s *Store) GetPatient(ctx context.Context, id clinic.PatientID) (*clinic.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPatient(ctx, s.db, id)
}

func getPatient(ctx context.Context, q querier, id clinic.PatientID) (*clinic.Patient, error) {
	var p clinic.Patient
	var createdAt string
	err := q.QueryRowContext(ctx,
		`SELECT id, name, phone, created_at FROM patients WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Phone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) ListPatients(ctx context.Context) ([]clinic.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPatients(ctx, s.db)
}

func listPatients(ctx context.Context, q querier) ([]clinic.Patient, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, phone, created_at FROM patients ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var out []clinic.Patient
	for rows.Next() {
		var p clinic.Patient
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveTreatment(ctx context.Context, t clinic.Treatment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTreatment(ctx, s.db, t)
}

func saveTreatment(ctx context.Context, q querier, t clinic.Treatment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO treatments (id, patient_id, concept, cost, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			concept = excluded.concept,
			cost = excluded.cost,
			status = excluded.status`,
		t.ID, t.PatientID, t.Concept, t.Cost.String(), t.Status,
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save treatment: %w", err)
	}
	return nil
}

func (s *Store) GetTreatment(ctx context.Context, id clinic.TreatmentID) (*clinic.Treatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTreatment(ctx, s.db, id)
}

func getTreatment(ctx context.Context, q querier, id clinic.TreatmentID) (*clinic.Treatment, error) {
	var t clinic.Treatment
	var cost, createdAt string
	err := q.QueryRowContext(ctx,
		`SELECT id, patient_id, concept, cost, status, created_at FROM treatments WHERE id = ?`, id,
	).Scan(&t.ID, &t.PatientID, &t.Concept, &cost, &t.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t.Cost, err = parseAmount(cost); err != nil {
		return nil, fmt.Errorf("treatment %s: %w", t.ID, err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}

func (s *Store) TreatmentsByPatient(ctx context.Context, id clinic.PatientID) ([]clinic.Treatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return treatmentsByPatient(ctx, s.db, id)
}

func treatmentsByPatient(ctx context.Context, q querier, id clinic.PatientID) ([]clinic.Treatment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, patient_id, concept, cost, status, created_at
		FROM treatments WHERE patient_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query treatments: %w", err)
	}
	defer rows.Close()

	var out []clinic.Treatment
	for rows.Next() {
		var t clinic.Treatment
		var cost, createdAt string
		if err := rows.Scan(&t.ID, &t.PatientID, &t.Concept, &cost, &t.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan treatment: %w", err)
		}
		parsed, err := parseAmount(cost)
		if err != nil {
			return nil, fmt.Errorf("treatment %s: %w", t.ID, err)
		}
		t.Cost = parsed
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SaveConsultation(ctx context.Context, c clinic.Consultation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveConsultation(ctx, s.db, c)
}

func saveConsultation(ctx context.Context, q querier, c clinic.Consultation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO consultations (id, patient_id, reason, cost_total, consultation_fee, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reason = excluded.reason,
			cost_total = excluded.cost_total,
			consultation_fee = excluded.consultation_fee`,
		c.ID, c.PatientID, c.Reason, c.CostTotal.String(), c.ConsultationFee.String(),
		c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save consultation: %w", err)
	}
	return nil
}

func (s *Store) GetConsultation(ctx context.Context, id clinic.ConsultationID) (*clinic.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getConsultation(ctx, s.db, id)
}

func getConsultation(ctx context.Context, q querier, id clinic.ConsultationID) (*clinic.Consultation, error) {
	var c clinic.Consultation
	var costTotal, fee, createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT id, patient_id, reason, cost_total, consultation_fee, created_at
		FROM consultations WHERE id = ?`, id,
	).Scan(&c.ID, &c.PatientID, &c.Reason, &costTotal, &fee, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.CostTotal, err = parseAmount(costTotal); err != nil {
		return nil, fmt.Errorf("consultation %s: %w", c.ID, err)
	}
	if c.ConsultationFee, err = parseAmount(fee); err != nil {
		return nil, fmt.Errorf("consultation %s: %w", c.ID, err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction while holding the writer
// lock. Callers use this to make a read-check-write sequence atomic: slot
// conflict check plus insert, balance validation plus insert, mutation plus
// audit append.
func (s *Store) WithTx(ctx context.Context, fn func(clinic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store call through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) InsertPayment(ctx context.Context, p clinic.PaymentRecord) error {
	return insertPayment(ctx, t.tx, p)
}

func (t *txStore) GetPayment(ctx context.Context, id clinic.PaymentID) (*clinic.PaymentRecord, error) {
	return getPayment(ctx, t.tx, id)
}

func (t *txStore) UpdatePayment(ctx context.Context, p clinic.PaymentRecord) error {
	return updatePayment(ctx, t.tx, p)
}

func (t *txStore) RemovePayment(ctx context.Context, id clinic.PaymentID) error {
	return removePayment(ctx, t.tx, id)
}

func (t *txStore) PaymentsByPatient(ctx context.Context, id clinic.PatientID) ([]clinic.PaymentRecord, error) {
	return queryPayments(ctx, t.tx, `patient_id = ?`, string(id))
}

func (t *txStore) PaymentsByTreatment(ctx context.Context, id clinic.TreatmentID) ([]clinic.PaymentRecord, error) {
	return queryPayments(ctx, t.tx, `treatment_id = ?`, string(id))
}

func (t *txStore) PaymentsByConsultation(ctx context.Context, id clinic.ConsultationID) ([]clinic.PaymentRecord, error) {
	return queryPayments(ctx, t.tx, `consultation_id = ?`, string(id))
}

func (t *txStore) AppendAudit(ctx context.Context, e clinic.AuditEntry) error {
	return appendAudit(ctx, t.tx, e)
}

func (t *txStore) AuditByPayment(ctx context.Context, id clinic.PaymentID) ([]clinic.AuditEntry, error) {
	return auditByPayment(ctx, t.tx, id)
}

func (t *txStore) InsertAppointment(ctx context.Context, a clinic.Appointment) error {
	return insertAppointment(ctx, t.tx, a)
}

func (t *txStore) GetAppointment(ctx context.Context, id clinic.AppointmentID) (*clinic.Appointment, error) {
	return getAppointment(ctx, t.tx, id)
}

func (t *txStore) UpdateAppointment(ctx context.Context, a clinic.Appointment) error {
	return updateAppointment(ctx, t.tx, a)
}

func (t *txStore) AppointmentsInWindow(ctx context.Context, from, to time.Time) ([]clinic.Appointment, error) {
	return appointmentsInWindow(ctx, t.tx, from, to)
}

func (t *txStore) AppointmentsByPatient(ctx context.Context, id clinic.PatientID) ([]clinic.Appointment, error) {
	return appointmentsByPatient(ctx, t.tx, id)
}

func (t *txStore) SavePatient(ctx context.Context, p clinic.Patient) error {
	return savePatient(ctx, t.tx, p)
}

func (t *txStore) GetPatient(ctx context.Context, id clinic.PatientID) (*clinic.Patient, error) {
	return getPatient(ctx, t.tx, id)
}

func (t *txStore) ListPatients(ctx context.Context) ([]clinic.Patient, error) {
	return listPatients(ctx, t.tx)
}

func (t *txStore) SaveTreatment(ctx context.Context, tr clinic.Treatment) error {
	return saveTreatment(ctx, t.tx, tr)
}

func (t *txStore) GetTreatment(ctx context.Context, id clinic.TreatmentID) (*clinic.Treatment, error) {
	return getTreatment(ctx, t.tx, id)
}

func (t *txStore) TreatmentsByPatient(ctx context.Context, id clinic.PatientID) ([]clinic.Treatment, error) {
	return treatmentsByPatient(ctx, t.tx, id)
}

func (t *txStore) SaveConsultation(ctx context.Context, c clinic.Consultation) error {
	return saveConsultation(ctx, t.tx, c)
}

func (t *txStore) GetConsultation(ctx context.Context, id clinic.ConsultationID) (*clinic.Consultation, error) {
	return getConsultation(ctx, t.tx, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// parseAmount decodes a stored decimal column. A value that fails to
// parse means the row was damaged out of band; the read fails rather than
// serving the amount as zero.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt amount %q: %w", s, err)
	}
	return d, nil
}

// isDuplicate reports whether the driver error is a primary-key or unique
// constraint violation.
func isDuplicate(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
