/*
monitor.go - Background ledger and schedule integrity monitor

PURPOSE:
  Periodically sweeps the ledger and the appointment book for conditions
  the write-time rules should make impossible, and logs what it finds.
  Overpaid treatments, payments whose owner record has disappeared,
  payments missing their creation audit entry, and double-booked slots
  all indicate either a bug or out-of-band data edits.

DESIGN:
  - Runs a background goroutine with configurable sweep interval
  - Read-only: findings are logged and reported, never auto-corrected
  - Appointment sweep covers a bounded horizon ahead of now
  - RunNow() performs a synchronous sweep and returns the findings; the
    admin integrity endpoint is built on it

CONFIGURATION:
  - SweepInterval: How often to sweep (default: 1 hour)
  - Horizon:       How far ahead to scan appointments (default: 7 days)
  - Enabled:       Whether the monitor is active (default: true)

USAGE:
  monitor := NewIntegrityMonitor(store, log)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - clinic/balance.go: The derivation the ledger sweep re-checks
  - clinic/schedule.go: The slot rule the appointment sweep re-checks
  - clinic/audit.go: The pairing rule the audit sweep re-checks
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Nikise23/odontologia-app-sub001/clinic"
)

// Finding is one integrity violation discovered by a sweep.
type Finding struct {
	Kind      string `json:"kind"`
	SubjectID string `json:"subject_id"`
	Detail    string `json:"detail"`
}

// IntegrityMonitor re-derives balances, audit pairing and slot spacing in
// the background.
type IntegrityMonitor struct {
	Store         clinic.TxStore
	SweepInterval time.Duration
	Horizon       time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewIntegrityMonitor creates a new monitor.
func NewIntegrityMonitor(store clinic.TxStore, log zerolog.Logger) *IntegrityMonitor {
	return &IntegrityMonitor{
		Store:         store,
		SweepInterval: 1 * time.Hour,
		Horizon:       7 * 24 * time.Hour,
		Enabled:       true,
		log:           log.With().Str("component", "integrity-monitor").Logger(),
		stop:          make(chan bool),
	}
}

// Start begins the monitor.
func (im *IntegrityMonitor) Start() {
	im.mu.Lock()
	defer im.mu.Unlock()

	if !im.Enabled {
		im.log.Info().Msg("disabled, not starting")
		return
	}

	im.ticker = time.NewTicker(im.SweepInterval)
	im.wg.Add(1)

	go im.run()

	im.log.Info().Dur("interval", im.SweepInterval).Msg("started")
}

// Stop stops the monitor.
func (im *IntegrityMonitor) Stop() {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.ticker != nil {
		im.ticker.Stop()
		close(im.stop)
		im.wg.Wait()
		im.log.Info().Msg("stopped")
	}
}

func (im *IntegrityMonitor) run() {
	defer im.wg.Done()

	// Run immediately on start
	im.sweep(context.Background())

	for {
		select {
		case <-im.ticker.C:
			im.sweep(context.Background())
		case <-im.stop:
			return
		}
	}
}

func (im *IntegrityMonitor) sweep(ctx context.Context) []Finding {
	var findings []Finding
	findings = append(findings, im.sweepLedger(ctx)...)
	findings = append(findings, im.sweepAppointments(ctx)...)

	for _, f := range findings {
		im.log.Warn().
			Str("kind", f.Kind).
			Str("subject_id", f.SubjectID).
			Msg(f.Detail)
	}
	if len(findings) > 0 {
		im.log.Warn().Int("findings", len(findings)).Msg("sweep completed with findings")
	} else {
		im.log.Debug().Msg("sweep completed clean")
	}
	return findings
}

// sweepLedger walks every patient's treatments and payments, flagging
// active payment totals that exceed the treatment cost, payments whose
// owner record no longer exists, and payments with no creation audit
// entry.
func (im *IntegrityMonitor) sweepLedger(ctx context.Context) []Finding {
	patients, err := im.Store.ListPatients(ctx)
	if err != nil {
		im.log.Error().Err(err).Msg("failed to list patients")
		return nil
	}

	var findings []Finding
	for _, patient := range patients {
		treatments, err := im.Store.TreatmentsByPatient(ctx, patient.ID)
		if err != nil {
			im.log.Error().Err(err).Str("patient_id", string(patient.ID)).Msg("failed to list treatments")
			continue
		}

		for _, treatment := range treatments {
			payments, err := im.Store.PaymentsByTreatment(ctx, treatment.ID)
			if err != nil {
				im.log.Error().Err(err).Str("treatment_id", string(treatment.ID)).Msg("failed to list payments")
				continue
			}

			active := decimalSumActive(payments)
			if active.GreaterThan(treatment.Cost) {
				findings = append(findings, Finding{
					Kind:      "overpaid-treatment",
					SubjectID: string(treatment.ID),
					Detail: fmt.Sprintf("active payments %s exceed treatment cost %s",
						active, treatment.Cost),
				})
			}
		}

		payments, err := im.Store.PaymentsByPatient(ctx, patient.ID)
		if err != nil {
			im.log.Error().Err(err).Str("patient_id", string(patient.ID)).Msg("failed to list payments")
			continue
		}
		for _, p := range payments {
			if f := im.checkOwner(ctx, p); f != nil {
				findings = append(findings, *f)
			}
			if f := im.checkAuditPairing(ctx, p); f != nil {
				findings = append(findings, *f)
			}
		}
	}
	return findings
}

// checkOwner verifies the treatment or consultation a payment points at
// still exists.
func (im *IntegrityMonitor) checkOwner(ctx context.Context, p clinic.PaymentRecord) *Finding {
	kind, ownerID, ok := p.Owner()
	if !ok {
		return nil
	}

	var missing bool
	switch kind {
	case clinic.OwnerTreatment:
		t, err := im.Store.GetTreatment(ctx, clinic.TreatmentID(ownerID))
		if err != nil {
			im.log.Error().Err(err).Str("payment_id", string(p.ID)).Msg("failed to resolve owner")
			return nil
		}
		missing = t == nil
	case clinic.OwnerConsultation:
		c, err := im.Store.GetConsultation(ctx, clinic.ConsultationID(ownerID))
		if err != nil {
			im.log.Error().Err(err).Str("payment_id", string(p.ID)).Msg("failed to resolve owner")
			return nil
		}
		missing = c == nil
	}

	if missing {
		return &Finding{
			Kind:      "missing-owner",
			SubjectID: string(p.ID),
			Detail:    fmt.Sprintf("payment references missing %s %s", kind, ownerID),
		}
	}
	return nil
}

// checkAuditPairing verifies a payment has its creation audit entry.
// Every write path records one in the same transaction, so its absence
// means the trail was edited out of band.
func (im *IntegrityMonitor) checkAuditPairing(ctx context.Context, p clinic.PaymentRecord) *Finding {
	history, err := im.Store.AuditByPayment(ctx, p.ID)
	if err != nil {
		im.log.Error().Err(err).Str("payment_id", string(p.ID)).Msg("failed to load audit history")
		return nil
	}
	for _, e := range history {
		if e.Action == clinic.AuditCreated {
			return nil
		}
	}
	return &Finding{
		Kind:      "missing-created-audit",
		SubjectID: string(p.ID),
		Detail:    "payment has no creation audit entry",
	}
}

// sweepAppointments re-checks the thirty-minute spacing rule over the
// horizon ahead of now. Cancelled and no-show appointments are exempt,
// same as at booking time.
func (im *IntegrityMonitor) sweepAppointments(ctx context.Context) []Finding {
	now := time.Now().UTC()
	appts, err := im.Store.AppointmentsInWindow(ctx, now, now.Add(im.Horizon))
	if err != nil {
		im.log.Error().Err(err).Msg("failed to list appointments")
		return nil
	}

	var findings []Finding
	for i, a := range appts {
		if !a.Status.Occupies() {
			continue
		}
		aStart, err := a.StartAt()
		if err != nil {
			continue
		}
		for _, b := range appts[i+1:] {
			if !b.Status.Occupies() {
				continue
			}
			bStart, err := b.StartAt()
			if err != nil {
				continue
			}
			diff := aStart.Sub(bStart)
			if diff < 0 {
				diff = -diff
			}
			if diff <= clinic.SlotWindow {
				findings = append(findings, Finding{
					Kind:      "slot-spacing",
					SubjectID: string(a.ID),
					Detail: fmt.Sprintf("appointment at %s within the slot window of %s at %s",
						aStart.Format("2006-01-02 15:04"), b.ID, bStart.Format("15:04")),
				})
			}
		}
	}
	return findings
}

// RunNow performs one synchronous sweep and returns its findings.
func (im *IntegrityMonitor) RunNow(ctx context.Context) []Finding {
	return im.sweep(ctx)
}

func decimalSumActive(payments []clinic.PaymentRecord) (sum decimal.Decimal) {
	for _, p := range payments {
		if p.Status == clinic.StatusCancelled {
			continue
		}
		sum = sum.Add(p.Amount)
	}
	return sum
}
