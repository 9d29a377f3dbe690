// Package reconciler implements the periodic missed-dose reconciliation
// sweep: for every dosing window whose grace period has elapsed with no
// matching terminal intake record, it synthesizes a "missed" record.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/carebridge/carelink/internal/domain/patient"
	"github.com/carebridge/carelink/internal/observability/metrics"
	"github.com/carebridge/carelink/internal/schedule"
)

// DefaultGrace is the margin after a window's end hour before the window is
// considered definitively missed.
const DefaultGrace = 2 * time.Hour

// missedNote marks records synthesized by the sweep.
const missedNote = "Automatically marked as missed: no intake recorded before the dose window closed"

// Store is the patient persistence the sweep needs. SaveMissedDoses must
// persist all of a patient's new records in one save.
type Store interface {
	FindWithActivePrescriptions(ctx context.Context) ([]*patient.Patient, error)
	SaveMissedDoses(ctx context.Context, p *patient.Patient, recs []patient.IntakeRecord) error
}

// PatientResult is the per-patient breakdown in a sweep summary.
type PatientResult struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	MissedCount int    `json:"missed_count"`
}

// Summary reports one sweep cycle.
type Summary struct {
	Timestamp               time.Time       `json:"timestamp"`
	PatientsChecked         int             `json:"patients_checked"`
	SlotsChecked            int             `json:"slots_checked"`
	TotalMarkedMissed       int             `json:"total_marked_missed"`
	PatientsWithMissedDoses int             `json:"patients_with_missed_doses"`
	Details                 []PatientResult `json:"details"`
}

// Config holds reconciler configuration.
type Config struct {
	// Grace is the margin added to a window's end hour.
	Grace time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{Grace: DefaultGrace}
}

// Reconciler runs the missed-dose sweep over the whole patient population.
type Reconciler struct {
	store   Store
	config  Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New creates a reconciler. metrics may be nil.
func New(store Store, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	return &Reconciler{
		store:   store,
		config:  cfg,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("missed-dose-reconciler"),
	}
}

// Run executes one sweep at the given instant. It examines every patient with
// active prescriptions, marks elapsed unrecorded slots missed, and saves each
// patient at most once. Errors in one patient's data are logged and that
// patient is skipped; the sweep never aborts early for a per-patient failure.
// Re-running within the same day is idempotent: the terminal-record check
// prevents duplicate missed marks.
func (r *Reconciler) Run(ctx context.Context, now time.Time) (*Summary, error) {
	ctx, span := r.tracer.Start(ctx, "missed_dose_sweep")
	defer span.End()

	started := time.Now()
	summary := &Summary{Timestamp: now.UTC(), Details: []PatientResult{}}

	patients, err := r.store.FindWithActivePrescriptions(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load patients: %w", err)
	}

	summary.PatientsChecked = len(patients)
	for _, p := range patients {
		missed := r.reconcilePatient(p, now, summary)
		if len(missed) == 0 {
			continue
		}

		if err := r.store.SaveMissedDoses(ctx, p, missed); err != nil {
			// This patient's slice of work is abandoned for the cycle; the
			// next sweep re-derives it safely.
			r.logger.Error("failed to save missed doses",
				zap.String("patient_id", p.ID),
				zap.Int("missed", len(missed)),
				zap.Error(err))
			if r.metrics != nil {
				r.metrics.SweepPatientErrors.Inc()
			}
			continue
		}

		summary.TotalMarkedMissed += len(missed)
		summary.Details = append(summary.Details, PatientResult{
			PatientID:   p.ID,
			PatientName: p.Name,
			MissedCount: len(missed),
		})
	}
	summary.PatientsWithMissedDoses = len(summary.Details)

	span.SetAttributes(
		attribute.Int("patients_checked", summary.PatientsChecked),
		attribute.Int("slots_checked", summary.SlotsChecked),
		attribute.Int("marked_missed", summary.TotalMarkedMissed),
	)

	if r.metrics != nil {
		r.metrics.SweepRuns.Inc()
		r.metrics.SweepDuration.Observe(time.Since(started).Seconds())
		r.metrics.SweepPatientsChecked.Add(float64(summary.PatientsChecked))
		r.metrics.SweepSlotsChecked.Add(float64(summary.SlotsChecked))
		r.metrics.DosesMarkedMissed.Add(float64(summary.TotalMarkedMissed))
	}

	r.logger.Info("missed-dose sweep completed",
		zap.Int("patients_checked", summary.PatientsChecked),
		zap.Int("slots_checked", summary.SlotsChecked),
		zap.Int("marked_missed", summary.TotalMarkedMissed),
		zap.Duration("took", time.Since(started)))

	return summary, nil
}

// reconcilePatient collects the missed records for one patient without
// persisting them. Parse failures skip the prescription, not the patient.
// Later windows in the cycle match against the records already synthesized,
// so overlapping windows whose midpoints fall inside each other mark once.
func (r *Reconciler) reconcilePatient(p *patient.Patient, now time.Time, summary *Summary) []patient.IntakeRecord {
	var missed []patient.IntakeRecord
	intakes := p.MedicineIntakes

	for _, rx := range p.ActivePrescriptions(now) {
		if rx.AcceptedTime == "" {
			continue
		}
		windows, err := schedule.ParseWindows(rx.AcceptedTime)
		if err != nil {
			r.logger.Warn("skipping prescription with unparsable schedule",
				zap.String("patient_id", p.ID),
				zap.String("prescription_id", rx.ID),
				zap.String("medicine", rx.Name),
				zap.Error(err))
			continue
		}

		for _, w := range windows {
			summary.SlotsChecked++

			if !r.windowElapsed(w, now) {
				continue
			}
			// Only a decided outcome blocks the missed mark; a lingering
			// pending record does not.
			if schedule.HasRecord(intakes, now, rx.ID, w, schedule.TerminalStatuses) {
				continue
			}

			rec := patient.IntakeRecord{
				ID:             uuid.New().String(),
				PrescriptionID: rx.ID,
				MedicineName:   rx.Name,
				ScheduledTime:  w.ScheduledTime(now),
				TakenTime:      nil,
				Status:         patient.StatusMissed,
				Notes:          missedNote,
				CreatedAt:      time.Now().UTC(),
			}
			missed = append(missed, rec)
			intakes = append(intakes, rec)
		}
	}
	return missed
}

// windowElapsed reports whether the window's end hour plus the grace margin
// has been reached. The boundary is inclusive: a dose becomes missed at
// exactly end+grace, not a minute before.
func (r *Reconciler) windowElapsed(w schedule.Window, now time.Time) bool {
	y, m, d := now.Date()
	deadline := time.Date(y, m, d, w.End, 0, 0, 0, now.Location()).Add(r.config.Grace)
	return !now.Before(deadline)
}
