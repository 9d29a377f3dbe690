// Package reminder publishes due-dose reminders. The scheduler walks patients
// with reminders enabled, finds dosing windows that are open right now with no
// intake recorded yet, and publishes one event per due slot. Publishing is
// deliberately at-least-once; the alert dispatcher's inbox keeps a patient
// from being reminded twice for the same dose.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/carelink/internal/domain/patient"
	"github.com/carebridge/carelink/internal/infrastructure/redpanda"
	"github.com/carebridge/carelink/internal/observability/metrics"
	"github.com/carebridge/carelink/internal/schedule"
)

// Store is the patient lookup the scheduler needs.
type Store interface {
	FindWithActivePrescriptions(ctx context.Context) ([]*patient.Patient, error)
}

// Publisher sends one event to a topic.
type Publisher interface {
	ProduceMessage(ctx context.Context, topic, key string, value []byte) error
}

// DueEvent is the payload published for one open, unrecorded dosing slot.
type DueEvent struct {
	PatientID      string          `json:"patient_id"`
	PatientName    string          `json:"patient_name"`
	PrescriptionID string          `json:"prescription_id"`
	MedicineName   string          `json:"medicine_name"`
	Dosage         string          `json:"dosage,omitempty"`
	Instructions   string          `json:"instructions,omitempty"`
	TimeRange      schedule.Window `json:"time_range"`
	ScheduledTime  time.Time       `json:"scheduled_time"`
	DueAt          time.Time       `json:"due_at"`
}

// Summary reports one scheduler pass.
type Summary struct {
	PatientsChecked    int `json:"patients_checked"`
	RemindersPublished int `json:"reminders_published"`
	Errors             int `json:"errors"`
}

// Scheduler publishes due-dose reminders.
type Scheduler struct {
	store     Store
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New creates a scheduler.
func New(store Store, publisher Publisher, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Run performs one reminder pass at now. A slot is due when its window
// contains the current hour and the patient has no intake record for it
// today, pending included: a patient who already opened the dose sheet and
// logged anything does not need a nudge. Publish failures are counted and
// skipped; the next pass retries them.
func (s *Scheduler) Run(ctx context.Context, now time.Time) (*Summary, error) {
	patients, err := s.store.FindWithActivePrescriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	summary := &Summary{}
	for _, p := range patients {
		if !p.ReminderSettings.Enabled {
			continue
		}
		summary.PatientsChecked++

		for _, rx := range p.ActivePrescriptions(now) {
			if rx.AcceptedTime == "" {
				continue
			}
			windows, err := schedule.ParseWindows(rx.AcceptedTime)
			if err != nil {
				s.logger.Warn("skipping prescription with unparsable schedule",
					zap.String("patient_id", p.ID),
					zap.String("prescription_id", rx.ID),
					zap.Error(err))
				continue
			}
			for _, w := range windows {
				if !w.ContainsHour(now.Hour()) {
					continue
				}
				if schedule.HasRecord(p.MedicineIntakes, now, rx.ID, w, schedule.RecordedStatuses) {
					continue
				}
				if err := s.publish(ctx, p, rx, w, now); err != nil {
					summary.Errors++
					s.logger.Error("reminder publish failed",
						zap.String("patient_id", p.ID),
						zap.String("prescription_id", rx.ID),
						zap.Error(err))
					continue
				}
				summary.RemindersPublished++
				if s.metrics != nil {
					s.metrics.RemindersPublished.Inc()
				}
			}
		}
	}

	s.logger.Info("reminder pass completed",
		zap.Int("patients_checked", summary.PatientsChecked),
		zap.Int("reminders_published", summary.RemindersPublished),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

func (s *Scheduler) publish(ctx context.Context, p *patient.Patient, rx patient.ActivePrescription, w schedule.Window, now time.Time) error {
	event := DueEvent{
		PatientID:      p.ID,
		PatientName:    p.Name,
		PrescriptionID: rx.ID,
		MedicineName:   rx.Name,
		Dosage:         rx.Dosage,
		Instructions:   rx.Instructions,
		TimeRange:      w,
		ScheduledTime:  w.ScheduledTime(now),
		DueAt:          now,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal reminder event: %w", err)
	}
	return s.publisher.ProduceMessage(ctx, redpanda.TopicRemindersDue, p.ID, payload)
}
