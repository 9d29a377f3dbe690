// Package metrics provides Prometheus metrics for the adherence engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	SweepRuns            prometheus.Counter
	SweepDuration        prometheus.Histogram
	SweepPatientsChecked prometheus.Counter
	SweepSlotsChecked    prometheus.Counter
	DosesMarkedMissed    prometheus.Counter
	SweepPatientErrors   prometheus.Counter
	IntakesRecorded      *prometheus.CounterVec
	ScheduleRequests     prometheus.Counter
	AlertsCreated        *prometheus.CounterVec
	RemindersPublished   prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationsFailed  prometheus.Counter
	OutboxPending        prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missed_dose_sweep_runs_total",
			Help: "Total missed-dose reconciliation sweeps",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "missed_dose_sweep_duration_seconds",
			Help:    "Duration of one reconciliation sweep",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		SweepPatientsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missed_dose_sweep_patients_checked_total",
			Help: "Patients examined across all sweeps",
		}),
		SweepSlotsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missed_dose_sweep_slots_checked_total",
			Help: "Dosing slots examined across all sweeps",
		}),
		DosesMarkedMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doses_marked_missed_total",
			Help: "Intake records synthesized as missed",
		}),
		SweepPatientErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "missed_dose_sweep_patient_errors_total",
			Help: "Patients skipped in a sweep due to errors",
		}),
		IntakesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medicine_intakes_recorded_total",
			Help: "Intake records created by patient actions",
		}, []string{"status"}),
		ScheduleRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "today_schedule_requests_total",
			Help: "Today-schedule reads served",
		}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_created_total",
			Help: "SOS alerts created, by triage category",
		}, []string{"category"}),
		RemindersPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medication_reminders_published_total",
			Help: "Due-dose reminder events published",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Push notifications delivered",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Push notification deliveries that failed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.SweepRuns,
		m.SweepDuration,
		m.SweepPatientsChecked,
		m.SweepSlotsChecked,
		m.DosesMarkedMissed,
		m.SweepPatientErrors,
		m.IntakesRecorded,
		m.ScheduleRequests,
		m.AlertsCreated,
		m.RemindersPublished,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
