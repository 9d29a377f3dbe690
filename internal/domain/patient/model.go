// Package patient defines the patient document model and its persistence.
// A patient owns its medical history and medicine intake log; both are stored
// embedded in the patient document.
package patient

import (
	"time"
)

// IntakeStatus is the recorded outcome of one scheduled dose.
type IntakeStatus string

const (
	StatusPending IntakeStatus = "pending"
	StatusTaken   IntakeStatus = "taken"
	StatusMissed  IntakeStatus = "missed"
	StatusSkipped IntakeStatus = "skipped"
)

// Valid reports whether s is one of the four known statuses.
func (s IntakeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether s represents a decided outcome. A pending record is
// a placeholder and may later be superseded by an automatic missed mark.
func (s IntakeStatus) Terminal() bool {
	return s == StatusTaken || s == StatusMissed || s == StatusSkipped
}

// Prescription is one medicine order within a medical-history visit.
type Prescription struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Color        string     `json:"color,omitempty"`
	Dosage       string     `json:"dosage,omitempty"`       // e.g. "1 tablet", "2 ml"
	Frequency    string     `json:"frequency,omitempty"`    // e.g. "3 times a day"
	AcceptedTime string     `json:"acceptedtime,omitempty"` // dosing windows: "5-9, 11-15, 17-22"
	DurationDays int        `json:"duration_days,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
	IsActive     bool       `json:"is_active"`
}

// ExpiresAt returns the prescription's effective end. EndDate is fixed at
// creation; when absent it is derived from start + duration.
func (p *Prescription) ExpiresAt() time.Time {
	if p.EndDate != nil {
		return *p.EndDate
	}
	return p.StartDate.AddDate(0, 0, p.DurationDays)
}

// ActiveAt reports whether the prescription is currently active: flagged
// active and now within [start, end].
func (p *Prescription) ActiveAt(now time.Time) bool {
	return p.IsActive && !now.Before(p.StartDate) && !now.After(p.ExpiresAt())
}

// MedicalHistoryEntry records one visit, including the prescriptions written.
type MedicalHistoryEntry struct {
	ID            string         `json:"id"`
	Dept          string         `json:"dept"`
	DoctorName    string         `json:"doctor_name,omitempty"`
	Followup      *time.Time     `json:"followup,omitempty"`
	AlertType     string         `json:"alert_type,omitempty"`
	Problem       string         `json:"problem,omitempty"`
	Prescriptions []Prescription `json:"prescription"`
	VisitDate     time.Time      `json:"visit_date"`
}

// IntakeRecord is one persisted intake event. Records are append-only: a
// patient action or the reconciler creates a new entry, never edits one.
type IntakeRecord struct {
	ID             string       `json:"id"`
	PrescriptionID string       `json:"prescription_id"`
	MedicineName   string       `json:"medicine_name"`
	ScheduledTime  time.Time    `json:"scheduled_time"`
	TakenTime      *time.Time   `json:"taken_time,omitempty"`
	Status         IntakeStatus `json:"status"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// ReminderSettings controls client-side dose reminders.
type ReminderSettings struct {
	Enabled               bool   `json:"enabled"`
	NotificationMethod    string `json:"notification_method,omitempty"` // app | sms | both
	ReminderBeforeMinutes int    `json:"reminder_before_minutes,omitempty"`
}

// AlertStatus is the latest risk assessment for the patient.
type AlertStatus struct {
	Level         string     `json:"level,omitempty"` // ignore | low | medium | high
	Confidence    float64    `json:"confidence,omitempty"`
	LastPredicted *time.Time `json:"last_predicted,omitempty"`
	RiskScore     float64    `json:"risk_score,omitempty"`
	RiskFactors   []string   `json:"risk_factors,omitempty"`
}

// CurrentAlerts tracks the patient's open alert state.
type CurrentAlerts struct {
	HasActiveSOS             bool   `json:"has_active_sos"`
	HasActiveMedicationAlert bool   `json:"has_active_medication_alert"`
	LatestAlertID            string `json:"latest_alert_id,omitempty"`
	LatestAlertType          string `json:"latest_alert_type,omitempty"`
	AlertCountLast7Days      int    `json:"alert_count_last_7_days"`
}

// Patient is the aggregate document. MedHistory and MedicineIntakes are owned
// exclusively by the patient and deleted with it.
type Patient struct {
	ID                       string                `json:"id"`
	Name                     string                `json:"name"`
	Sex                      string                `json:"sex"` // M | F | N
	Age                      int                   `json:"age"`
	PhoneNumber              string                `json:"ph_number"`
	Address                  string                `json:"address,omitempty"`
	MedHistory               []MedicalHistoryEntry `json:"med_history"`
	MedicineIntakes          []IntakeRecord        `json:"medicine_intakes"`
	ReminderSettings         ReminderSettings      `json:"reminder_settings"`
	PreviousHospitalizations int                   `json:"previous_hospitalizations"`
	AlertStatus              AlertStatus           `json:"alert_status"`
	CurrentAlerts            CurrentAlerts         `json:"current_alerts"`
	CreatedAt                time.Time             `json:"createdAt"`
	UpdatedAt                time.Time             `json:"updatedAt"`
}

// ActivePrescription is a prescription annotated with the visit context it was
// written in, as returned by ActivePrescriptions.
type ActivePrescription struct {
	Prescription
	HistoryID  string `json:"history_id"`
	Dept       string `json:"dept"`
	DoctorName string `json:"doctor_name,omitempty"`
}

// ActivePrescriptions returns every prescription across the patient's medical
// history that is active at now, each carrying its visit's dept and doctor.
func (p *Patient) ActivePrescriptions(now time.Time) []ActivePrescription {
	var active []ActivePrescription
	for _, h := range p.MedHistory {
		for _, rx := range h.Prescriptions {
			if rx.ActiveAt(now) {
				active = append(active, ActivePrescription{
					Prescription: rx,
					HistoryID:    h.ID,
					Dept:         h.Dept,
					DoctorName:   h.DoctorName,
				})
			}
		}
	}
	return active
}

// IntakesOn returns the patient's intake records whose scheduled time falls on
// the same calendar day as day, in day's location.
func (p *Patient) IntakesOn(day time.Time) []IntakeRecord {
	y, m, d := day.Date()
	var out []IntakeRecord
	for _, rec := range p.MedicineIntakes {
		ry, rm, rd := rec.ScheduledTime.In(day.Location()).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, rec)
		}
	}
	return out
}
