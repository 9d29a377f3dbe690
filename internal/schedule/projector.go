package schedule

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/carelink/internal/domain/patient"
)

// Slot is one dose due today: a (prescription, window) pair with its display
// attributes and representative scheduled time. Slots are derived on each
// read, never persisted.
type Slot struct {
	PrescriptionID string    `json:"prescription_id"`
	MedicineName   string    `json:"medicine_name"`
	Color          string    `json:"color,omitempty"`
	Dosage         string    `json:"dosage,omitempty"`
	Instructions   string    `json:"instructions,omitempty"`
	Dept           string    `json:"dept,omitempty"`
	DoctorName     string    `json:"doctor_name,omitempty"`
	TimeRange      Window    `json:"time_range"`
	ScheduledTime  time.Time `json:"scheduled_time"`
}

// Project builds today's schedule: one slot per (active prescription, parsed
// window), minus slots that already have any intake record today (pending
// included). A prescription whose schedule string fails to parse is logged
// and contributes no slots; it never fails the whole schedule.
func Project(active []patient.ActivePrescription, intakes []patient.IntakeRecord, now time.Time, logger *zap.Logger) []Slot {
	if logger == nil {
		logger = zap.NewNop()
	}

	today := intakesOn(intakes, now)

	var slots []Slot
	for _, rx := range active {
		if rx.AcceptedTime == "" {
			continue
		}
		windows, err := ParseWindows(rx.AcceptedTime)
		if err != nil {
			logger.Warn("skipping prescription with unparsable schedule",
				zap.String("prescription_id", rx.ID),
				zap.String("medicine", rx.Name),
				zap.String("acceptedtime", rx.AcceptedTime),
				zap.Error(err))
			continue
		}
		for _, w := range windows {
			if HasRecord(today, now, rx.ID, w, RecordedStatuses) {
				continue
			}
			slots = append(slots, Slot{
				PrescriptionID: rx.ID,
				MedicineName:   rx.Name,
				Color:          rx.Color,
				Dosage:         rx.Dosage,
				Instructions:   rx.Instructions,
				Dept:           rx.Dept,
				DoctorName:     rx.DoctorName,
				TimeRange:      w,
				ScheduledTime:  w.ScheduledTime(now),
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].ScheduledTime.Before(slots[j].ScheduledTime)
	})
	return slots
}

func intakesOn(intakes []patient.IntakeRecord, day time.Time) []patient.IntakeRecord {
	y, m, d := day.Date()
	var out []patient.IntakeRecord
	for _, rec := range intakes {
		ry, rm, rd := rec.ScheduledTime.In(day.Location()).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, rec)
		}
	}
	return out
}
