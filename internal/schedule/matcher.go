package schedule

import (
	"time"

	"github.com/carebridge/carelink/internal/domain/patient"
)

// StatusSet selects which intake statuses count as a match for a slot. The
// projector and the reconciler deliberately use different sets (see below),
// so the set is always passed explicitly.
type StatusSet map[patient.IntakeStatus]struct{}

// Contains reports whether s includes status.
func (s StatusSet) Contains(status patient.IntakeStatus) bool {
	_, ok := s[status]
	return ok
}

// RecordedStatuses is the projector's blocking set: any record for a slot,
// pending included, removes it from today's list.
var RecordedStatuses = StatusSet{
	patient.StatusPending: {},
	patient.StatusTaken:   {},
	patient.StatusMissed:  {},
	patient.StatusSkipped: {},
}

// TerminalStatuses is the reconciler's blocking set: only a decided outcome
// prevents a missed mark. A lingering pending record does not, so it can be
// superseded by the automatic missed record once the window elapses.
var TerminalStatuses = StatusSet{
	patient.StatusTaken:   {},
	patient.StatusMissed:  {},
	patient.StatusSkipped: {},
}

// FindRecord returns the first intake record matching the candidate slot
// (prescriptionID, window, on day's calendar date) whose status is in
// statuses, or nil. A record matches when its scheduled time falls on the
// same calendar day, belongs to the same prescription, and its hour of day
// lies inside the window, bounds inclusive.
func FindRecord(intakes []patient.IntakeRecord, day time.Time, prescriptionID string, w Window, statuses StatusSet) *patient.IntakeRecord {
	y, m, d := day.Date()
	for i := range intakes {
		rec := &intakes[i]
		if rec.PrescriptionID != prescriptionID {
			continue
		}
		at := rec.ScheduledTime.In(day.Location())
		ry, rm, rd := at.Date()
		if ry != y || rm != m || rd != d {
			continue
		}
		if !w.ContainsHour(at.Hour()) {
			continue
		}
		if statuses.Contains(rec.Status) {
			return rec
		}
	}
	return nil
}

// HasRecord reports whether a matching record exists for the candidate slot.
func HasRecord(intakes []patient.IntakeRecord, day time.Time, prescriptionID string, w Window, statuses StatusSet) bool {
	return FindRecord(intakes, day, prescriptionID, w, statuses) != nil
}
