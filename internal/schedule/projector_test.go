package schedule

import (
	"testing"
	"time"

	"github.com/carebridge/carelink/internal/domain/patient"
)

func activeRx(id, name, acceptedTime string) patient.ActivePrescription {
	return patient.ActivePrescription{
		Prescription: patient.Prescription{
			ID:           id,
			Name:         name,
			AcceptedTime: acceptedTime,
			IsActive:     true,
		},
		Dept: "Geriatrics",
	}
}

func TestProjectOneSlotPerWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	active := []patient.ActivePrescription{activeRx("rx1", "Metformin", "5-9, 11-15, 17-22")}

	slots := Project(active, nil, now, nil)
	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(slots))
	}
	wantHours := []int{7, 13, 19}
	for i, slot := range slots {
		if slot.ScheduledTime.Hour() != wantHours[i] {
			t.Errorf("slot %d scheduled at hour %d, want %d", i, slot.ScheduledTime.Hour(), wantHours[i])
		}
	}
}

func TestProjectSortedByScheduledTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	active := []patient.ActivePrescription{
		activeRx("rx-late", "Amlodipine", "17-22"),
		activeRx("rx-early", "Metformin", "5-9"),
		activeRx("rx-mid", "Lisinopril", "11-15"),
	}

	slots := Project(active, nil, now, nil)
	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].ScheduledTime.Before(slots[i-1].ScheduledTime) {
			t.Errorf("slots out of order: %v before %v", slots[i].ScheduledTime, slots[i-1].ScheduledTime)
		}
	}
	if slots[0].PrescriptionID != "rx-early" || slots[2].PrescriptionID != "rx-late" {
		t.Errorf("unexpected order: %s, %s, %s",
			slots[0].PrescriptionID, slots[1].PrescriptionID, slots[2].PrescriptionID)
	}
}

func TestProjectExcludesRecordedSlots(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	active := []patient.ActivePrescription{activeRx("rx1", "Metformin", "5-9, 11-15")}

	intakes := []patient.IntakeRecord{
		rec("a", "rx1", time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC), patient.StatusTaken),
	}

	slots := Project(active, intakes, now, nil)
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if slots[0].TimeRange != (Window{11, 15}) {
		t.Errorf("remaining slot is %v, want {11 15}", slots[0].TimeRange)
	}
}

func TestProjectPendingRecordBlocksSlot(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	active := []patient.ActivePrescription{activeRx("rx1", "Metformin", "5-9")}

	intakes := []patient.IntakeRecord{
		rec("a", "rx1", time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC), patient.StatusPending),
	}

	if slots := Project(active, intakes, now, nil); len(slots) != 0 {
		t.Errorf("pending record should block the slot, got %d slots", len(slots))
	}
}

func TestProjectIgnoresYesterdaysRecords(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	active := []patient.ActivePrescription{activeRx("rx1", "Metformin", "5-9")}

	intakes := []patient.IntakeRecord{
		rec("a", "rx1", time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC), patient.StatusTaken),
	}

	if slots := Project(active, intakes, now, nil); len(slots) != 1 {
		t.Errorf("yesterday's record must not hide today's slot, got %d slots", len(slots))
	}
}

func TestProjectSkipsUnparsableSchedule(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	active := []patient.ActivePrescription{
		activeRx("rx-bad", "Mystery", "whenever"),
		activeRx("rx-good", "Metformin", "5-9"),
	}

	slots := Project(active, nil, now, nil)
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if slots[0].PrescriptionID != "rx-good" {
		t.Errorf("surviving slot belongs to %s, want rx-good", slots[0].PrescriptionID)
	}
}

func TestProjectSkipsEmptySchedule(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	active := []patient.ActivePrescription{activeRx("rx1", "Metformin", "")}

	if slots := Project(active, nil, now, nil); len(slots) != 0 {
		t.Errorf("empty schedule should produce no slots, got %d", len(slots))
	}
}
