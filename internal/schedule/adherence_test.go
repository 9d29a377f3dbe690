package schedule

import (
	"testing"
	"time"

	"github.com/carebridge/carelink/internal/domain/patient"
)

func TestSummarizeAdherenceRate(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	day := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC) }

	intakes := []patient.IntakeRecord{
		rec("a", "rx1", day(8, 7), patient.StatusTaken),
		rec("b", "rx1", day(8, 13), patient.StatusTaken),
		rec("c", "rx1", day(9, 7), patient.StatusMissed),
		rec("d", "rx1", day(9, 13), patient.StatusSkipped),
		rec("e", "rx1", day(10, 7), patient.StatusPending),
	}

	_, stats := Summarize(intakes, now, 7)
	if stats.Total != 5 {
		t.Errorf("Total = %d, want 5", stats.Total)
	}
	if stats.Taken != 2 || stats.Missed != 1 || stats.Skipped != 1 || stats.Pending != 1 {
		t.Errorf("counts = %+v", stats)
	}
	// 2 taken / 4 decided = 50%.
	if stats.AdherenceRate != 50.0 {
		t.Errorf("AdherenceRate = %v, want 50.0", stats.AdherenceRate)
	}
}

func TestSummarizeRateRoundsToOneDecimal(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	at := time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC)

	// 2 taken of 3 decided: 66.666... rounds to 66.7.
	intakes := []patient.IntakeRecord{
		rec("a", "rx1", at, patient.StatusTaken),
		rec("b", "rx1", at, patient.StatusTaken),
		rec("c", "rx1", at, patient.StatusMissed),
	}

	_, stats := Summarize(intakes, now, 7)
	if stats.AdherenceRate != 66.7 {
		t.Errorf("AdherenceRate = %v, want 66.7", stats.AdherenceRate)
	}
}

func TestSummarizeZeroDenominator(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	_, stats := Summarize(nil, now, 7)
	if stats.AdherenceRate != 0 {
		t.Errorf("empty history rate = %v, want 0", stats.AdherenceRate)
	}

	onlyPending := []patient.IntakeRecord{
		rec("a", "rx1", time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC), patient.StatusPending),
	}
	_, stats = Summarize(onlyPending, now, 7)
	if stats.AdherenceRate != 0 {
		t.Errorf("all-pending rate = %v, want 0", stats.AdherenceRate)
	}
}

func TestSummarizeLookbackCutoff(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	intakes := []patient.IntakeRecord{
		rec("old", "rx1", now.AddDate(0, 0, -8), patient.StatusMissed),
		rec("recent", "rx1", now.AddDate(0, 0, -2), patient.StatusTaken),
	}

	history, stats := Summarize(intakes, now, 7)
	if len(history) != 1 || history[0].ID != "recent" {
		t.Fatalf("history = %v, want only the recent record", history)
	}
	if stats.AdherenceRate != 100.0 {
		t.Errorf("AdherenceRate = %v, want 100.0", stats.AdherenceRate)
	}
}

func TestSummarizeHistoryNewestFirst(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	intakes := []patient.IntakeRecord{
		rec("a", "rx1", now.AddDate(0, 0, -3), patient.StatusTaken),
		rec("b", "rx1", now.AddDate(0, 0, -1), patient.StatusTaken),
		rec("c", "rx1", now.AddDate(0, 0, -2), patient.StatusTaken),
	}

	history, _ := Summarize(intakes, now, 7)
	for i := 1; i < len(history); i++ {
		if history[i].ScheduledTime.After(history[i-1].ScheduledTime) {
			t.Errorf("history not sorted newest first at index %d", i)
		}
	}
}

func TestSummarizeDefaultLookback(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	intakes := []patient.IntakeRecord{
		rec("a", "rx1", now.AddDate(0, 0, -6), patient.StatusTaken),
		rec("b", "rx1", now.AddDate(0, 0, -8), patient.StatusTaken),
	}

	history, _ := Summarize(intakes, now, 0)
	if len(history) != 1 {
		t.Errorf("days<=0 should fall back to %d-day lookback, got %d records",
			DefaultLookbackDays, len(history))
	}
}
