package schedule

import (
	"math"
	"sort"
	"time"

	"github.com/carebridge/carelink/internal/domain/patient"
)

// Stats summarizes a patient's intake history over a lookback window.
type Stats struct {
	Total         int     `json:"total"`
	Taken         int     `json:"taken"`
	Missed        int     `json:"missed"`
	Skipped       int     `json:"skipped"`
	Pending       int     `json:"pending"`
	AdherenceRate float64 `json:"adherence_rate"`
}

// DefaultLookbackDays is the history window when the caller gives none.
const DefaultLookbackDays = 7

// Summarize returns the intake records scheduled within the last `days` days
// of now, most recent first, with counts by status and the adherence rate:
// taken over non-pending records, as a percentage rounded to one decimal.
// With no non-pending records the rate is 0, never NaN.
func Summarize(intakes []patient.IntakeRecord, now time.Time, days int) ([]patient.IntakeRecord, Stats) {
	if days <= 0 {
		days = DefaultLookbackDays
	}
	cutoff := now.AddDate(0, 0, -days)

	history := make([]patient.IntakeRecord, 0)
	var stats Stats
	for _, rec := range intakes {
		if rec.ScheduledTime.Before(cutoff) {
			continue
		}
		history = append(history, rec)
		stats.Total++
		switch rec.Status {
		case patient.StatusTaken:
			stats.Taken++
		case patient.StatusMissed:
			stats.Missed++
		case patient.StatusSkipped:
			stats.Skipped++
		case patient.StatusPending:
			stats.Pending++
		}
	}

	if decided := stats.Total - stats.Pending; decided > 0 {
		rate := float64(stats.Taken) / float64(decided) * 100
		stats.AdherenceRate = math.Round(rate*10) / 10
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].ScheduledTime.After(history[j].ScheduledTime)
	})
	return history, stats
}
