// Package schedule derives a patient's daily dosing schedule from their
// prescriptions and matches intake records against it.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is one daily dosing window, hours on a 0-23 clock.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// MidpointHour is the representative hour for the window's scheduled time.
func (w Window) MidpointHour() int {
	return (w.Start + w.End) / 2
}

// ScheduledTime returns the window's representative timestamp on day's
// calendar date: the midpoint hour with minutes and seconds zeroed.
func (w Window) ScheduledTime(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, w.MidpointHour(), 0, 0, 0, day.Location())
}

// ContainsHour reports whether hour lies within the window, bounds inclusive.
// The inclusive end matters: an intake logged at the window's boundary hour
// still satisfies the slot.
func (w Window) ContainsHour(hour int) bool {
	return hour >= w.Start && hour <= w.End
}

// ParseWindows parses a prescription's schedule string of comma-separated
// "start-end" hour ranges, e.g. "5-9, 11-15, 17-22", preserving segment
// order. An empty string yields no windows. A segment that is not two
// dash-separated integers is a recoverable per-prescription error: callers
// log it and treat the schedule as empty for the cycle.
//
// Ranges are not validated: overlapping windows pass through, and so does
// end < start (an overnight window like "22-2" is not supported and is
// treated as data entry to be surfaced, not interpreted).
func ParseWindows(s string) ([]Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	segments := strings.Split(s, ",")
	windows := make([]Window, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		parts := strings.Split(seg, "-")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid time range %q: want start-end", seg)
		}
		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start hour in %q: %w", seg, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end hour in %q: %w", seg, err)
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows, nil
}
