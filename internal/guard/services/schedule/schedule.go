// Package schedule decides whether day-of-week and wall-clock windows are active.
package schedule

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/haukened/siteguard/internal/guard/domain"
)

// ErrInvalidClock is returned by ParseClock for anything but a valid HH:MM value.
var ErrInvalidClock = errors.New("invalid clock value")

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(domain.ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// clockOrMidnight resolves a schedule boundary. Missing or unparsable values
// are midnight (00:00).
func clockOrMidnight(s string) int {
	m, err := ParseClock(s)
	if err != nil {
		return 0
	}
	return m
}

// IsDayActive reports whether now's weekday (0=Sunday) is in days.
func IsDayActive(days []int, now time.Time) bool {
	return slices.Contains(days, int(now.Weekday()))
}

// IsTimeInRange reports whether now's wall-clock minute falls in [start, end].
// When end is before start the window spans midnight and is active if now is
// at or after start, or at or before end.
func IsTimeInRange(start, end string, now time.Time) bool {
	s, e := clockOrMidnight(start), clockOrMidnight(end)
	cur := now.Hour()*60 + now.Minute()
	if e < s {
		return cur >= s || cur <= e
	}
	return s <= cur && cur <= e
}

// Active reports whether a schedule covers now, on both day and time.
func Active(s domain.Schedule, now time.Time) bool {
	return IsDayActive(s.Days, now) && IsTimeInRange(s.StartTime, s.EndTime, now)
}
