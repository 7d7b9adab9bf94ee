package domain

import "time"

// DateKeyLayout is the layout of the calendar-day keys usage is filed under.
const DateKeyLayout = "2006-01-02"

// UsageEvent is an append-only fact: Seconds spent on Domain during the day DateKey.
type UsageEvent struct {
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
	DateKey string `json:"dateKey"`
}

// DateKey returns the calendar-day key of t in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a date key as midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, key, loc)
}
