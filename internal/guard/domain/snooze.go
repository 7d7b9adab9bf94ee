package domain

import "time"

// SnoozeState is the process-wide override. While active it suppresses every
// other verdict. UntilMs is a Unix timestamp in milliseconds; zero means unset.
type SnoozeState struct {
	UntilMs int64 `json:"untilMs"`
}

// NewSnoozeState returns a state that is active until the given instant.
func NewSnoozeState(until time.Time) SnoozeState {
	return SnoozeState{UntilMs: until.UnixMilli()}
}

// IsActive reports whether now is strictly before the snooze deadline.
func (s SnoozeState) IsActive(now time.Time) bool {
	return now.UnixMilli() < s.UntilMs
}

// IsSet reports whether any deadline is recorded, expired or not.
func (s SnoozeState) IsSet() bool { return s.UntilMs > 0 }

// Until returns the deadline as a time.Time.
func (s SnoozeState) Until() time.Time {
	return time.UnixMilli(s.UntilMs)
}
