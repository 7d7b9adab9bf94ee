package domain

import (
	"fmt"
	"strings"
)

// WindowMode selects how weekly and monthly quota windows are bounded.
type WindowMode uint8

const (
	// WindowCalendar aligns weeks to Sunday and months to day 1.
	WindowCalendar WindowMode = iota
	// WindowRolling looks back 7 or 30 days including today.
	WindowRolling
)

// DefaultWindowMode is used when no mode is configured.
const DefaultWindowMode = WindowCalendar

func (w WindowMode) String() string {
	switch w {
	case WindowCalendar:
		return "calendar"
	case WindowRolling:
		return "rolling"
	default:
		return fmt.Sprintf("WindowMode(%d)", w)
	}
}

// Valid reports whether w is a known window mode.
func (w WindowMode) Valid() bool { return w <= WindowRolling }

// ParseWindowMode converts "calendar" or "rolling" into a WindowMode.
// An empty string yields DefaultWindowMode.
func ParseWindowMode(s string) (WindowMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultWindowMode, nil
	case "calendar":
		return WindowCalendar, nil
	case "rolling":
		return WindowRolling, nil
	default:
		return 0, fmt.Errorf("unsupported WindowMode: %q", s)
	}
}

func (w WindowMode) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *WindowMode) UnmarshalText(b []byte) error {
	v, err := ParseWindowMode(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}
