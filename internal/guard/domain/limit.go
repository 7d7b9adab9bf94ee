package domain

import (
	"fmt"
	"strings"
)

// TargetType selects what a LimitRecord counts usage against.
type TargetType uint8

const (
	// TargetSite counts a domain and all of its subdomains.
	TargetSite TargetType = iota
	// TargetCategory counts every domain resolving to a category.
	TargetCategory
)

// String returns the stored representation of the target type.
func (t TargetType) String() string {
	switch t {
	case TargetSite:
		return "site"
	case TargetCategory:
		return "category"
	default:
		return fmt.Sprintf("TargetType(%d)", t)
	}
}

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool { return t <= TargetCategory }

// ParseTargetType converts "site" or "category" (case-insensitive) into a TargetType.
// An empty string yields DefaultTargetType.
func ParseTargetType(s string) (TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultTargetType, nil
	case "site":
		return TargetSite, nil
	case "category":
		return TargetCategory, nil
	default:
		return 0, fmt.Errorf("unsupported TargetType: %q", s)
	}
}

func (t TargetType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TargetType) UnmarshalText(b []byte) error {
	v, err := ParseTargetType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Timeframe is the recurring window a quota applies to.
type Timeframe uint8

const (
	TimeframeDaily Timeframe = iota
	TimeframeWeekly
	TimeframeMonthly
)

// String returns the stored representation of the timeframe.
func (t Timeframe) String() string {
	switch t {
	case TimeframeDaily:
		return "daily"
	case TimeframeWeekly:
		return "weekly"
	case TimeframeMonthly:
		return "monthly"
	default:
		return fmt.Sprintf("Timeframe(%d)", t)
	}
}

// Valid reports whether t is a known timeframe.
func (t Timeframe) Valid() bool { return t <= TimeframeMonthly }

// ParseTimeframe converts "daily", "weekly" or "monthly" into a Timeframe.
// An empty string yields DefaultTimeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultTimeframe, nil
	case "daily":
		return TimeframeDaily, nil
	case "weekly":
		return TimeframeWeekly, nil
	case "monthly":
		return TimeframeMonthly, nil
	default:
		return 0, fmt.Errorf("unsupported Timeframe: %q", s)
	}
}

func (t Timeframe) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Timeframe) UnmarshalText(b []byte) error {
	v, err := ParseTimeframe(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// LimitRecord is a usage quota for a site or category. Whether it is currently
// exceeded is always derived from usage, never stored.
type LimitRecord struct {
	ID           string     `json:"id"`
	TargetType   TargetType `json:"targetType" validate:"enum"`
	TargetID     string     `json:"targetId" validate:"required"`
	Timeframe    Timeframe  `json:"timeframe" validate:"enum"`
	LimitMinutes int        `json:"limitMinutes" validate:"gt=0"`
	DisplayName  string     `json:"displayName,omitempty"`
}

// LimitSeconds returns the quota in seconds.
func (l LimitRecord) LimitSeconds() int64 { return int64(l.LimitMinutes) * 60 }

// Validate checks the record for required fields and supported values.
func (l LimitRecord) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("limit %q: %w", l.ID, err)
	}
	return nil
}
