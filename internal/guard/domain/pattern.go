package domain

import (
	"fmt"
	"strings"
)

// PatternType selects how a URLPattern is evaluated.
type PatternType uint8

const (
	PatternExact PatternType = iota
	PatternContains
	PatternGlob
	PatternRegex
)

func (p PatternType) String() string {
	switch p {
	case PatternExact:
		return "exact"
	case PatternContains:
		return "contains"
	case PatternGlob:
		return "glob"
	case PatternRegex:
		return "regex"
	default:
		return fmt.Sprintf("PatternType(%d)", p)
	}
}

// Valid reports whether p is a known pattern type.
func (p PatternType) Valid() bool { return p <= PatternRegex }

// ParsePatternType converts "exact", "contains", "glob" or "regex" into a
// PatternType. An empty string yields DefaultPatternType.
func ParsePatternType(s string) (PatternType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultPatternType, nil
	case "exact":
		return PatternExact, nil
	case "contains":
		return PatternContains, nil
	case "glob":
		return PatternGlob, nil
	case "regex":
		return PatternRegex, nil
	default:
		return 0, fmt.Errorf("unsupported PatternType: %q", s)
	}
}

func (p PatternType) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PatternType) UnmarshalText(b []byte) error {
	v, err := ParsePatternType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// URLPattern matches URLs or domains independently of any schedule.
// A regex that fails to compile is a non-match, never an error at evaluation.
type URLPattern struct {
	ID           string      `json:"id"`
	Pattern      string      `json:"pattern" validate:"required"`
	Type         PatternType `json:"type" validate:"enum"`
	Enabled      bool        `json:"enabled"`
	Action       Action      `json:"action" validate:"enum"`
	LimitMinutes int         `json:"limitMinutes,omitempty" validate:"gte=0"`
}

// Validate checks the pattern for required fields and supported values.
// Regex syntax is deliberately not checked here.
func (p URLPattern) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("pattern %q: %w", p.ID, err)
	}
	return nil
}
