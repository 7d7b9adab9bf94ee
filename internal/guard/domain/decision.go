package domain

import "fmt"

// DecisionSource names the subsystem that produced a Decision.
type DecisionSource uint8

const (
	SourceNone DecisionSource = iota
	SourceSnooze
	SourceQuota
	SourceRule
	SourcePattern
)

func (s DecisionSource) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceSnooze:
		return "snooze"
	case SourceQuota:
		return "quota"
	case SourceRule:
		return "rule"
	case SourcePattern:
		return "pattern"
	default:
		return fmt.Sprintf("DecisionSource(%d)", s)
	}
}

func (s DecisionSource) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Decision is the outcome of evaluating one domain or URL.
// AllowedMinutes is set when a limit action let the request through.
type Decision struct {
	Blocked        bool           `json:"blocked"`
	Reason         string         `json:"reason,omitempty"`
	RuleName       string         `json:"ruleName,omitempty"`
	AllowedMinutes int            `json:"allowedMinutes,omitempty"`
	Source         DecisionSource `json:"source"`
}

// Allow returns the zero decision: not blocked, nothing matched.
func Allow() Decision { return Decision{} }

// Matched reports whether any rule or pattern produced this decision.
func (d Decision) Matched() bool { return d.Source != SourceNone }
