package domain

import (
	"fmt"
	"strings"
)

// Action is what a matching rule target or pattern does.
type Action uint8

const (
	// ActionBlock denies access outright.
	ActionBlock Action = iota
	// ActionLimit allows access for a bounded number of minutes.
	ActionLimit
)

func (a Action) String() string {
	switch a {
	case ActionBlock:
		return "block"
	case ActionLimit:
		return "limit"
	default:
		return fmt.Sprintf("Action(%d)", a)
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool { return a <= ActionLimit }

// ParseAction converts "block" or "limit" into an Action. An empty string
// yields DefaultAction.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultAction, nil
	case "block":
		return ActionBlock, nil
	case "limit":
		return ActionLimit, nil
	default:
		return 0, fmt.Errorf("unsupported Action: %q", s)
	}
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// RuleTargetType selects how a rule target is matched against a domain.
type RuleTargetType uint8

const (
	// RuleTargetDomain matches the domain and its subdomains.
	RuleTargetDomain RuleTargetType = iota
	// RuleTargetCategory matches domains resolving to the category.
	RuleTargetCategory
	// RuleTargetPattern matches with a glob pattern.
	RuleTargetPattern
)

func (t RuleTargetType) String() string {
	switch t {
	case RuleTargetDomain:
		return "domain"
	case RuleTargetCategory:
		return "category"
	case RuleTargetPattern:
		return "pattern"
	default:
		return fmt.Sprintf("RuleTargetType(%d)", t)
	}
}

// Valid reports whether t is a known rule target type.
func (t RuleTargetType) Valid() bool { return t <= RuleTargetPattern }

// ParseRuleTargetType converts "domain", "category" or "pattern" into a
// RuleTargetType. An empty string yields DefaultRuleTargetType.
func ParseRuleTargetType(s string) (RuleTargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultRuleTargetType, nil
	case "domain":
		return RuleTargetDomain, nil
	case "category":
		return RuleTargetCategory, nil
	case "pattern":
		return RuleTargetPattern, nil
	default:
		return 0, fmt.Errorf("unsupported RuleTargetType: %q", s)
	}
}

func (t RuleTargetType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *RuleTargetType) UnmarshalText(b []byte) error {
	v, err := ParseRuleTargetType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Schedule is a day-of-week plus wall-clock window. Days use 0=Sunday.
// EndTime before StartTime denotes an overnight window.
type Schedule struct {
	Days      []int  `json:"days" validate:"dive,gte=0,lte=6"`
	StartTime string `json:"startTime" validate:"hhmm"`
	EndTime   string `json:"endTime" validate:"hhmm"`
}

// RuleTarget is one OR-matched target of a TimeRule.
type RuleTarget struct {
	Type         RuleTargetType `json:"type" validate:"enum"`
	Value        string         `json:"value" validate:"required"`
	Action       Action         `json:"action" validate:"enum"`
	LimitMinutes int            `json:"limitMinutes,omitempty" validate:"gte=0"`
}

// TimeRule is a scheduled rule. Higher Priority is evaluated first.
type TimeRule struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Enabled  bool         `json:"enabled"`
	Schedule Schedule     `json:"schedule"`
	Targets  []RuleTarget `json:"targets" validate:"dive"`
	Priority int          `json:"priority"`
}

// Validate checks the rule for required fields and supported values.
func (r TimeRule) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("rule %q: %w", r.ID, err)
	}
	return nil
}
