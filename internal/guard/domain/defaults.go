package domain

import "encoding/json"

// Field defaults applied when a stored record omits a value.
const (
	DefaultStartTime      = "00:00"
	DefaultEndTime        = "00:00"
	DefaultPriority       = 0
	DefaultAction         = ActionBlock
	DefaultPatternType    = PatternExact
	DefaultTimeframe      = TimeframeDaily
	DefaultTargetType     = TargetSite
	DefaultRuleTargetType = RuleTargetDomain
	DefaultEnabled        = true
	DefaultCategoryName   = "Other"
)

// ApplyDefaults fills the zero-valued schedule fields. Days left empty means
// the schedule is active on no day.
func (s *Schedule) ApplyDefaults() {
	if s.StartTime == "" {
		s.StartTime = DefaultStartTime
	}
	if s.EndTime == "" {
		s.EndTime = DefaultEndTime
	}
	if s.Days == nil {
		s.Days = []int{}
	}
}

// ApplyDefaults fills the zero-valued rule fields.
func (r *TimeRule) ApplyDefaults() {
	r.Schedule.ApplyDefaults()
	if r.Name == "" {
		r.Name = r.ID
	}
}

// ApplyDefaults fills the zero-valued limit fields.
func (l *LimitRecord) ApplyDefaults() {
	if l.DisplayName == "" {
		l.DisplayName = l.TargetID
	}
}

// UnmarshalJSON decodes a rule, treating an absent "enabled" as DefaultEnabled.
func (r *TimeRule) UnmarshalJSON(b []byte) error {
	type plain TimeRule
	aux := struct {
		*plain
		Enabled *bool `json:"enabled"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Enabled = DefaultEnabled
	if aux.Enabled != nil {
		r.Enabled = *aux.Enabled
	}
	return nil
}

// UnmarshalJSON decodes a pattern, treating an absent "enabled" as DefaultEnabled.
func (p *URLPattern) UnmarshalJSON(b []byte) error {
	type plain URLPattern
	aux := struct {
		*plain
		Enabled *bool `json:"enabled"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.Enabled = DefaultEnabled
	if aux.Enabled != nil {
		p.Enabled = *aux.Enabled
	}
	return nil
}
