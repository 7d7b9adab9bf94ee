package domain

import (
	"encoding/json"
	"testing"
)

func TestTimeRuleDefaults(t *testing.T) {
	var r TimeRule
	if err := json.Unmarshal([]byte(`{"id":"r1","schedule":{},"targets":[{"value":"a.com"}]}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	r.ApplyDefaults()

	if !r.Enabled {
		t.Errorf("Enabled = false, want default true")
	}
	if r.Name != "r1" {
		t.Errorf("Name = %q, want r1", r.Name)
	}
	if r.Priority != DefaultPriority {
		t.Errorf("Priority = %d, want %d", r.Priority, DefaultPriority)
	}
	if r.Schedule.StartTime != "00:00" || r.Schedule.EndTime != "00:00" {
		t.Errorf("schedule = %q-%q, want 00:00-00:00", r.Schedule.StartTime, r.Schedule.EndTime)
	}
	if r.Schedule.Days == nil || len(r.Schedule.Days) != 0 {
		t.Errorf("Days = %v, want empty", r.Schedule.Days)
	}
	tg := r.Targets[0]
	if tg.Type != RuleTargetDomain || tg.Action != ActionBlock {
		t.Errorf("target = %+v, want domain/block defaults", tg)
	}
}

func TestExplicitDisabledIsKept(t *testing.T) {
	var r TimeRule
	if err := json.Unmarshal([]byte(`{"id":"r1","enabled":false}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Enabled {
		t.Errorf("Enabled = true, want false")
	}

	var p URLPattern
	if err := json.Unmarshal([]byte(`{"id":"p1","pattern":"a.com","enabled":false}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Enabled {
		t.Errorf("pattern Enabled = true, want false")
	}
	if p.Type != PatternExact {
		t.Errorf("pattern Type = %v, want exact", p.Type)
	}
}

func TestLimitDefaults(t *testing.T) {
	l := LimitRecord{ID: "l1", TargetID: "youtube.com", LimitMinutes: 30}
	l.ApplyDefaults()
	if l.DisplayName != "youtube.com" {
		t.Errorf("DisplayName = %q", l.DisplayName)
	}
	if l.Timeframe != TimeframeDaily || l.TargetType != TargetSite {
		t.Errorf("zero-value enums = %v/%v, want daily/site", l.Timeframe, l.TargetType)
	}
	if l.LimitSeconds() != 1800 {
		t.Errorf("LimitSeconds = %d, want 1800", l.LimitSeconds())
	}
}
