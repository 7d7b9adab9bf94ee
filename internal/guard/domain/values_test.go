package domain

import (
	"testing"
	"time"
)

func TestDateKey(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	ts := time.Date(2024, 3, 9, 23, 30, 0, 0, loc)
	if got := DateKey(ts); got != "2024-03-09" {
		t.Errorf("DateKey = %q, want 2024-03-09", got)
	}
	back, err := ParseDateKey("2024-03-09", loc)
	if err != nil {
		t.Fatalf("ParseDateKey: %v", err)
	}
	if !back.Equal(time.Date(2024, 3, 9, 0, 0, 0, 0, loc)) {
		t.Errorf("ParseDateKey = %v", back)
	}
	if _, err := ParseDateKey("2024-3-9", loc); err == nil {
		t.Errorf("expected error for malformed key")
	}
}

func TestSnoozeState(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	s := NewSnoozeState(now.Add(time.Minute))
	if !s.IsActive(now) {
		t.Errorf("snooze should be active before deadline")
	}
	if s.IsActive(now.Add(time.Minute)) {
		t.Errorf("snooze should be inactive at the deadline")
	}
	if !s.IsSet() {
		t.Errorf("IsSet = false")
	}
	if (SnoozeState{}).IsActive(now) {
		t.Errorf("zero state should be inactive")
	}
	if !s.Until().Equal(now.Add(time.Minute)) {
		t.Errorf("Until = %v", s.Until())
	}
}

func TestBlockSetHasDomain(t *testing.T) {
	b := BlockSet{Domains: []string{"a.com", "b.com", "c.org"}}
	if !b.HasDomain("b.com") || b.HasDomain("d.com") {
		t.Errorf("HasDomain mismatch")
	}
	if b.Len() != 3 {
		t.Errorf("Len = %d", b.Len())
	}
}

func TestDecision(t *testing.T) {
	d := Allow()
	if d.Blocked || d.Matched() {
		t.Errorf("Allow() = %+v", d)
	}
	d = Decision{Blocked: true, Source: SourceRule}
	if !d.Matched() {
		t.Errorf("Matched = false")
	}
}
