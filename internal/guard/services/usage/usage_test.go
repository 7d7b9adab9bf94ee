package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/store"
	"github.com/haukened/siteguard/internal/guard/services/category"
)

// Wednesday 2024-05-15, 10:00 local
var now = time.Date(2024, 5, 15, 10, 0, 0, 0, time.Local)

func ev(dom, key string, secs int64) domain.UsageEvent {
	return domain.UsageEvent{Domain: dom, DateKey: key, Seconds: secs}
}

func TestWindowStart(t *testing.T) {
	cal := NewAggregator(domain.WindowCalendar, nil)
	roll := NewAggregator(domain.WindowRolling, nil)

	cases := []struct {
		name string
		a    *Aggregator
		tf   domain.Timeframe
		want string
	}{
		{"daily", cal, domain.TimeframeDaily, "2024-05-15"},
		{"calendar week starts sunday", cal, domain.TimeframeWeekly, "2024-05-12"},
		{"calendar month starts day 1", cal, domain.TimeframeMonthly, "2024-05-01"},
		{"rolling week is 7 days", roll, domain.TimeframeWeekly, "2024-05-09"},
		{"rolling month is 30 days", roll, domain.TimeframeMonthly, "2024-04-16"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.DateKey(tc.a.WindowStart(tc.tf, now)))
		})
	}
}

func TestWindowStart_SundayIsFirstDay(t *testing.T) {
	sun := time.Date(2024, 5, 12, 8, 0, 0, 0, time.Local)
	a := NewAggregator(domain.WindowCalendar, nil)
	assert.Equal(t, "2024-05-12", domain.DateKey(a.WindowStart(domain.TimeframeWeekly, sun)))
}

func TestLookback(t *testing.T) {
	assert.Equal(t, "2024-05-01", domain.DateKey(NewAggregator(domain.WindowCalendar, nil).Lookback(now)))
	assert.Equal(t, "2024-04-16", domain.DateKey(NewAggregator(domain.WindowRolling, nil).Lookback(now)))

	// early in the month the calendar week reaches further back than the month
	early := time.Date(2024, 5, 2, 9, 0, 0, 0, time.Local) // Thursday
	assert.Equal(t, "2024-04-28", domain.DateKey(NewAggregator(domain.WindowCalendar, nil).Lookback(early)))
}

func TestAggregate_Daily(t *testing.T) {
	a := NewAggregator(domain.WindowCalendar, nil)
	events := []domain.UsageEvent{
		ev("youtube.com", "2024-05-15", 600),
		ev("youtube.com", "2024-05-15", 60),
		ev("m.youtube.com", "2024-05-15", 30),
		ev("youtube.com", "2024-05-14", 9999),
		ev("youtube.com", "2024-05-16", 9999), // future
		ev("youtube.com", "15/05/2024", 9999), // malformed
		ev("youtube.com", "2024-05-15", -10),
		ev("", "2024-05-15", 10),
	}
	got := a.Aggregate(events, domain.TimeframeDaily, GroupByDomain, now)
	assert.Equal(t, map[string]int64{"youtube.com": 660, "m.youtube.com": 30}, got)
}

func TestAggregate_Idempotent(t *testing.T) {
	a := NewAggregator(domain.WindowCalendar, nil)
	events := []domain.UsageEvent{ev("a.com", "2024-05-15", 100), ev("b.com", "2024-05-15", 50)}
	first := a.Aggregate(events, domain.TimeframeDaily, GroupByDomain, now)
	second := a.Aggregate(events, domain.TimeframeDaily, GroupByDomain, now)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(100), second["a.com"])
}

func TestAggregate_CalendarVersusRolling(t *testing.T) {
	events := []domain.UsageEvent{
		ev("a.com", "2024-05-11", 100), // Saturday before this calendar week
		ev("a.com", "2024-05-12", 10),  // Sunday
		ev("a.com", "2024-05-15", 1),
		ev("a.com", "2024-04-20", 1000), // last month, inside rolling 30 days
	}
	cal := NewAggregator(domain.WindowCalendar, nil)
	roll := NewAggregator(domain.WindowRolling, nil)

	assert.Equal(t, int64(11), cal.Aggregate(events, domain.TimeframeWeekly, GroupByDomain, now)["a.com"])
	assert.Equal(t, int64(111), roll.Aggregate(events, domain.TimeframeWeekly, GroupByDomain, now)["a.com"])
	assert.Equal(t, int64(111), cal.Aggregate(events, domain.TimeframeMonthly, GroupByDomain, now)["a.com"])
	assert.Equal(t, int64(1111), roll.Aggregate(events, domain.TimeframeMonthly, GroupByDomain, now)["a.com"])
}

func TestAggregate_ByCategory(t *testing.T) {
	r := category.NewResolver(map[string]string{"google.com": "Work"})
	a := NewAggregator(domain.WindowCalendar, r)
	events := []domain.UsageEvent{
		ev("mail.google.com", "2024-05-15", 100),
		ev("docs.google.com", "2024-05-15", 50),
		ev("reddit.com", "2024-05-15", 20),
		ev("unknown.test", "2024-05-15", 5),
	}
	got := a.Aggregate(events, domain.TimeframeDaily, GroupByCategory, now)
	assert.Equal(t, map[string]int64{"Work": 150, "Social Media": 20, "Other": 5}, got)
}

func TestInWindow_Malformed(t *testing.T) {
	a := NewAggregator(domain.WindowCalendar, nil)
	assert.False(t, a.InWindow("2024-5-15", domain.TimeframeDaily, now))
	assert.False(t, a.InWindow("", domain.TimeframeMonthly, now))
	assert.True(t, a.InWindow("2024-05-15", domain.TimeframeDaily, now))
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, Record(ctx, s, "https://www.YouTube.com/watch", 30, now))
	require.NoError(t, Record(ctx, s, "youtube.com", 45, now))
	require.NoError(t, Record(ctx, s, "youtube.com", 0, now))

	raw, found, err := s.Get(ctx, store.UsageKey("2024-05-15", "youtube.com"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "75", string(raw))

	assert.Error(t, Record(ctx, s, "://", 10, now))
}

func BenchmarkAggregate(b *testing.B) {
	a := NewAggregator(domain.WindowCalendar, nil)
	events := make([]domain.UsageEvent, 0, 3000)
	for d := 0; d < 30; d++ {
		key := domain.DateKey(now.AddDate(0, 0, -d))
		for i := 0; i < 100; i++ {
			events = append(events, ev("site.example", key, 60))
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.Aggregate(events, domain.TimeframeMonthly, GroupByDomain, now)
	}
}
