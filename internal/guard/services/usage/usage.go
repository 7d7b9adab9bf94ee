// Package usage aggregates recorded usage over quota windows and records new usage.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/haukened/siteguard/internal/guard/common/domainkey"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/store"
)

// GroupBy selects the key usage is summed under.
type GroupBy uint8

const (
	GroupByDomain GroupBy = iota
	GroupByCategory
)

// CategoryResolver maps a domain key to its category.
type CategoryResolver interface {
	Resolve(name string) string
}

// Aggregator sums usage events over daily, weekly and monthly windows.
// It holds no mutable state; identical input always yields identical output.
type Aggregator struct {
	mode     domain.WindowMode
	resolver CategoryResolver
}

// NewAggregator returns an Aggregator using mode for weekly and monthly windows.
// resolver is only needed for GroupByCategory.
func NewAggregator(mode domain.WindowMode, resolver CategoryResolver) *Aggregator {
	return &Aggregator{mode: mode, resolver: resolver}
}

// Mode returns the configured window mode.
func (a *Aggregator) Mode() domain.WindowMode { return a.mode }

// WindowStart returns the first day, as midnight in now's location, counted
// toward tf. The window always ends with today.
func (a *Aggregator) WindowStart(tf domain.Timeframe, now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch tf {
	case domain.TimeframeWeekly:
		if a.mode == domain.WindowRolling {
			return time.Date(y, m, d-6, 0, 0, 0, 0, loc)
		}
		return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
	case domain.TimeframeMonthly:
		if a.mode == domain.WindowRolling {
			return time.Date(y, m, d-29, 0, 0, 0, 0, loc)
		}
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// Lookback returns the earliest day any timeframe can reach at now.
func (a *Aggregator) Lookback(now time.Time) time.Time {
	earliest := a.WindowStart(domain.TimeframeDaily, now)
	for _, tf := range []domain.Timeframe{domain.TimeframeWeekly, domain.TimeframeMonthly} {
		if s := a.WindowStart(tf, now); s.Before(earliest) {
			earliest = s
		}
	}
	return earliest
}

// InWindow reports whether dateKey falls in tf's window ending today.
// Malformed keys are never in any window.
func (a *Aggregator) InWindow(dateKey string, tf domain.Timeframe, now time.Time) bool {
	if _, err := domain.ParseDateKey(dateKey, now.Location()); err != nil {
		return false
	}
	// YYYY-MM-DD keys order lexically
	from := domain.DateKey(a.WindowStart(tf, now))
	to := domain.DateKey(now)
	return dateKey >= from && dateKey <= to
}

// Aggregate sums seconds per domain or category over events inside tf's window.
// Events with malformed date keys, empty domains or non-positive seconds are skipped.
func (a *Aggregator) Aggregate(events []domain.UsageEvent, tf domain.Timeframe, groupBy GroupBy, now time.Time) map[string]int64 {
	out := make(map[string]int64)
	for _, e := range events {
		if e.Seconds <= 0 || e.Domain == "" || !a.InWindow(e.DateKey, tf, now) {
			continue
		}
		key := e.Domain
		if groupBy == GroupByCategory {
			key = domain.DefaultCategoryName
			if a.resolver != nil {
				key = a.resolver.Resolve(e.Domain)
			}
		}
		out[key] += e.Seconds
	}
	return out
}

// Record adds seconds spent on target at now to the store.
func Record(ctx context.Context, s store.Store, target string, seconds int64, now time.Time) error {
	name := domainkey.Normalize(target)
	if name == "" {
		return fmt.Errorf("record usage: unusable domain %q", target)
	}
	if seconds <= 0 {
		return nil
	}
	if _, err := store.AddCounter(ctx, s, store.UsageKey(domain.DateKey(now), name), seconds); err != nil {
		return fmt.Errorf("record usage for %s: %w", name, err)
	}
	return nil
}
