// Package snooze manages the global time-boxed override that suppresses all blocking.
package snooze

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/haukened/siteguard/internal/guard/common/clock"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/policy"
	"github.com/haukened/siteguard/internal/guard/repos/store"
)

// Gate reads and writes the snooze deadline. Expiry is passive: an expired
// deadline is removed the next time it is checked.
type Gate struct {
	store  store.Store
	clock  clock.Clock
	logger log.Logger

	mu      sync.RWMutex
	lastSet time.Time
}

// New returns a Gate over s.
func New(s store.Store, c clock.Clock, logger log.Logger) *Gate {
	if c == nil {
		c = clock.RealClock{}
	}
	if logger == nil {
		logger = log.Component(nil, "snooze")
	}
	return &Gate{store: s, clock: c, logger: logger}
}

// State returns the stored state, logging and ignoring read errors.
func (g *Gate) State(ctx context.Context) domain.SnoozeState {
	st, err := policy.LoadSnooze(ctx, g.store)
	if err != nil {
		g.logger.Warn(map[string]any{"error": err}, "snooze state unreadable, treating as not snoozed")
	}
	return st
}

// IsActive reports whether the stored snooze covers now.
func (g *Gate) IsActive(ctx context.Context, now time.Time) bool {
	return g.Active(ctx, g.State(ctx), now)
}

// Active reports whether st covers now. An expired deadline is cleared from
// the store on a best-effort basis, unless it has since been replaced.
func (g *Gate) Active(ctx context.Context, st domain.SnoozeState, now time.Time) bool {
	if st.IsActive(now) {
		return true
	}
	if st.IsSet() {
		g.clearIfUnchanged(ctx, st)
	}
	return false
}

func (g *Gate) clearIfUnchanged(ctx context.Context, expired domain.SnoozeState) {
	cur, err := policy.LoadSnooze(ctx, g.store)
	if err != nil || cur.UntilMs != expired.UntilMs {
		return
	}
	if err := g.store.Delete(ctx, store.KeySnoozeUntil); err != nil {
		g.logger.Warn(map[string]any{"error": err}, "failed to clear expired snooze")
		return
	}
	g.logger.Info(map[string]any{"until": expired.Until()}, "snooze expired")
}

// Set snoozes blocking until the given instant.
func (g *Gate) Set(ctx context.Context, until time.Time) error {
	st := domain.NewSnoozeState(until)
	if err := g.store.Set(ctx, store.KeySnoozeUntil, []byte(strconv.FormatInt(st.UntilMs, 10))); err != nil {
		return fmt.Errorf("set snooze: %w", err)
	}
	g.MarkSet(g.clock.Now())
	g.logger.Info(map[string]any{"until": until}, "snooze set")
	return nil
}

// SetFor snoozes blocking for d from now.
func (g *Gate) SetFor(ctx context.Context, d time.Duration) error {
	return g.Set(ctx, g.clock.Now().Add(d))
}

// Clear ends any snooze immediately.
func (g *Gate) Clear(ctx context.Context) error {
	if err := g.store.Delete(ctx, store.KeySnoozeUntil); err != nil {
		return fmt.Errorf("clear snooze: %w", err)
	}
	return nil
}

// MarkSet records that a snooze was set at t, including by another writer.
func (g *Gate) MarkSet(t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.After(g.lastSet) {
		g.lastSet = t
	}
}

// LastSet returns when a snooze was most recently set, or the zero time.
func (g *Gate) LastSet() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastSet
}
