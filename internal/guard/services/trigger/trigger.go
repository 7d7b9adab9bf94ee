// Package trigger decides when the block set is rebuilt and installs each
// rebuild into the in-process index and the enforcement collaborator.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/haukened/siteguard/internal/guard/common/clock"
	"github.com/haukened/siteguard/internal/guard/common/domainkey"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/gateways/enforcement"
	"github.com/haukened/siteguard/internal/guard/repos/store"
	"github.com/haukened/siteguard/internal/guard/services/engine"
)

const (
	DefaultDebounce     = 250 * time.Millisecond
	DefaultSnoozeBuffer = 3 * time.Second
)

var (
	// ErrStaleRebuild is returned when a rebuild raced a snooze and was discarded.
	ErrStaleRebuild = errors.New("rebuild discarded: snooze set while computing")
	ErrRunning      = errors.New("trigger already started")
)

// Engine computes block sets and answers navigation checks.
type Engine interface {
	MaterializedBlockSet(ctx context.Context, now time.Time) domain.BlockSet
	Evaluate(ctx context.Context, req engine.Request) engine.Response
}

// Index receives every installed block set.
type Index interface {
	Install(set domain.BlockSet, at time.Time)
	Contains(name string) bool
}

// SnoozeTracker remembers when a snooze was last set.
type SnoozeTracker interface {
	MarkSet(t time.Time)
	LastSet() time.Time
}

// Options configures a Trigger. Zero durations take the defaults; a zero
// Tick disables periodic rebuilds.
type Options struct {
	Store          store.Store
	Engine         Engine
	Index          Index
	Enforcer       enforcement.Enforcer
	Snooze         SnoozeTracker
	Clock          clock.Clock
	Logger         log.Logger
	Debounce       time.Duration
	SnoozeBuffer   time.Duration
	Tick           time.Duration
	RedirectTarget string
}

// Trigger rebuilds at startup, after bursts of store changes, on a
// periodic tick, and when navigation reveals a newly blocked domain.
type Trigger struct {
	opts Options

	kick chan struct{}

	mu       sync.Mutex
	running  bool
	cancel   func()
	stopChan chan struct{}
	doneChan chan struct{}

	rebuilds  uint64
	discarded uint64
}

// New returns a stopped Trigger.
func New(opts Options) *Trigger {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Component(nil, "trigger")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SnoozeBuffer <= 0 {
		opts.SnoozeBuffer = DefaultSnoozeBuffer
	}
	return &Trigger{opts: opts, kick: make(chan struct{}, 1)}
}

// Start subscribes to store changes, performs the startup rebuild and
// starts the background loop. The startup rebuild's error is returned but
// the loop keeps running.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return ErrRunning
	}
	t.running = true
	t.stopChan = make(chan struct{})
	t.doneChan = make(chan struct{})
	if t.opts.Store != nil {
		t.cancel = t.opts.Store.Subscribe(t.onChange)
	}
	t.mu.Unlock()

	err := t.Rebuild(ctx)
	if err != nil {
		t.opts.Logger.Error(map[string]any{"error": err}, "startup rebuild failed")
	}

	go t.loop(ctx)
	t.opts.Logger.Info(map[string]any{
		"debounce":      t.opts.Debounce,
		"snooze_buffer": t.opts.SnoozeBuffer,
		"tick":          t.opts.Tick,
	}, "trigger started")
	return err
}

// Stop unsubscribes and waits for the loop to exit.
func (t *Trigger) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	close(t.stopChan)
	done := t.doneChan
	t.mu.Unlock()

	<-done
	t.opts.Logger.Info(nil, "trigger stopped")
}

func (t *Trigger) onChange(c store.Change) {
	if c.Key == store.KeySnoozeUntil && !c.Deleted && t.opts.Snooze != nil {
		t.opts.Snooze.MarkSet(t.opts.Clock.Now())
	}
	t.Request()
}

// Request schedules a debounced rebuild. Requests made while one is already
// pending are coalesced into it.
func (t *Trigger) Request() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

func (t *Trigger) loop(ctx context.Context) {
	defer close(t.doneChan)

	var tickC <-chan time.Time
	if t.opts.Tick > 0 {
		ticker := time.NewTicker(t.opts.Tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	debounce := time.NewTimer(t.opts.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		case <-t.kick:
			debounce.Reset(t.opts.Debounce)
		case <-debounce.C:
			t.rebuildLogged(ctx)
		case <-tickC:
			t.rebuildLogged(ctx)
		}
	}
}

func (t *Trigger) rebuildLogged(ctx context.Context) {
	err := t.Rebuild(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleRebuild):
		t.opts.Logger.Debug(nil, "stale rebuild discarded, rescheduled")
	default:
		t.opts.Logger.Error(map[string]any{"error": err}, "rebuild failed")
	}
}

// Rebuild computes the block set now and installs it. A rebuild that started
// before the most recent snooze was set and finished inside the snooze
// buffer is discarded and a fresh one is requested.
func (t *Trigger) Rebuild(ctx context.Context) error {
	started := t.opts.Clock.Now()
	set := t.opts.Engine.MaterializedBlockSet(ctx, started)
	finished := t.opts.Clock.Now()

	if t.stale(started, finished) {
		t.mu.Lock()
		t.discarded++
		t.mu.Unlock()
		t.Request()
		return ErrStaleRebuild
	}

	if t.opts.Index != nil {
		t.opts.Index.Install(set, finished)
	}
	t.mu.Lock()
	t.rebuilds++
	t.mu.Unlock()

	if t.opts.Enforcer != nil {
		directives := enforcement.Directives(set, t.opts.RedirectTarget)
		if err := t.opts.Enforcer.Replace(ctx, directives); err != nil {
			return fmt.Errorf("install generation %s: %w", set.Generation, err)
		}
	}
	t.opts.Logger.Debug(map[string]any{
		"generation": set.Generation,
		"domains":    len(set.Domains),
		"snoozed":    set.Snoozed,
	}, "block set installed")
	return nil
}

func (t *Trigger) stale(started, finished time.Time) bool {
	if t.opts.Snooze == nil {
		return false
	}
	last := t.opts.Snooze.LastSet()
	if last.IsZero() || !started.Before(last) {
		return false
	}
	return finished.Sub(last) <= t.opts.SnoozeBuffer
}

// Navigate evaluates a primary-frame navigation. A blocked domain that the
// installed set does not cover yet, such as a quota crossed since the last
// rebuild, requests a rebuild.
func (t *Trigger) Navigate(ctx context.Context, rawURL string) engine.Response {
	resp := t.opts.Engine.Evaluate(ctx, engine.Request{URL: rawURL, At: t.opts.Clock.Now()})
	if !resp.Blocked || t.opts.Index == nil {
		return resp
	}
	if name := domainkey.Normalize(rawURL); name != "" && !t.opts.Index.Contains(name) {
		t.Request()
	}
	return resp
}

// Stats returns how many rebuilds were installed and discarded.
func (t *Trigger) Stats() (installed, discarded uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rebuilds, t.discarded
}
