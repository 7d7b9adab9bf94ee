// Package policy reads the guard's configuration and usage out of a store into
// typed, defaulted, validated snapshots.
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/store"
)

// Snapshot is an immutable view of everything one evaluation needs.
type Snapshot struct {
	Limits           []domain.LimitRecord
	Rules            []domain.TimeRule
	Patterns         []domain.URLPattern
	DomainCategories map[string]string
	Categories       []domain.Category
	Snooze           domain.SnoozeState
	Usage            []domain.UsageEvent
	LoadedAt         time.Time
	// Degraded is set when any section could not be read and was left empty.
	Degraded bool
}

// KnownDomains returns every domain that appears in usage, without duplicates.
func (s Snapshot) KnownDomains() []string {
	seen := make(map[string]struct{}, len(s.Usage))
	out := make([]string, 0, len(s.Usage))
	for _, e := range s.Usage {
		if _, ok := seen[e.Domain]; ok {
			continue
		}
		seen[e.Domain] = struct{}{}
		out = append(out, e.Domain)
	}
	return out
}

// LookbackFunc returns the earliest day whose usage a snapshot taken at now must include.
type LookbackFunc func(now time.Time) time.Time

// Repository loads snapshots from a store. It fails open: a section that
// cannot be read or decoded is empty, and invalid records are dropped.
type Repository struct {
	store    store.Store
	lookback LookbackFunc
	logger   log.Logger
}

// New returns a Repository over s. A nil lookback loads only today's usage.
func New(s store.Store, lookback LookbackFunc, logger log.Logger) *Repository {
	if lookback == nil {
		lookback = func(now time.Time) time.Time { return now }
	}
	if logger == nil {
		logger = log.Component(nil, "policy")
	}
	return &Repository{store: s, lookback: lookback, logger: logger}
}

// Store returns the underlying store.
func (r *Repository) Store() store.Store { return r.store }

// Load reads a snapshot for evaluation at now.
func (r *Repository) Load(ctx context.Context, now time.Time) Snapshot {
	snap := Snapshot{LoadedAt: now, DomainCategories: map[string]string{}}

	for _, l := range records[domain.LimitRecord](ctx, r, &snap, store.KeyLimits) {
		l.ApplyDefaults()
		if err := l.Validate(); err != nil {
			r.drop(store.KeyLimits, l.ID, err)
			continue
		}
		snap.Limits = append(snap.Limits, l)
	}

	for _, rule := range records[domain.TimeRule](ctx, r, &snap, store.KeyAdvancedRules) {
		rule.ApplyDefaults()
		if err := rule.Validate(); err != nil {
			r.drop(store.KeyAdvancedRules, rule.ID, err)
			continue
		}
		snap.Rules = append(snap.Rules, rule)
	}

	for _, p := range records[domain.URLPattern](ctx, r, &snap, store.KeyURLPatterns) {
		if err := p.Validate(); err != nil {
			r.drop(store.KeyURLPatterns, p.ID, err)
			continue
		}
		snap.Patterns = append(snap.Patterns, p)
	}

	var mapping map[string]string
	if r.section(ctx, &snap, store.KeyDomainCategories, &mapping) && mapping != nil {
		snap.DomainCategories = mapping
	}

	for _, c := range records[domain.Category](ctx, r, &snap, store.KeyCategories) {
		if c.Name == "" {
			r.drop(store.KeyCategories, "", errors.New("category without a name"))
			continue
		}
		snap.Categories = append(snap.Categories, c)
	}

	st, err := LoadSnooze(ctx, r.store)
	if err != nil {
		r.degrade(&snap, store.KeySnoozeUntil, err)
	}
	snap.Snooze = st

	events, err := r.LoadUsage(ctx, r.lookback(now), now)
	if err != nil {
		r.degrade(&snap, store.UsagePrefix, err)
	}
	snap.Usage = events
	return snap
}

// section decodes key into dst, reporting whether it could be read.
func (r *Repository) section(ctx context.Context, snap *Snapshot, key string, dst any) bool {
	if _, err := store.GetJSON(ctx, r.store, key, dst); err != nil {
		r.degrade(snap, key, err)
		return false
	}
	return true
}

// records decodes the JSON array at key one element at a time, so a record
// that does not decode is dropped without taking its siblings with it.
// A value that is not an array at all degrades the whole section.
func records[T any](ctx context.Context, r *Repository, snap *Snapshot, key string) []T {
	var raws []json.RawMessage
	if !r.section(ctx, snap, key, &raws) {
		return nil
	}
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			r.drop(key, recordID(raw, i), err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// recordID names a raw record for logging: its "id" when it has one,
// otherwise its position.
func recordID(raw json.RawMessage, i int) string {
	var head struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &head) == nil && head.ID != "" {
		return head.ID
	}
	return fmt.Sprintf("#%d", i)
}

func (r *Repository) degrade(snap *Snapshot, key string, err error) {
	snap.Degraded = true
	r.logger.Warn(map[string]any{"key": key, "error": err}, "policy section unavailable, failing open")
}

func (r *Repository) drop(key, id string, err error) {
	r.logger.Warn(map[string]any{"key": key, "id": id, "error": err}, "dropping invalid record")
}

// LoadUsage returns the usage events recorded from the day of since through
// the day of now, one per (date, domain).
func (r *Repository) LoadUsage(ctx context.Context, since, now time.Time) ([]domain.UsageEvent, error) {
	var events []domain.UsageEvent
	start := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, now.Location())
	last := domain.DateKey(now)
	for day := start; domain.DateKey(day) <= last; day = day.AddDate(0, 0, 1) {
		key := domain.DateKey(day)
		keys, err := r.store.Keys(ctx, store.UsageDayPrefix(key))
		if err != nil {
			return events, fmt.Errorf("list usage for %s: %w", key, err)
		}
		for _, k := range keys {
			dateKey, dom, err := store.ParseUsageKey(k)
			if err != nil {
				continue
			}
			raw, found, err := r.store.Get(ctx, k)
			if err != nil {
				return events, fmt.Errorf("read %s: %w", k, err)
			}
			if !found {
				continue
			}
			secs, err := store.ParseCounter(raw)
			if err != nil {
				r.drop(k, dom, err)
				continue
			}
			events = append(events, domain.UsageEvent{Domain: dom, DateKey: dateKey, Seconds: secs})
		}
	}
	return events, nil
}

// LoadSnooze reads the stored snooze deadline. A missing value is the zero state.
func LoadSnooze(ctx context.Context, s store.Store) (domain.SnoozeState, error) {
	raw, found, err := s.Get(ctx, store.KeySnoozeUntil)
	if err != nil || !found {
		return domain.SnoozeState{}, err
	}
	ms, err := store.ParseCounter(raw)
	if err != nil {
		return domain.SnoozeState{}, fmt.Errorf("snooze deadline: %w", err)
	}
	return domain.SnoozeState{UntilMs: ms}, nil
}

// SaveLimits replaces the stored limits.
func (r *Repository) SaveLimits(ctx context.Context, limits []domain.LimitRecord) error {
	return store.SetJSON(ctx, r.store, store.KeyLimits, limits)
}

// SaveRules replaces the stored scheduled rules.
func (r *Repository) SaveRules(ctx context.Context, rules []domain.TimeRule) error {
	return store.SetJSON(ctx, r.store, store.KeyAdvancedRules, rules)
}

// SavePatterns replaces the stored URL patterns.
func (r *Repository) SavePatterns(ctx context.Context, patterns []domain.URLPattern) error {
	return store.SetJSON(ctx, r.store, store.KeyURLPatterns, patterns)
}

// SaveDomainCategories replaces the explicit domain -> category mapping.
func (r *Repository) SaveDomainCategories(ctx context.Context, m map[string]string) error {
	return store.SetJSON(ctx, r.store, store.KeyDomainCategories, m)
}

// SaveCategories replaces the user category list.
func (r *Repository) SaveCategories(ctx context.Context, cats []domain.Category) error {
	return store.SetJSON(ctx, r.store, store.KeyCategories, cats)
}
