// Package engine combines snooze, quotas, schedule rules and URL patterns into
// one access decision per URL, and materializes the full block set.
package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/siteguard/internal/guard/common/clock"
	"github.com/haukened/siteguard/internal/guard/common/domainkey"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/policy"
	"github.com/haukened/siteguard/internal/guard/services/category"
	"github.com/haukened/siteguard/internal/guard/services/quota"
	"github.com/haukened/siteguard/internal/guard/services/rules"
	"github.com/haukened/siteguard/internal/guard/services/usage"
)

// SnoozeGate is the part of snooze.Gate the engine needs.
type SnoozeGate interface {
	Active(ctx context.Context, st domain.SnoozeState, now time.Time) bool
}

// Request asks whether URL is blocked at At. A zero At means now.
type Request struct {
	URL string
	At  time.Time
}

// Response is the transport-facing view of a Decision.
type Response struct {
	Blocked        bool   `json:"blocked"`
	Reason         string `json:"reason,omitempty"`
	RuleName       string `json:"ruleName,omitempty"`
	AllowedMinutes int    `json:"allowedMinutes,omitempty"`
	Snoozed        bool   `json:"snoozed"`
}

// Options configures an Engine.
type Options struct {
	Policy     *policy.Repository
	Matcher    rules.PatternMatcher
	Snooze     SnoozeGate
	WindowMode domain.WindowMode
	Clock      clock.Clock
	Logger     log.Logger
}

// Engine evaluates against a fresh policy snapshot per call and holds no
// per-request state of its own.
type Engine struct {
	policy  *policy.Repository
	matcher rules.PatternMatcher
	snooze  SnoozeGate
	mode    domain.WindowMode
	clock   clock.Clock
	logger  log.Logger

	newGeneration func() string
}

// New returns an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		policy:        opts.Policy,
		matcher:       opts.Matcher,
		snooze:        opts.Snooze,
		mode:          opts.WindowMode,
		clock:         opts.Clock,
		logger:        opts.Logger,
		newGeneration: func() string { return uuid.NewString() },
	}
	if e.clock == nil {
		e.clock = clock.RealClock{}
	}
	if e.logger == nil {
		e.logger = log.Component(nil, "engine")
	}
	return e
}

// evaluation is everything derived from one snapshot.
type evaluation struct {
	snap     policy.Snapshot
	cats     *category.Resolver
	quotas   *quota.Evaluator
	resolver *rules.Resolver
}

func (e *Engine) load(ctx context.Context, now time.Time) evaluation {
	snap := e.policy.Load(ctx, now)
	cats := category.NewResolver(snap.DomainCategories)
	return evaluation{
		snap:     snap,
		cats:     cats,
		quotas:   quota.New(usage.NewAggregator(e.mode, cats), cats, e.logger),
		resolver: rules.New(snap.Rules, snap.Patterns, e.matcher, cats),
	}
}

func (e *Engine) snoozed(ctx context.Context, ev evaluation, now time.Time) bool {
	return e.snooze != nil && e.snooze.Active(ctx, ev.snap.Snooze, now)
}

// Decide evaluates rawURL at now. An active snooze allows everything;
// otherwise the URL is blocked when an exhausted quota or a rule says so.
func (e *Engine) Decide(ctx context.Context, rawURL string, now time.Time) domain.Decision {
	ev := e.load(ctx, now)
	if e.snoozed(ctx, ev, now) {
		return domain.Decision{Reason: "snoozed", Source: domain.SourceSnooze}
	}
	return e.decide(ev, rawURL, now)
}

func (e *Engine) decide(ev evaluation, rawURL string, now time.Time) domain.Decision {
	name := domainkey.Normalize(rawURL)

	var pending *domain.LimitRecord
	for i, l := range ev.snap.Limits {
		if !ev.quotas.Applies(l, name) {
			continue
		}
		st := ev.quotas.Evaluate(l, ev.snap.Usage, now)
		if st.Blocked {
			return domain.Decision{
				Blocked:        true,
				Reason:         fmt.Sprintf("%s %s limit of %d minutes reached", l.DisplayName, l.Timeframe, l.LimitMinutes),
				RuleName:       l.DisplayName,
				AllowedMinutes: l.LimitMinutes,
				Source:         domain.SourceQuota,
			}
		}
		if pending == nil {
			pending = &ev.snap.Limits[i]
		}
	}

	d := ev.resolver.ShouldBlockURL(rawURL, now)
	if d.Blocked || d.Matched() || pending == nil {
		return d
	}
	return domain.Decision{
		Reason:         fmt.Sprintf("%s allows %d minutes %s", pending.DisplayName, pending.LimitMinutes, pending.Timeframe),
		RuleName:       pending.DisplayName,
		AllowedMinutes: pending.LimitMinutes,
		Source:         domain.SourceQuota,
	}
}

// IsURLBlocked reports whether rawURL is blocked at now.
func (e *Engine) IsURLBlocked(ctx context.Context, rawURL string, now time.Time) bool {
	return e.Decide(ctx, rawURL, now).Blocked
}

// Evaluate answers a Request.
func (e *Engine) Evaluate(ctx context.Context, req Request) Response {
	at := req.At
	if at.IsZero() {
		at = e.clock.Now()
	}
	d := e.Decide(ctx, req.URL, at)
	resp := Response{
		Blocked:        d.Blocked,
		Reason:         d.Reason,
		RuleName:       d.RuleName,
		AllowedMinutes: d.AllowedMinutes,
		Snoozed:        d.Source == domain.SourceSnooze,
	}
	e.logger.Debug(map[string]any{
		"url":     req.URL,
		"blocked": resp.Blocked,
		"source":  d.Source.String(),
		"rule":    d.RuleName,
	}, "evaluated request")
	return resp
}

// MaterializedBlockSet computes every domain blocked at now: exhausted
// limits and block targets of the rules scheduled now, with categories
// expanded to their member domains. Subdomains of a blocked domain that
// Decide would allow are listed as exceptions. It is empty while snoozed.
func (e *Engine) MaterializedBlockSet(ctx context.Context, now time.Time) domain.BlockSet {
	ev := e.load(ctx, now)
	set := domain.BlockSet{
		Domains:    []string{},
		Categories: []string{},
		Exceptions: []string{},
		Generation: e.newGeneration(),
		ComputedAt: now,
	}
	if e.snoozed(ctx, ev, now) {
		set.Snoozed = true
		return set
	}

	known := ev.knownDomains()
	domains := make(map[string]struct{})
	categories := make(map[string]struct{})

	// A rule candidate is kept only if the same domain would be blocked on
	// navigation, so a higher-priority limit target still shadows it.
	ruleCandidate := func(d string) bool {
		if d == "" || !ev.resolver.ShouldBlockDomain(d, now).Blocked {
			return false
		}
		domains[d] = struct{}{}
		return true
	}
	for _, t := range ev.resolver.BlockTargets(now) {
		switch t.Type {
		case domain.RuleTargetDomain:
			ruleCandidate(domainkey.Normalize(t.Value))
		case domain.RuleTargetCategory:
			members := ev.cats.Members(t.Value, known)
			kept := len(members) == 0
			for _, d := range members {
				if ruleCandidate(d) {
					kept = true
				}
			}
			// every known member shadowed: the category is not blocked either
			if kept {
				categories[t.Value] = struct{}{}
			}
		case domain.RuleTargetPattern:
			for _, d := range known {
				if ev.resolver.TargetMatches(t, d) {
					ruleCandidate(d)
				}
			}
		}
	}

	for _, l := range ev.snap.Limits {
		if !ev.quotas.Evaluate(l, ev.snap.Usage, now).Blocked {
			continue
		}
		switch l.TargetType {
		case domain.TargetSite:
			if d := domainkey.Normalize(l.TargetID); d != "" {
				domains[d] = struct{}{}
			}
		case domain.TargetCategory:
			categories[l.TargetID] = struct{}{}
			for _, d := range ev.cats.Members(l.TargetID, known) {
				domains[d] = struct{}{}
			}
		}
	}

	// Blocked domains also cover their subdomains. A subdomain that decides
	// as allowed, such as one under a higher-priority limit, becomes an
	// exception so enforcement agrees with Decide.
	exceptions := make(map[string]struct{})
	for _, c := range ev.exceptionCandidates(known, now) {
		if _, blocked := domains[c]; blocked || !underAny(c, domains) {
			continue
		}
		if !e.decide(ev, c, now).Blocked {
			exceptions[c] = struct{}{}
		}
	}

	set.Domains = sortedKeys(domains)
	set.Categories = sortedKeys(categories)
	set.Exceptions = sortedKeys(exceptions)
	e.logger.Info(map[string]any{
		"generation": set.Generation,
		"domains":    len(set.Domains),
		"categories": len(set.Categories),
		"exceptions": len(set.Exceptions),
		"degraded":   ev.snap.Degraded,
	}, "materialized block set")
	return set
}

// knownDomains lists the domains the snapshot mentions anywhere: usage,
// explicit category mappings and site limits.
func (ev evaluation) knownDomains() []string {
	known := ev.snap.KnownDomains()
	for d := range ev.snap.DomainCategories {
		known = append(known, domainkey.Normalize(d))
	}
	for _, l := range ev.snap.Limits {
		if l.TargetType == domain.TargetSite {
			known = append(known, domainkey.Normalize(l.TargetID))
		}
	}
	slices.Sort(known)
	return slices.Compact(known)
}

// exceptionCandidates lists the domains that could sit under a blocked
// domain yet decide differently: known domains plus every domain target of
// the rules scheduled now, whatever its action.
func (ev evaluation) exceptionCandidates(known []string, now time.Time) []string {
	out := slices.Clone(known)
	for _, rule := range ev.resolver.ScheduledNow(now) {
		for _, t := range rule.Targets {
			if t.Type != domain.RuleTargetDomain {
				continue
			}
			if d := domainkey.Normalize(t.Value); d != "" {
				out = append(out, d)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// underAny reports whether a strict parent of name is in set.
func underAny(name string, set map[string]struct{}) bool {
	for cur := name; ; {
		i := strings.IndexByte(cur, '.')
		if i < 0 {
			return false
		}
		cur = cur[i+1:]
		if _, ok := set[cur]; ok {
			return true
		}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
