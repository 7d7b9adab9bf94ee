// Package rules resolves scheduled TimeRules and URLPatterns into decisions.
package rules

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/haukened/siteguard/internal/guard/common/domainkey"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/services/schedule"
)

// PatternMatcher evaluates URL patterns and glob rule targets.
type PatternMatcher interface {
	Matches(input string, p domain.URLPattern) bool
	Glob(input, glob string) bool
}

// CategoryResolver maps a domain key to its category.
type CategoryResolver interface {
	Resolve(name string) string
}

// Resolver evaluates one policy snapshot. Rules and patterns keep their
// configured order.
type Resolver struct {
	rules      []domain.TimeRule
	patterns   []domain.URLPattern
	matcher    PatternMatcher
	categories CategoryResolver
}

// New returns a Resolver over rules and patterns.
func New(rules []domain.TimeRule, patterns []domain.URLPattern, m PatternMatcher, c CategoryResolver) *Resolver {
	return &Resolver{rules: rules, patterns: patterns, matcher: m, categories: c}
}

// TargetMatches reports whether a rule target covers the domain key name.
func (r *Resolver) TargetMatches(t domain.RuleTarget, name string) bool {
	if name == "" {
		return false
	}
	switch t.Type {
	case domain.RuleTargetDomain:
		return domainkey.MatchesDomain(name, domainkey.Normalize(t.Value))
	case domain.RuleTargetCategory:
		return r.categories != nil && strings.EqualFold(r.categories.Resolve(name), t.Value)
	case domain.RuleTargetPattern:
		return r.matcher.Glob(name, t.Value)
	default:
		return false
	}
}

func (r *Resolver) firstMatchingTarget(rule domain.TimeRule, name string) (domain.RuleTarget, bool) {
	for _, t := range rule.Targets {
		if r.TargetMatches(t, name) {
			return t, true
		}
	}
	return domain.RuleTarget{}, false
}

// ScheduledNow returns enabled rules whose schedule covers now, highest
// priority first. Equal priorities keep configured order.
func (r *Resolver) ScheduledNow(now time.Time) []domain.TimeRule {
	var out []domain.TimeRule
	for _, rule := range r.rules {
		if rule.Enabled && schedule.Active(rule.Schedule, now) {
			out = append(out, rule)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.TimeRule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return out
}

// ActiveRules returns the rules scheduled at now with at least one target
// matching name, highest priority first.
func (r *Resolver) ActiveRules(name string, now time.Time) []domain.TimeRule {
	var out []domain.TimeRule
	for _, rule := range r.ScheduledNow(now) {
		if _, ok := r.firstMatchingTarget(rule, name); ok {
			out = append(out, rule)
		}
	}
	return out
}

// ShouldBlockDomain decides name against scheduled rules, falling back to URL
// patterns. The first active rule decides through its first matching target,
// so a higher-priority limit shadows a lower-priority block.
func (r *Resolver) ShouldBlockDomain(name string, now time.Time) domain.Decision {
	if name == "" {
		return domain.Allow()
	}
	for _, rule := range r.ActiveRules(name, now) {
		t, _ := r.firstMatchingTarget(rule, name)
		if t.Action == domain.ActionBlock {
			return domain.Decision{Blocked: true, Reason: rule.Name, RuleName: rule.Name, Source: domain.SourceRule}
		}
		return domain.Decision{
			Reason:         fmt.Sprintf("%s allows %d minutes", rule.Name, t.LimitMinutes),
			RuleName:       rule.Name,
			AllowedMinutes: t.LimitMinutes,
			Source:         domain.SourceRule,
		}
	}

	for _, p := range r.patterns {
		if !p.Enabled || !r.matcher.Matches(name, p) {
			continue
		}
		return patternDecision(p)
	}
	return domain.Allow()
}

// ShouldBlockURL decides rawURL by its domain, then checks enabled block
// patterns against the full URL, which may key on path or query.
func (r *Resolver) ShouldBlockURL(rawURL string, now time.Time) domain.Decision {
	d := r.ShouldBlockDomain(domainkey.Normalize(rawURL), now)
	if d.Blocked {
		return d
	}
	input := strings.TrimSpace(rawURL)
	for _, p := range r.patterns {
		if p.Enabled && p.Action == domain.ActionBlock && r.matcher.Matches(input, p) {
			return patternDecision(p)
		}
	}
	return d
}

// BlockTargets returns the block-action targets of every rule scheduled at now.
func (r *Resolver) BlockTargets(now time.Time) []domain.RuleTarget {
	var out []domain.RuleTarget
	for _, rule := range r.ScheduledNow(now) {
		for _, t := range rule.Targets {
			if t.Action == domain.ActionBlock {
				out = append(out, t)
			}
		}
	}
	return out
}

func patternDecision(p domain.URLPattern) domain.Decision {
	if p.Action == domain.ActionBlock {
		return domain.Decision{
			Blocked:  true,
			Reason:   fmt.Sprintf("matches %s pattern %q", p.Type, p.Pattern),
			RuleName: p.ID,
			Source:   domain.SourcePattern,
		}
	}
	return domain.Decision{
		Reason:         fmt.Sprintf("pattern %q allows %d minutes", p.Pattern, p.LimitMinutes),
		RuleName:       p.ID,
		AllowedMinutes: p.LimitMinutes,
		Source:         domain.SourcePattern,
	}
}
