// Package quota evaluates LimitRecords against recorded usage.
package quota

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haukened/siteguard/internal/guard/common/domainkey"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/services/usage"
)

// ErrInvalidLimit marks a limit that cannot be evaluated. Such limits never block.
var ErrInvalidLimit = errors.New("invalid limit")

// Status is the outcome of evaluating one limit.
type Status struct {
	UsedSeconds      int64
	LimitSeconds     int64
	RemainingSeconds int64
	Blocked          bool
}

// Evaluator computes quota status. It is stateless apart from its collaborators.
type Evaluator struct {
	agg      *usage.Aggregator
	resolver usage.CategoryResolver
	logger   log.Logger
}

// New returns an Evaluator summing usage through agg and resolving categories through resolver.
func New(agg *usage.Aggregator, resolver usage.CategoryResolver, logger log.Logger) *Evaluator {
	if logger == nil {
		logger = log.Component(nil, "quota")
	}
	return &Evaluator{agg: agg, resolver: resolver, logger: logger}
}

// Evaluate returns the status of limit at now. An invalid limit is logged and
// reported as not blocked.
func (e *Evaluator) Evaluate(limit domain.LimitRecord, events []domain.UsageEvent, now time.Time) Status {
	st, err := e.Check(limit, events, now)
	if err != nil {
		e.logger.Warn(map[string]any{"limit_id": limit.ID, "error": err}, "quota not computable, treating as not blocked")
		return Status{}
	}
	return st
}

// Check is Evaluate with the computation error exposed.
// Usage at exactly the limit blocks.
func (e *Evaluator) Check(limit domain.LimitRecord, events []domain.UsageEvent, now time.Time) (Status, error) {
	if limit.LimitMinutes <= 0 {
		return Status{}, fmt.Errorf("%w: %q has limitMinutes %d", ErrInvalidLimit, limit.ID, limit.LimitMinutes)
	}

	var used int64
	switch limit.TargetType {
	case domain.TargetSite:
		target := domainkey.Normalize(limit.TargetID)
		if target == "" {
			return Status{}, fmt.Errorf("%w: %q has unusable target %q", ErrInvalidLimit, limit.ID, limit.TargetID)
		}
		for d, secs := range e.agg.Aggregate(events, limit.Timeframe, usage.GroupByDomain, now) {
			if domainkey.MatchesDomain(d, target) {
				used += secs
			}
		}
	case domain.TargetCategory:
		if e.resolver == nil {
			return Status{}, fmt.Errorf("%w: %q targets a category but no resolver is configured", ErrInvalidLimit, limit.ID)
		}
		for c, secs := range e.agg.Aggregate(events, limit.Timeframe, usage.GroupByCategory, now) {
			if strings.EqualFold(c, limit.TargetID) {
				used += secs
			}
		}
	default:
		return Status{}, fmt.Errorf("%w: %q has unsupported target type %s", ErrInvalidLimit, limit.ID, limit.TargetType)
	}

	limitSecs := limit.LimitSeconds()
	st := Status{UsedSeconds: used, LimitSeconds: limitSecs, Blocked: used >= limitSecs}
	if !st.Blocked {
		st.RemainingSeconds = limitSecs - used
	}
	return st, nil
}

// Applies reports whether limit targets the domain key name.
func (e *Evaluator) Applies(limit domain.LimitRecord, name string) bool {
	if name == "" {
		return false
	}
	switch limit.TargetType {
	case domain.TargetSite:
		return domainkey.MatchesDomain(name, domainkey.Normalize(limit.TargetID))
	case domain.TargetCategory:
		return e.resolver != nil && strings.EqualFold(e.resolver.Resolve(name), limit.TargetID)
	default:
		return false
	}
}
