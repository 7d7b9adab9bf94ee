// Package enforcement hands materialized block sets to whatever actually
// stops the traffic, as one full-replace set of redirect directives.
package enforcement

import (
	"context"
	"errors"
	"strings"

	"github.com/haukened/siteguard/internal/guard/domain"
)

// ErrInvalidRedirect is returned when directives would redirect nowhere.
var ErrInvalidRedirect = errors.New("invalid redirect target")

// Enforcer installs a directive set, replacing whatever it held before.
type Enforcer interface {
	Replace(ctx context.Context, directives []domain.Directive) error
}

// URLFilter returns the filter matching d and all of its subdomains.
func URLFilter(d string) string {
	return "||" + d + "^"
}

// Directives builds one redirect directive per blocked domain followed by
// one allow directive per exception, numbered from 1 in that order.
func Directives(set domain.BlockSet, redirectTarget string) []domain.Directive {
	out := make([]domain.Directive, 0, len(set.Domains)+len(set.Exceptions))
	for _, d := range set.Domains {
		out = append(out, domain.Directive{
			ID:             len(out) + 1,
			Pattern:        URLFilter(d),
			RedirectTarget: redirectTarget,
		})
	}
	for _, d := range set.Exceptions {
		out = append(out, domain.Directive{
			ID:      len(out) + 1,
			Pattern: URLFilter(d),
			Allow:   true,
		})
	}
	return out
}

// Specificity ranks a url filter by the label depth of its domain, so a rule
// for m.reddit.com outranks one for reddit.com.
func Specificity(pattern string) int {
	d := strings.TrimSuffix(strings.TrimPrefix(pattern, "||"), "^")
	if d == "" {
		return 1
	}
	return strings.Count(d, ".") + 1
}
