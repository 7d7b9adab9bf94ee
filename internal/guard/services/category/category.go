// Package category resolves domains to categories through explicit mappings,
// parent-domain inheritance and a built-in table.
package category

import (
	"slices"
	"strings"

	"github.com/haukened/siteguard/internal/guard/common/domainkey"
	"github.com/haukened/siteguard/internal/guard/domain"
)

// Resolver is immutable once built and safe for concurrent use.
type Resolver struct {
	mapping map[string]string
}

// NewResolver builds a Resolver over an explicit domain -> category mapping.
// Keys are normalized; entries that normalize to nothing or map to an empty
// category are ignored.
func NewResolver(mapping map[string]string) *Resolver {
	m := make(map[string]string, len(mapping))
	for d, c := range mapping {
		key := domainkey.Normalize(d)
		c = strings.TrimSpace(c)
		if key == "" || c == "" {
			continue
		}
		m[key] = c
	}
	return &Resolver{mapping: m}
}

// Resolve returns the category of a domain key: the explicit mapping for the
// domain or its nearest parent, then the built-in table the same way, else "Other".
func (r *Resolver) Resolve(name string) string {
	if name == "" {
		return domain.DefaultCategoryName
	}
	chain := append([]string{name}, domainkey.ParentDomains(name)...)
	for _, d := range chain {
		if c, ok := r.mapping[d]; ok {
			return c
		}
	}
	for _, d := range chain {
		if c, ok := builtin[d]; ok {
			return c
		}
	}
	return domain.DefaultCategoryName
}

// Is reports whether name resolves to category, ignoring case.
func (r *Resolver) Is(name, category string) bool {
	return strings.EqualFold(r.Resolve(name), category)
}

// Members lists, sorted and without duplicates, every domain resolving to
// category among the explicit mapping, the built-in table and known.
func (r *Resolver) Members(category string, known []string) []string {
	seen := make(map[string]struct{})
	consider := func(d string) {
		if d == "" {
			return
		}
		if _, ok := seen[d]; ok {
			return
		}
		if r.Is(d, category) {
			seen[d] = struct{}{}
		}
	}
	for d := range r.mapping {
		consider(d)
	}
	for d := range builtin {
		consider(d)
	}
	for _, d := range known {
		consider(domainkey.Normalize(d))
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Builtin returns a copy of the built-in domain -> category table.
func Builtin() map[string]string {
	out := make(map[string]string, len(builtin))
	for k, v := range builtin {
		out[k] = v
	}
	return out
}
