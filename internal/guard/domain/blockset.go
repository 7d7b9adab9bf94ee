package domain

import (
	"slices"
	"time"
)

// BlockSet is the materialized set of domains and categories blocked at ComputedAt.
// A blocked domain covers its subdomains except those listed in Exceptions.
// It is always recomputed and installed wholesale.
type BlockSet struct {
	Domains    []string  `json:"domains"`
	Categories []string  `json:"categories"`
	Exceptions []string  `json:"exceptions"`
	Generation string    `json:"generation"`
	ComputedAt time.Time `json:"computedAt"`
	Snoozed    bool      `json:"snoozed,omitempty"`
}

// Len returns the number of blocked domains.
func (b BlockSet) Len() int { return len(b.Domains) }

// HasDomain reports whether domain is listed verbatim. Domains are kept sorted.
func (b BlockSet) HasDomain(domain string) bool {
	_, ok := slices.BinarySearch(b.Domains, domain)
	return ok
}

// Directive is a single enforcement instruction: requests matching Pattern
// are redirected to RedirectTarget, or let through when Allow is set.
type Directive struct {
	ID             int    `json:"id"`
	Pattern        string `json:"pattern"`
	RedirectTarget string `json:"redirectTarget,omitempty"`
	Allow          bool   `json:"allow,omitempty"`
}
