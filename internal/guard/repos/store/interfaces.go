// Package store defines the key/value storage collaborator the guard reads its
// policy from and writes usage to, plus an in-memory implementation.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haukened/siteguard/internal/guard/domain"
)

// Well-known keys.
const (
	KeyLimits           = "limits"
	KeyAdvancedRules    = "advancedRules"
	KeyURLPatterns      = "urlPatterns"
	KeyDomainCategories = "domainCategories"
	KeyCategories       = "categories"
	KeySnoozeUntil      = "blockSnoozeUntil"

	// UsagePrefix prefixes every usage counter key: usage/<dateKey>/<domain>.
	UsagePrefix = "usage/"
)

var (
	// ErrStoreUnavailable is returned when a backend cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
	// ErrInvalidKey is returned for keys that do not follow the key layout.
	ErrInvalidKey = errors.New("invalid store key")
)

// Change describes one mutation observed by a store.
type Change struct {
	Key     string
	Deleted bool
}

// Store is an opaque key/value store with change subscriptions.
// Get reports found=false for absent keys without error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Subscribe(fn func(Change)) (cancel func())
	Close() error
}

// Incrementer is implemented by stores that can add to a decimal counter atomically.
type Incrementer interface {
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// UsageKey returns the counter key for seconds spent on domain during dateKey.
func UsageKey(dateKey, domain string) string {
	return UsagePrefix + dateKey + "/" + domain
}

// UsageDayPrefix returns the key prefix covering every domain for one day.
func UsageDayPrefix(dateKey string) string {
	return UsagePrefix + dateKey + "/"
}

// ParseUsageKey splits a usage key into its date key and domain.
func ParseUsageKey(key string) (dateKey, dom string, err error) {
	rest, ok := strings.CutPrefix(key, UsagePrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	dateKey, dom, ok = strings.Cut(rest, "/")
	if !ok || dom == "" || len(dateKey) != len(domain.DateKeyLayout) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return dateKey, dom, nil
}
