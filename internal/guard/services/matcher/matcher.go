// Package matcher evaluates URLPatterns against URLs and domains.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/haukened/siteguard/internal/guard/common/domainkey"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/patterncache"
)

// ErrInvalidPattern is returned by Compile for glob or regex text that does not compile.
var ErrInvalidPattern = errors.New("invalid pattern")

// Matcher matches inputs against URL patterns, caching compiled glob and regex forms.
// It is safe for concurrent use.
type Matcher struct {
	cache  *patterncache.Cache
	logger log.Logger
}

// New returns a Matcher. A nil cache compiles on every match; a nil logger
// uses the global logger.
func New(cache *patterncache.Cache, logger log.Logger) *Matcher {
	if logger == nil {
		logger = log.Component(nil, "matcher")
	}
	return &Matcher{cache: cache, logger: logger}
}

// Matches reports whether input satisfies p. It never fails: a pattern that
// does not compile is a non-match.
func (m *Matcher) Matches(input string, p domain.URLPattern) bool {
	switch p.Type {
	case domain.PatternExact:
		return matchExact(input, p.Pattern)
	case domain.PatternContains:
		return strings.Contains(input, p.Pattern)
	case domain.PatternGlob, domain.PatternRegex:
		re := m.compiled(p)
		return re != nil && re.MatchString(input)
	default:
		return false
	}
}

// Glob matches input against a glob expression, as used by rule pattern targets.
func (m *Matcher) Glob(input, glob string) bool {
	return m.Matches(input, domain.URLPattern{ID: "glob", Pattern: glob, Type: domain.PatternGlob})
}

func (m *Matcher) compiled(p domain.URLPattern) *regexp.Regexp {
	c, fresh := m.cache.GetOrCompile(cacheKey(p), func() (*regexp.Regexp, error) {
		return Compile(p)
	})
	if fresh && c.Err != nil {
		m.logger.Warn(map[string]any{
			"pattern_id": p.ID,
			"pattern":    p.Pattern,
			"type":       p.Type.String(),
			"error":      c.Err,
		}, "pattern does not compile, treating as non-match")
	}
	return c.Re
}

// cacheKey includes the text so an edited pattern with the same id recompiles.
func cacheKey(p domain.URLPattern) string {
	return p.Type.String() + "\x00" + p.ID + "\x00" + p.Pattern
}

// Compile returns the case-insensitive regular expression for a glob or regex
// pattern. Errors wrap ErrInvalidPattern.
func Compile(p domain.URLPattern) (*regexp.Regexp, error) {
	var expr string
	switch p.Type {
	case domain.PatternGlob:
		expr = GlobToRegex(p.Pattern)
	case domain.PatternRegex:
		expr = p.Pattern
	default:
		return nil, fmt.Errorf("%w: %s patterns are not compiled", ErrInvalidPattern, p.Type)
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p.Pattern, err)
	}
	return re, nil
}

// GlobToRegex translates a glob into an unanchored regular expression:
// "." is escaped, "*" becomes ".*" and "?" becomes ".". Other characters pass through.
func GlobToRegex(glob string) string {
	var b strings.Builder
	b.Grow(len(glob) + 8)
	for _, r := range glob {
		switch r {
		case '.':
			b.WriteString(`\.`)
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// matchExact compares hostnames when the pattern is a URL, otherwise the literal strings.
func matchExact(input, pattern string) bool {
	if !strings.Contains(pattern, "://") {
		return input == pattern
	}
	host := domainkey.Normalize(pattern)
	return host != "" && host == domainkey.Normalize(input)
}

// Stats exposes the compiled-pattern cache counters.
func (m *Matcher) Stats() patterncache.Stats {
	return m.cache.Stats()
}
