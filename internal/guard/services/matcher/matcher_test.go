package matcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/patterncache"
)

// recordingLogger counts warnings.
type recordingLogger struct {
	log.Logger
	warns int
}

func (r *recordingLogger) Warn(map[string]any, string) { r.warns++ }

func newMatcher(t *testing.T) *Matcher {
	t.Helper()
	c, err := patterncache.New(64)
	require.NoError(t, err)
	return New(c, log.NewNoopLogger())
}

func TestMatches(t *testing.T) {
	m := newMatcher(t)
	cases := []struct {
		name  string
		input string
		p     domain.URLPattern
		want  bool
	}{
		{"exact domain literal", "youtube.com", domain.URLPattern{Pattern: "youtube.com", Type: domain.PatternExact}, true},
		{"exact literal is case sensitive", "YouTube.com", domain.URLPattern{Pattern: "youtube.com", Type: domain.PatternExact}, false},
		{"exact domain vs url input", "https://youtube.com/", domain.URLPattern{Pattern: "youtube.com", Type: domain.PatternExact}, false},
		{"exact url compares hosts", "https://www.youtube.com/watch?v=1", domain.URLPattern{Pattern: "http://youtube.com", Type: domain.PatternExact}, true},
		{"exact url host differs", "https://m.youtube.com/", domain.URLPattern{Pattern: "https://youtube.com/", Type: domain.PatternExact}, false},
		{"exact url with domain input", "youtube.com", domain.URLPattern{Pattern: "https://www.youtube.com/feed", Type: domain.PatternExact}, true},
		{"contains", "https://reddit.com/r/golang", domain.URLPattern{Pattern: "/r/", Type: domain.PatternContains}, true},
		{"contains is case sensitive", "https://reddit.com/R/golang", domain.URLPattern{Pattern: "/r/", Type: domain.PatternContains}, false},
		{"glob subdomain path", "http://a.example.com/path", domain.URLPattern{ID: "g1", Pattern: "*.example.com/*", Type: domain.PatternGlob}, true},
		{"glob other tld", "http://example.org/path", domain.URLPattern{ID: "g1", Pattern: "*.example.com/*", Type: domain.PatternGlob}, false},
		{"glob case insensitive", "HTTP://A.EXAMPLE.COM/PATH", domain.URLPattern{ID: "g1", Pattern: "*.example.com/*", Type: domain.PatternGlob}, true},
		{"glob dot is literal", "examplexcom", domain.URLPattern{ID: "g2", Pattern: "example.com", Type: domain.PatternGlob}, false},
		{"glob question mark", "bet1.io", domain.URLPattern{ID: "g3", Pattern: "bet?.io", Type: domain.PatternGlob}, true},
		{"glob unanchored", "https://casino.example.net/x", domain.URLPattern{ID: "g4", Pattern: "casino", Type: domain.PatternGlob}, true},
		{"regex", "https://news.ycombinator.com/item", domain.URLPattern{ID: "r1", Pattern: `news\.(ycombinator|google)\.com`, Type: domain.PatternRegex}, true},
		{"regex case insensitive", "NEWS.GOOGLE.COM", domain.URLPattern{ID: "r1", Pattern: `news\.(ycombinator|google)\.com`, Type: domain.PatternRegex}, true},
		{"invalid regex is non-match", "anything", domain.URLPattern{ID: "bad", Pattern: `([`, Type: domain.PatternRegex}, false},
		{"unknown type", "a", domain.URLPattern{Pattern: "a", Type: domain.PatternType(42)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Matches(tc.input, tc.p))
		})
	}
}

func TestInvalidRegexLoggedOnceAndCached(t *testing.T) {
	c, err := patterncache.New(8)
	require.NoError(t, err)
	rl := &recordingLogger{Logger: log.NewNoopLogger()}
	m := New(c, rl)
	p := domain.URLPattern{ID: "bad", Pattern: `(unclosed`, Type: domain.PatternRegex}

	assert.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			assert.False(t, m.Matches("unclosed", p))
		}
	})
	assert.Equal(t, 1, rl.warns)

	st := m.Stats()
	assert.Equal(t, uint64(4), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(1), st.Compiles)
}

func TestEditedPatternRecompiles(t *testing.T) {
	m := newMatcher(t)
	p := domain.URLPattern{ID: "p", Pattern: "foo", Type: domain.PatternRegex}
	assert.True(t, m.Matches("foo.com", p))
	p.Pattern = "bar"
	assert.False(t, m.Matches("foo.com", p))
	assert.True(t, m.Matches("bar.com", p))
}

func TestCompile(t *testing.T) {
	re, err := Compile(domain.URLPattern{Pattern: "*.bet", Type: domain.PatternGlob})
	require.NoError(t, err)
	assert.True(t, re.MatchString("sports.BET"))

	_, err = Compile(domain.URLPattern{Pattern: "a(", Type: domain.PatternRegex})
	assert.True(t, errors.Is(err, ErrInvalidPattern))

	_, err = Compile(domain.URLPattern{Pattern: "a", Type: domain.PatternExact})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestGlobToRegex(t *testing.T) {
	assert.Equal(t, `.*\.example\.com/.*`, GlobToRegex("*.example.com/*"))
	assert.Equal(t, `a.c`, GlobToRegex("a?c"))
}

func TestNilCacheAndLogger(t *testing.T) {
	m := New(nil, nil)
	assert.True(t, m.Glob("www.twitch.tv", "*twitch*"))
}

func BenchmarkMatches_Regex(b *testing.B) {
	c, _ := patterncache.New(128)
	m := New(c, log.NewNoopLogger())
	p := domain.URLPattern{ID: "r", Pattern: `(^|\.)youtube\.com/(watch|shorts)`, Type: domain.PatternRegex}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Matches("https://www.youtube.com/watch?v=abc", p)
	}
}

func BenchmarkMatches_Glob(b *testing.B) {
	c, _ := patterncache.New(128)
	m := New(c, log.NewNoopLogger())
	p := domain.URLPattern{ID: "g", Pattern: "*.example.com/*", Type: domain.PatternGlob}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Matches("http://a.example.com/path", p)
	}
}
