package enforcement

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
)

var set = domain.BlockSet{Domains: []string{"reddit.com", "youtube.com"}, Generation: "g"}

func TestDirectives(t *testing.T) {
	got := Directives(set, "blocked.html")
	require.Len(t, got, 2)
	assert.Equal(t, domain.Directive{ID: 1, Pattern: "||reddit.com^", RedirectTarget: "blocked.html"}, got[0])
	assert.Equal(t, 2, got[1].ID)
	assert.Equal(t, "||youtube.com^", got[1].Pattern)

	assert.Empty(t, Directives(domain.BlockSet{}, "x"))
}

func TestToRules_RedirectKinds(t *testing.T) {
	rules := ToRules([]domain.Directive{
		{ID: 1, Pattern: "||a.com^", RedirectTarget: "https://guard.example/blocked"},
		{ID: 2, Pattern: "||b.com^", RedirectTarget: "/blocked.html"},
	})
	require.Len(t, rules, 2)
	assert.Equal(t, "https://guard.example/blocked", rules[0].Action.Redirect.URL)
	assert.Empty(t, rules[0].Action.Redirect.ExtensionPath)
	assert.Equal(t, "/blocked.html", rules[1].Action.Redirect.ExtensionPath)
	assert.Equal(t, []string{"main_frame"}, rules[1].Condition.ResourceTypes)
	assert.Equal(t, "redirect", rules[1].Action.Type)
}

func TestDirectives_ExceptionsAllow(t *testing.T) {
	bs := domain.BlockSet{Domains: []string{"reddit.com"}, Exceptions: []string{"m.reddit.com"}}
	got := Directives(bs, "/blocked.html")
	require.Len(t, got, 2)
	assert.Equal(t, domain.Directive{ID: 2, Pattern: "||m.reddit.com^", Allow: true}, got[1])

	rules := ToRules(got)
	assert.Equal(t, "redirect", rules[0].Action.Type)
	assert.Equal(t, 2, rules[0].Priority)
	assert.Equal(t, "allow", rules[1].Action.Type)
	assert.Nil(t, rules[1].Action.Redirect)
	assert.Greater(t, rules[1].Priority, rules[0].Priority)

	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, NewFileEnforcer(path, log.NewNoopLogger()).Replace(context.Background(), got))
}

func TestSpecificity(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"||reddit.com^", 2},
		{"||a.b.reddit.com^", 4},
		{"||localhost^", 1},
		{"", 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Specificity(tc.in), tc.in)
	}
}

func TestFileEnforcer_ReplaceWritesWholeRuleset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	f := NewFileEnforcer(path, log.NewNoopLogger())
	ctx := context.Background()

	require.NoError(t, f.Replace(ctx, Directives(set, "/blocked.html")))
	var rules []Rule
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &rules))
	require.Len(t, rules, 2)
	assert.Equal(t, "||youtube.com^", rules[1].Condition.URLFilter)

	require.NoError(t, f.Replace(ctx, nil))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))
}

func TestFileEnforcer_RejectsEmptyRedirect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	f := NewFileEnforcer(path, log.NewNoopLogger())

	err := f.Replace(context.Background(), Directives(set, " "))
	assert.ErrorIs(t, err, ErrInvalidRedirect)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileEnforcer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFileEnforcer(filepath.Join(t.TempDir(), "rules.json"), nil)
	assert.ErrorIs(t, f.Replace(ctx, nil), context.Canceled)
}

func TestMemoryEnforcer(t *testing.T) {
	m := NewMemoryEnforcer()
	in := Directives(set, "x")
	require.NoError(t, m.Replace(context.Background(), in))
	in[0].Pattern = "mutated"

	got := m.Directives()
	assert.Equal(t, "||reddit.com^", got[0].Pattern)
	assert.Equal(t, 1, m.Replaces())
}
