package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/store"
)

var now = time.Date(2024, 5, 15, 10, 0, 0, 0, time.Local)

// mockStore lets individual calls fail.
type mockStore struct {
	mock.Mock
	store.Notifier
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Bool(1), args.Error(2)
}
func (m *mockStore) Set(ctx context.Context, key string, v []byte) error {
	return m.Called(ctx, key, v).Error(0)
}
func (m *mockStore) Delete(ctx context.Context, key string) error { return m.Called(ctx, key).Error(0) }
func (m *mockStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}
func (m *mockStore) Close() error { return nil }

var _ store.Store = (*mockStore)(nil)

func seed(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, store.KeyLimits, []byte(`[
		{"id":"ok","targetType":"site","targetId":"youtube.com","timeframe":"daily","limitMinutes":30},
		{"id":"zero","targetId":"a.com","limitMinutes":0}
	]`)))
	require.NoError(t, s.Set(ctx, store.KeyAdvancedRules, []byte(`[
		{"id":"r1","schedule":{"days":[1,2,3]},"targets":[{"type":"domain","value":"reddit.com"}],"priority":4},
		{"id":"bad-day","schedule":{"days":[9]},"targets":[{"value":"x.com"}]}
	]`)))
	require.NoError(t, s.Set(ctx, store.KeyURLPatterns, []byte(`[
		{"id":"p1","pattern":"([","type":"regex","action":"block"},
		{"id":"p2","pattern":"","type":"exact"}
	]`)))
	require.NoError(t, s.Set(ctx, store.KeyDomainCategories, []byte(`{"chess.com":"Games"}`)))
	require.NoError(t, s.Set(ctx, store.KeyCategories, []byte(`[{"name":"Games","color":"#0f0"},{"color":"#000"}]`)))
	require.NoError(t, s.Set(ctx, store.KeySnoozeUntil, []byte(`1715774460000`)))
	require.NoError(t, s.Set(ctx, store.UsageKey("2024-05-15", "youtube.com"), []byte("600")))
	require.NoError(t, s.Set(ctx, store.UsageKey("2024-05-14", "youtube.com"), []byte("60")))
	require.NoError(t, s.Set(ctx, store.UsageKey("2024-05-01", "youtube.com"), []byte("9")))
	require.NoError(t, s.Set(ctx, store.UsageKey("2024-05-15", "bad.com"), []byte("lots")))
	return s
}

func TestLoad_DefaultsAndValidation(t *testing.T) {
	r := New(seed(t), nil, log.NewNoopLogger())
	snap := r.Load(context.Background(), now)

	assert.False(t, snap.Degraded)
	require.Len(t, snap.Limits, 1)
	assert.Equal(t, "youtube.com", snap.Limits[0].DisplayName)

	require.Len(t, snap.Rules, 1)
	rule := snap.Rules[0]
	assert.True(t, rule.Enabled)
	assert.Equal(t, "r1", rule.Name)
	assert.Equal(t, "00:00", rule.Schedule.StartTime)
	assert.Equal(t, "00:00", rule.Schedule.EndTime)
	assert.Equal(t, domain.ActionBlock, rule.Targets[0].Action)

	// an uncompilable regex is kept; it simply never matches
	require.Len(t, snap.Patterns, 1)
	assert.Equal(t, "p1", snap.Patterns[0].ID)

	assert.Equal(t, map[string]string{"chess.com": "Games"}, snap.DomainCategories)
	assert.Equal(t, []domain.Category{{Name: "Games", Color: "#0f0"}}, snap.Categories)
	assert.Equal(t, int64(1715774460000), snap.Snooze.UntilMs)

	// default lookback is today only; unparsable counters are dropped
	assert.Equal(t, []domain.UsageEvent{{Domain: "youtube.com", DateKey: "2024-05-15", Seconds: 600}}, snap.Usage)
	assert.Equal(t, now, snap.LoadedAt)
}

func TestLoad_Lookback(t *testing.T) {
	r := New(seed(t), func(n time.Time) time.Time { return n.AddDate(0, 0, -1) }, log.NewNoopLogger())
	snap := r.Load(context.Background(), now)
	assert.Len(t, snap.Usage, 2)
	assert.ElementsMatch(t, []string{"youtube.com"}, snap.KnownDomains())
}

func TestLoad_EmptyStore(t *testing.T) {
	snap := New(store.NewMemory(), nil, log.NewNoopLogger()).Load(context.Background(), now)
	assert.False(t, snap.Degraded)
	assert.Empty(t, snap.Limits)
	assert.Empty(t, snap.Rules)
	assert.NotNil(t, snap.DomainCategories)
	assert.False(t, snap.Snooze.IsSet())
}

func TestLoad_StoreUnavailableFailsOpen(t *testing.T) {
	m := &mockStore{}
	m.On("Get", mock.Anything, mock.Anything).Return(nil, false, store.ErrStoreUnavailable)
	m.On("Keys", mock.Anything, mock.Anything).Return(nil, store.ErrStoreUnavailable)

	snap := New(m, nil, log.NewNoopLogger()).Load(context.Background(), now)
	assert.True(t, snap.Degraded)
	assert.Empty(t, snap.Limits)
	assert.Empty(t, snap.Rules)
	assert.Empty(t, snap.Patterns)
	assert.Empty(t, snap.Usage)
	assert.False(t, snap.Snooze.IsSet())
}

func TestLoad_CorruptSectionIsolated(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	require.NoError(t, s.Set(ctx, store.KeyAdvancedRules, []byte(`{"not":"a list"}`)))

	snap := New(s, nil, log.NewNoopLogger()).Load(ctx, now)
	assert.True(t, snap.Degraded)
	assert.Empty(t, snap.Rules)
	assert.Len(t, snap.Limits, 1, "other sections still load")
}

func TestLoad_UndecodableRecordDropsOnlyItself(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	require.NoError(t, s.Set(ctx, store.KeyLimits, []byte(`[
		{"id":"odd","targetType":"domain","targetId":"a.com","limitMinutes":5},
		{"id":"yt","targetId":"youtube.com","limitMinutes":30},
		"not an object"
	]`)))
	require.NoError(t, s.Set(ctx, store.KeyAdvancedRules, []byte(`[
		{"id":"url-target","schedule":{"days":[3]},"targets":[{"type":"url","value":"x.com"}]},
		{"id":"r1","schedule":{"days":[3]},"targets":[{"type":"domain","value":"reddit.com"}]}
	]`)))
	require.NoError(t, s.Set(ctx, store.KeyURLPatterns, []byte(`[
		{"id":"fuzzy","pattern":"a","type":"fuzzy"},
		{"id":"p1","pattern":"*.bet","type":"glob"}
	]`)))

	snap := New(s, nil, log.NewNoopLogger()).Load(ctx, now)
	assert.False(t, snap.Degraded)
	require.Len(t, snap.Limits, 1)
	assert.Equal(t, "yt", snap.Limits[0].ID)
	require.Len(t, snap.Rules, 1)
	assert.Equal(t, "r1", snap.Rules[0].ID)
	require.Len(t, snap.Patterns, 1)
	assert.Equal(t, "p1", snap.Patterns[0].ID)
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"id":"r7","type":"bogus"}`, "r7"},
		{`{"name":"no id"}`, "#2"},
		{`42`, "#2"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, recordID([]byte(tc.raw), 2), tc.raw)
	}
}

func TestLoadSnooze(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	st, err := LoadSnooze(ctx, s)
	require.NoError(t, err)
	assert.False(t, st.IsSet())

	require.NoError(t, s.Set(ctx, store.KeySnoozeUntil, []byte(`"soon"`)))
	_, err = LoadSnooze(ctx, s)
	assert.Error(t, err)
}

func TestSaveHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	r := New(s, nil, log.NewNoopLogger())

	require.NoError(t, r.SaveLimits(ctx, []domain.LimitRecord{{ID: "l", TargetID: "a.com", LimitMinutes: 5}}))
	require.NoError(t, r.SaveRules(ctx, []domain.TimeRule{{ID: "r", Enabled: false, Targets: []domain.RuleTarget{{Value: "a.com"}}}}))
	require.NoError(t, r.SavePatterns(ctx, []domain.URLPattern{{ID: "p", Pattern: "*.bet", Type: domain.PatternGlob, Enabled: true}}))
	require.NoError(t, r.SaveDomainCategories(ctx, map[string]string{"a.com": "X"}))
	require.NoError(t, r.SaveCategories(ctx, []domain.Category{{Name: "X"}}))

	snap := r.Load(ctx, now)
	require.Len(t, snap.Limits, 1)
	require.Len(t, snap.Rules, 1)
	assert.False(t, snap.Rules[0].Enabled, "explicit false survives")
	require.Len(t, snap.Patterns, 1)
	assert.Equal(t, domain.PatternGlob, snap.Patterns[0].Type)
	assert.Equal(t, "X", snap.DomainCategories["a.com"])
	assert.Same(t, s, r.Store())
}
