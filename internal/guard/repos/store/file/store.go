// Package file implements store.Store on a single YAML, JSON or TOML settings
// document, with change notifications from fsnotify.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/v2"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	kfile "github.com/knadh/koanf/providers/file"

	"github.com/haukened/siteguard/internal/guard/common/fsutil"
	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/domain"
	"github.com/haukened/siteguard/internal/guard/repos/store"
)

// usageSection is the document key holding usage counters as date -> domain -> seconds.
const usageSection = "usage"

// keyDelim must not occur in domains or date keys.
const keyDelim = "|"

// ErrUnsupportedFormat is returned for paths without a .yaml, .yml, .json or .toml extension.
var ErrUnsupportedFormat = errors.New("unsupported settings file format")

// Options configures a file store.
type Options struct {
	// Watch enables reloading on external edits.
	Watch  bool
	Logger log.Logger
}

// Store keeps the decoded document in memory as flat key -> value bytes and
// rewrites the whole file on every mutation.
type Store struct {
	store.Notifier

	path   string
	parser koanf.Parser
	logger log.Logger

	mu     sync.RWMutex
	values map[string][]byte
	closed bool

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.Incrementer = (*Store)(nil)
)

// ParserFor returns the koanf parser matching the file extension of path.
func ParserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// New loads the document at path. A missing file is treated as an empty document
// and created on the first write.
func New(path string, opts Options) (*Store, error) {
	parser, err := ParserFor(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Component(nil, "store.file")
	}
	s := &Store{path: abs, parser: parser, logger: logger}

	values, err := s.load()
	if err != nil {
		return nil, err
	}
	s.values = values

	if opts.Watch {
		if err := s.watch(); err != nil {
			return nil, fmt.Errorf("%w: watch %s: %v", store.ErrStoreUnavailable, abs, err)
		}
	}
	return s, nil
}

// load reads and flattens the document. Values are re-encoded as JSON;
// usage counters become decimal text under usage/<date>/<domain>.
func (s *Store) load() (map[string][]byte, error) {
	values := make(map[string][]byte)
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	k := koanf.New(keyDelim)
	if err := k.Load(kfile.Provider(s.path), s.parser); err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", store.ErrStoreUnavailable, s.path, err)
	}
	for key, raw := range k.Raw() {
		if key == usageSection {
			flattenUsage(raw, values)
			continue
		}
		b, err := json.Marshal(raw)
		if err != nil {
			s.logger.Warn(map[string]any{"key": key, "error": err}, "skipping unencodable settings value")
			continue
		}
		values[key] = b
	}
	return values, nil
}

func flattenUsage(raw any, into map[string][]byte) {
	days, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for rawDate, v := range days {
		date, ok := usageDate(rawDate)
		if !ok {
			continue
		}
		domains, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for dom, secs := range domains {
			n, ok := toInt64(secs)
			if !ok {
				continue
			}
			into[store.UsageKey(date, dom)] = []byte(strconv.FormatInt(n, 10))
		}
	}
}

// usageDate accepts a date key, or the form an unquoted YAML date takes
// once koanf has stringified the decoded timestamp.
func usageDate(s string) (string, bool) {
	if _, err := time.Parse(domain.DateKeyLayout, s); err == nil {
		return s, true
	}
	if t, err := time.Parse("2006-01-02 15:04:05 -0700 MST", s); err == nil {
		return t.Format(domain.DateKeyLayout), true
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := store.ParseCounter([]byte(n))
		return i, err == nil
	default:
		return 0, false
	}
}

// document rebuilds the nested form written to disk. Caller holds s.mu.
func (s *Store) document() (map[string]any, error) {
	doc := make(map[string]any, len(s.values))
	usage := make(map[string]any)
	for key, raw := range s.values {
		if date, dom, err := store.ParseUsageKey(key); err == nil {
			n, _ := store.ParseCounter(raw)
			day, _ := usage[date].(map[string]any)
			if day == nil {
				day = make(map[string]any)
				usage[date] = day
			}
			day[dom] = n
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("key %q holds non-JSON value: %w", key, err)
		}
		doc[key] = v
	}
	if len(usage) > 0 {
		doc[usageSection] = usage
	}
	return doc, nil
}

// persist writes the document. Caller holds the write lock.
func (s *Store) persist() error {
	doc, err := s.document()
	if err != nil {
		return err
	}
	data, err := s.parser.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, store.ErrClosed
	}
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Set stores value, which must be valid JSON unless key is a usage counter.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	value, err := canonical(key, value)
	if err != nil {
		return err
	}
	if err := s.mutate(func(values map[string][]byte) {
		values[key] = value
	}); err != nil {
		return err
	}
	s.Publish(store.Change{Key: key})
	return nil
}

// canonical re-encodes JSON values the way load does, so reloading our own
// write yields identical bytes.
func canonical(key string, value []byte) ([]byte, error) {
	if _, _, err := store.ParseUsageKey(key); err == nil {
		n, err := store.ParseCounter(value)
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	var v any
	if err := json.Unmarshal(value, &v); err != nil {
		return nil, fmt.Errorf("key %q: value is not valid JSON: %w", key, err)
	}
	return json.Marshal(v)
}

func (s *Store) Delete(_ context.Context, key string) error {
	var existed bool
	if err := s.mutate(func(values map[string][]byte) {
		_, existed = values[key]
		delete(values, key)
	}); err != nil {
		return err
	}
	if existed {
		s.Publish(store.Change{Key: key, Deleted: true})
	}
	return nil
}

// IncrBy adds delta to a usage counter and persists the document.
func (s *Store) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	var cur int64
	if err := s.mutate(func(values map[string][]byte) {
		cur, _ = store.ParseCounter(values[key])
		cur += delta
		values[key] = []byte(strconv.FormatInt(cur, 10))
	}); err != nil {
		return 0, err
	}
	s.Publish(store.Change{Key: key})
	return cur, nil
}

// mutate applies fn to a copy of the values and commits it only if the
// document was written.
func (s *Store) mutate(fn func(map[string][]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	prev := s.values
	next := make(map[string][]byte, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	fn(next)
	s.values = next
	if err := s.persist(); err != nil {
		s.values = prev
		return err
	}
	return nil
}

func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	var out []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.watcher != nil {
		close(s.stop)
		err := s.watcher.Close()
		s.wg.Wait()
		return err
	}
	return nil
}
