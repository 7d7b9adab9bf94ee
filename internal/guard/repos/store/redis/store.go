// Package redis implements store.Store on Redis, using a pub/sub channel so
// every process sharing the database sees every mutation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/haukened/siteguard/internal/guard/common/log"
	"github.com/haukened/siteguard/internal/guard/repos/store"
)

// DefaultNamespace prefixes every key and names the change channel.
const DefaultNamespace = "siteguard"

const deletedMarker = "\x00deleted"

// Options configures a Redis store.
type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
	Logger    log.Logger
}

// Store is a store.Store backed by a go-redis client.
type Store struct {
	store.Notifier

	client  *goredis.Client
	ns      string
	channel string
	logger  log.Logger

	pubsub *goredis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.Incrementer = (*Store)(nil)
)

// New connects to Redis, verifies the connection and starts the change listener.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis %s: %v", store.ErrStoreUnavailable, opts.Addr, err)
	}
	s, err := newWithClient(ctx, client, opts)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func newWithClient(ctx context.Context, client *goredis.Client, opts Options) (*Store, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Component(nil, "store.redis")
	}
	s := &Store{
		client:  client,
		ns:      ns + ":",
		channel: ns + ":changes",
		logger:  logger,
	}

	s.pubsub = client.Subscribe(ctx, s.channel)
	// wait for the subscription to be confirmed so no change is missed
	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", store.ErrStoreUnavailable, s.channel, err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.listen(lctx)
	return s, nil
}

func (s *Store) listen(ctx context.Context) {
	defer s.wg.Done()
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			key, deleted := strings.CutSuffix(msg.Payload, deletedMarker)
			s.Publish(store.Change{Key: key, Deleted: deleted})
		}
	}
}

func (s *Store) key(k string) string { return s.ns + k }

func (s *Store) announce(ctx context.Context, key string, deleted bool) {
	payload := key
	if deleted {
		payload += deletedMarker
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		s.logger.Warn(map[string]any{"key": key, "error": err}, "failed to publish change")
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap(err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return wrap(err)
	}
	s.announce(ctx, key, false)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return wrap(err)
	}
	if n > 0 {
		s.announce(ctx, key, true)
	}
	return nil
}

// Keys scans the keyspace for prefix. Results are unordered.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := s.client.Scan(ctx, 0, escapeGlob(s.key(prefix))+"*", 256).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), s.ns))
	}
	if err := iter.Err(); err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, s.key(key), delta).Result()
	if err != nil {
		return 0, wrap(err)
	}
	s.announce(ctx, key, false)
	return n, nil
}

func (s *Store) stopListener() {
	s.cancel()
	_ = s.pubsub.Close()
	s.wg.Wait()
}

func (s *Store) Close() error {
	s.stopListener()
	return s.client.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

func wrap(err error) error {
	if errors.Is(err, goredis.ErrClosed) {
		return fmt.Errorf("%w: %v", store.ErrClosed, err)
	}
	return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
}
