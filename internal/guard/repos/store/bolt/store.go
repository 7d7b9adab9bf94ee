// Package bolt implements store.Store on a bbolt database file.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/siteguard/internal/guard/repos/store"
)

var bucketKV = []byte("kv")

// Store is a durable store.Store backed by a single bbolt bucket.
type Store struct {
	store.Notifier
	db *bbolt.DB
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.Incrementer = (*Store)(nil)
)

// New opens (or creates) a Bolt database at path and ensures the bucket exists.
func New(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", store.ErrStoreUnavailable, path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketKV).Get([]byte(key))
		if v != nil {
			// bbolt values are only valid for the life of the transaction
			out = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, false, wrap(err)
	}
	return out, out != nil, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	}); err != nil {
		return wrap(err)
	}
	s.Publish(store.Change{Key: key})
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	var existed bool
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		existed = b.Get([]byte(key)) != nil
		return b.Delete([]byte(key))
	}); err != nil {
		return wrap(err)
	}
	if existed {
		s.Publish(store.Change{Key: key, Deleted: true})
	}
	return nil
}

// Keys returns every key starting with prefix, in byte order.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	return out, nil
}

// IncrBy adds delta to the decimal counter at key within one write transaction.
func (s *Store) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	var cur int64
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		if v := b.Get([]byte(key)); v != nil {
			cur, _ = store.ParseCounter(v)
		}
		cur += delta
		return b.Put([]byte(key), []byte(strconv.FormatInt(cur, 10)))
	}); err != nil {
		return 0, wrap(err)
	}
	s.Publish(store.Change{Key: key})
	return cur, nil
}

// Len returns the number of keys in the database.
func (s *Store) Len() int {
	var n int
	_ = s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketKV).Stats().KeyN
		return nil
	})
	return n
}

func wrap(err error) error {
	if errors.Is(err, bberrors.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %v", store.ErrClosed, err)
	}
	return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
}
