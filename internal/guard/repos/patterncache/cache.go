// Package patterncache compiles URL patterns at most once per key and keeps
// the results, failures included, in a bounded LRU.
package patterncache

import (
	"regexp"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Compiled is the outcome of compiling one pattern. Err is set when the
// pattern does not compile; such a result is kept like any other.
type Compiled struct {
	Re  *regexp.Regexp
	Err error
}

// CompileFunc produces the matcher for one key.
type CompileFunc func() (*regexp.Regexp, error)

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Compiles  uint64
	Len       int
}

// entry compiles lazily; once guards concurrent first lookups of a key.
type entry struct {
	once sync.Once
	res  Compiled
}

// Cache maps pattern keys to compiled results. A nil or zero-size Cache
// compiles on every call. It is safe for concurrent use.
type Cache struct {
	lru *lru.Cache[string, *entry]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	compiles  atomic.Uint64
}

// New returns a Cache holding at most size keys. size <= 0 disables retention.
func New(size int) (*Cache, error) {
	c := &Cache{}
	if size <= 0 {
		return c, nil
	}
	l, err := lru.NewWithEvict(size, func(string, *entry) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// GetOrCompile returns the result for key, running compile only if no result
// is held. fresh is true for exactly the call that ran compile, so callers can
// report a failure once instead of on every lookup.
func (c *Cache) GetOrCompile(key string, compile CompileFunc) (res Compiled, fresh bool) {
	if c == nil || c.lru == nil {
		re, err := compile()
		if c != nil {
			c.compiles.Add(1)
		}
		return Compiled{Re: re, Err: err}, true
	}

	e, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
		e = &entry{}
		// another goroutine may have added the key since Get
		if prev, found, _ := c.lru.PeekOrAdd(key, e); found {
			e = prev
		}
	}

	e.once.Do(func() {
		re, err := compile()
		e.res = Compiled{Re: re, Err: err}
		c.compiles.Add(1)
		fresh = true
	})
	return e.res, fresh
}

// Len returns the number of retained keys.
func (c *Cache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Stats returns the counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Compiles:  c.compiles.Load(),
		Len:       c.Len(),
	}
}
