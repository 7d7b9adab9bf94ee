// Package blockset holds the installed block set for per-request lookups.
package blockset

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/siteguard/internal/guard/domain"
)

// BloomFilter is the minimal interface the index needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds filters sized for a capacity and false-positive rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// Stats exposes index counters.
type Stats struct {
	Domains        int
	Categories     int
	Exceptions     int
	Generation     string
	InstalledAt    time.Time
	Lookups        uint64
	BloomNegatives uint64
}

type snapshot struct {
	set         domain.BlockSet
	domains     map[string]struct{}
	exceptions  map[string]struct{}
	bloom       BloomFilter
	installedAt time.Time
}

// Index answers "is this domain blocked" against the most recently installed
// set. Install swaps the whole set atomically; lookups never see a partial set.
type Index struct {
	factory BloomFactory
	fpRate  float64

	mu  sync.Mutex // serializes Install
	cur atomic.Pointer[snapshot]

	lookups   uint64
	negatives uint64
}

// New returns an empty Index. A nil factory disables the Bloom fast path.
func New(factory BloomFactory, fpRate float64) *Index {
	ix := &Index{factory: factory, fpRate: fpRate}
	ix.cur.Store(&snapshot{domains: map[string]struct{}{}, exceptions: map[string]struct{}{}})
	return ix
}

// Install replaces the current set.
func (ix *Index) Install(set domain.BlockSet, at time.Time) {
	snap := &snapshot{
		set:         set,
		domains:     make(map[string]struct{}, len(set.Domains)),
		exceptions:  make(map[string]struct{}, len(set.Exceptions)),
		installedAt: at,
	}
	for _, d := range set.Exceptions {
		snap.exceptions[d] = struct{}{}
	}
	if ix.factory != nil {
		snap.bloom = ix.factory.New(uint64(len(set.Domains)), ix.fpRate)
	}
	for _, d := range set.Domains {
		snap.domains[d] = struct{}{}
		if snap.bloom != nil {
			snap.bloom.Add([]byte(d))
		}
	}

	ix.mu.Lock()
	ix.cur.Store(snap)
	ix.mu.Unlock()
}

// Current returns the installed set.
func (ix *Index) Current() domain.BlockSet {
	return ix.cur.Load().set
}

// Contains reports whether name or any parent domain of it is in the set.
// The most specific entry wins, so an exception under a blocked domain
// lets its own subtree through.
func (ix *Index) Contains(name string) bool {
	atomic.AddUint64(&ix.lookups, 1)
	if name == "" {
		return false
	}
	snap := ix.cur.Load()
	if len(snap.domains) == 0 {
		return false
	}
	for cur := name; cur != ""; {
		if _, ok := snap.exceptions[cur]; ok {
			return false
		}
		if snap.bloom == nil || snap.bloom.MightContain([]byte(cur)) {
			if _, ok := snap.domains[cur]; ok {
				return true
			}
		} else {
			atomic.AddUint64(&ix.negatives, 1)
		}
		i := strings.IndexByte(cur, '.')
		if i < 0 {
			break
		}
		cur = cur[i+1:]
	}
	return false
}

// Stats returns the index counters and the installed set's metadata.
func (ix *Index) Stats() Stats {
	snap := ix.cur.Load()
	return Stats{
		Domains:        len(snap.set.Domains),
		Categories:     len(snap.set.Categories),
		Exceptions:     len(snap.set.Exceptions),
		Generation:     snap.set.Generation,
		InstalledAt:    snap.installedAt,
		Lookups:        atomic.LoadUint64(&ix.lookups),
		BloomNegatives: atomic.LoadUint64(&ix.negatives),
	}
}
