// Package votes – pool.
//
// A single Synchronizer tracks one active identity, which is exactly right
// for one viewer session and exactly wrong for a concurrent HTTP server:
// two interleaved requests would fight over the active-user slot and one
// viewer could be annotated from the other's snapshot. The Pool keys
// synchronizers by identity so each viewer reads only their own snapshot.
//
// Entries are created on demand and stored in a map guarded by a mutex.
// Idle entries are evicted after a TTL via opportunistic cleanup during
// lookups to keep memory usage bounded.
package votes

import (
	"sync"
	"time"
)

// poolGCEvery is the lookup count between opportunistic idle-entry sweeps.
const poolGCEvery = 1000

// poolEntry holds one identity's synchronizer and the last time it was
// handed out.
type poolEntry struct {
	sync     *Synchronizer
	lastSeen time.Time
}

// Pool hands out one Synchronizer per viewer identity.
//
// All synchronizers share the pool's Source and Store; snapshot store keys
// are already namespaced per user, so an evicted entry's persisted snapshot
// survives and warm-starts the next synchronizer built for that identity.
//
// This type is safe for concurrent use.
type Pool struct {
	source Source
	store  Store
	maxAge time.Duration

	mu      sync.Mutex
	entries map[string]*poolEntry
	ttl     time.Duration
	lookups uint64

	// test seam
	now func() time.Time
}

// NewPool builds a Pool whose synchronizers share source, store and maxAge.
// A nil store falls back to one process-local MemoryStore shared by every
// entry; maxAge <= 0 uses DefaultMaxAge.
func NewPool(source Source, store Store, maxAge time.Duration) *Pool {
	if store == nil {
		store = NewMemoryStore()
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Pool{
		source:  source,
		store:   store,
		maxAge:  maxAge,
		entries: make(map[string]*poolEntry),
		ttl:     2 * maxAge, // idle entries linger one extra snapshot lifetime
		now:     time.Now,
	}
}

// For returns the synchronizer for user, creating it on first use. The
// empty identity never has a snapshot; For("") returns nil and callers skip
// annotation entirely.
//
// Cleanup runs before the requested entry is touched so an idle entry can
// be evicted even when it is the one being fetched.
func (p *Pool) For(user string) *Synchronizer {
	if user == "" {
		return nil
	}
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lookups++
	if p.lookups >= poolGCEvery {
		for k, e := range p.entries {
			if now.Sub(e.lastSeen) >= p.ttl {
				delete(p.entries, k)
			}
		}
		p.lookups = 0
	}

	if e, ok := p.entries[user]; ok {
		e.lastSeen = now
		return e.sync
	}
	s := NewSynchronizer(p.source, p.store, p.maxAge)
	p.entries[user] = &poolEntry{sync: s, lastSeen: now}
	return s
}

// Invalidate drops user's snapshot in memory and in the store, whether or
// not a synchronizer is currently pooled for that identity. The next read
// rebuilds from the source instead of serving the pre-write set.
func (p *Pool) Invalidate(user string) {
	if user == "" {
		return
	}
	p.mu.Lock()
	e := p.entries[user]
	p.mu.Unlock()

	if e != nil && e.sync.User() == user {
		e.sync.Invalidate()
		return
	}
	_ = p.store.Delete(storeKey(user))
}
