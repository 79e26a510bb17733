// Package feed – cache manager.
//
// The Manager owns one cache bucket per (sort mode, filter) key. It is the
// only layer that retries, and the only layer that decides whether a page
// comes from cache or from the mode's Fetcher. Policy (staleness on mount,
// GC delay after the last consumer detaches) is constructor-injected per
// mode rather than read from ambient globals, so tests and different
// deployments can carry their own tables.
//
// Concurrency: all bucket state is guarded by one mutex; the lock is
// released around fetcher calls and backoff sleeps. Every fetch captures
// the bucket's generation first and re-checks it before merging, so a page
// that resolves after its session was invalidated (mode switch, refetch,
// eviction) is discarded rather than merged — that discard surfaces as
// ErrStaleContext and is not a user-visible failure.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-meme-backend/internal/domain"
)

// Manager-level sentinel errors.
var (
	// ErrUnknownMode is returned for a key whose mode has no fetcher.
	ErrUnknownMode = errors.New("unknown sort mode")

	// ErrNoMorePages is returned when advancing a chain whose last page
	// reported HasMore == false.
	ErrNoMorePages = errors.New("no more pages")

	// ErrCursorMismatch is returned when the supplied cursor is not the
	// exact NextCursor issued by the bucket's last page. Reconstructed or
	// replayed cursors are a contract violation, never silently accepted.
	ErrCursorMismatch = errors.New("cursor does not continue the current chain")

	// ErrStaleContext is returned when a fetch resolved after its owning
	// session changed. The result was discarded; callers should re-read the
	// bucket rather than report a failure.
	ErrStaleContext = errors.New("fetch resolved for a stale session")
)

var (
	cacheFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_fetches_total",
			Help: "Feed page fetches through the cache manager, by mode and result.",
		},
		[]string{"mode", "result"},
	)
	cacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_evictions_total",
			Help: "Feed cache buckets dropped by garbage collection.",
		},
		[]string{"mode"},
	)
	cacheStaleDiscards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_stale_discards_total",
			Help: "Fetched pages discarded because their session had changed.",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(cacheFetches, cacheEvictions, cacheStaleDiscards)
}

// Key identifies one cache bucket: a sort mode plus an optional media-type
// filter. The filtered variants of a mode follow exactly the same policy as
// the unfiltered one, they just live under their own key.
type Key struct {
	Mode   domain.SortMode
	Filter string
}

// Policy is the per-mode cache behavior.
type Policy struct {
	// StaleAfter is the age past which a bucket is refetched from the first
	// page on mount instead of trusted. Zero means always stale on mount
	// (random feeds must reshuffle). It never interrupts an in-progress
	// pagination session.
	StaleAfter time.Duration

	// GCDelay is how long a bucket with zero consumers is retained before
	// being dropped. Zero drops it on the last detach.
	GCDelay time.Duration
}

// Backoff bounds the retry loop around failed fetches.
type Backoff struct {
	Base        time.Duration // first retry delay, doubled per attempt
	Cap         time.Duration // delay ceiling
	MaxAttempts int           // total attempts before surfacing the error
}

// Config carries the injected policy table and retry bounds.
type Config struct {
	Policies map[domain.SortMode]Policy
	Backoff  Backoff
}

// DefaultConfig returns the production policy table: latest pages age out
// after 10s, hot after 60s, random is always stale on mount; latest and hot
// buckets linger 5 minutes after the last consumer, random is dropped
// immediately because its session cursor is meaningless once abandoned.
func DefaultConfig() Config {
	return Config{
		Policies: map[domain.SortMode]Policy{
			domain.SortLatest: {StaleAfter: 10 * time.Second, GCDelay: 5 * time.Minute},
			domain.SortHot:    {StaleAfter: 60 * time.Second, GCDelay: 5 * time.Minute},
			domain.SortRandom: {StaleAfter: 0, GCDelay: 0},
		},
		Backoff: Backoff{Base: time.Second, Cap: 30 * time.Second, MaxAttempts: 3},
	}
}

type bucket struct {
	generation uint64
	fetched    bool
	items      []domain.Meme
	seen       map[string]struct{}
	nextCursor string
	hasMore    bool
	total      *int64
	lastFetch  time.Time
	refs       int
	gcTimer    *time.Timer
}

func (b *bucket) reset() {
	b.generation++
	b.fetched = false
	b.items = nil
	b.seen = nil
	b.nextCursor = ""
	b.hasMore = false
	b.total = nil
	b.lastFetch = time.Time{}
}

// Manager orchestrates page fetches and owns all cache buckets. Create it
// with NewManager, share it by reference, and Dispose it on shutdown.
type Manager struct {
	mu       sync.Mutex
	fetchers map[domain.SortMode]Fetcher
	policies map[domain.SortMode]Policy
	backoff  Backoff
	buckets  map[Key]*bucket
	disposed bool

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager builds a Manager over the given fetchers and policy table.
func NewManager(cfg Config, fetchers map[domain.SortMode]Fetcher) *Manager {
	return &Manager{
		fetchers: fetchers,
		policies: cfg.Policies,
		backoff:  cfg.Backoff,
		buckets:  make(map[Key]*bucket),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire registers a consumer of key. On the transition from zero to one
// consumer (a mount) a bucket older than its mode's StaleAfter is reset so
// the next page request refetches from the top; an in-progress session
// (refs already > 0) is never reset. Any pending GC for the bucket is
// cancelled.
func (m *Manager) Acquire(key Key) error {
	if !key.Mode.Valid() {
		return ErrUnknownMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.buckets[key]
	if b == nil {
		b = &bucket{generation: 1}
		m.buckets[key] = b
	}
	if b.gcTimer != nil {
		b.gcTimer.Stop()
		b.gcTimer = nil
	}
	if b.refs == 0 && b.fetched {
		p := m.policies[key.Mode]
		if m.now().Sub(b.lastFetch) >= p.StaleAfter {
			b.reset()
		}
	}
	b.refs++
	return nil
}

// Release detaches a consumer. When the last one detaches, the bucket is
// dropped after the mode's GCDelay (immediately when the delay is zero).
func (m *Manager) Release(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.buckets[key]
	if b == nil || b.refs == 0 {
		return
	}
	b.refs--
	if b.refs > 0 {
		return
	}

	delay := m.policies[key.Mode].GCDelay
	if delay <= 0 {
		delete(m.buckets, key)
		cacheEvictions.WithLabelValues(string(key.Mode)).Inc()
		return
	}
	gen := b.generation
	b.gcTimer = time.AfterFunc(delay, func() { m.evict(key, gen) })
}

func (m *Manager) evict(key Key, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.buckets[key]
	if b == nil || b.refs > 0 || b.generation != gen {
		return
	}
	delete(m.buckets, key)
	cacheEvictions.WithLabelValues(string(key.Mode)).Inc()
}

// Fresh reports whether the bucket for key holds fetched data a consumer
// may serve without a new fetch.
func (m *Manager) Fresh(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.buckets[key]
	return b != nil && b.fetched
}

// Items returns a copy of the flattened accumulated sequence for key.
func (m *Manager) Items(key Key) []domain.Meme {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.buckets[key]
	if b == nil {
		return nil
	}
	out := make([]domain.Meme, len(b.items))
	copy(out, b.items)
	return out
}

// State returns the bucket's continuation state: the exact cursor a caller
// must echo to advance, whether more pages exist, and the advisory total.
func (m *Manager) State(key Key) (nextCursor string, hasMore bool, total *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.buckets[key]
	if b == nil {
		return "", false, nil
	}
	return b.nextCursor, b.hasMore, b.total
}

// Invalidate resets the bucket for key. In-flight fetches for the old
// session are discarded when they resolve.
func (m *Manager) Invalidate(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.buckets[key]; b != nil {
		b.reset()
	}
}

// Dispose drops every bucket and stops pending GC timers.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, b := range m.buckets {
		if b.gcTimer != nil {
			b.gcTimer.Stop()
		}
		delete(m.buckets, k)
	}
	m.disposed = true
}

// NextPage advances the chain for key and merges the result into the
// bucket's flattened sequence, returning the newly fetched page.
//
// Cursor contract:
//   - On a bucket that has already fetched, cursor must be the exact
//     NextCursor of the last page; anything else is ErrCursorMismatch, and
//     advancing past HasMore == false is ErrNoMorePages.
//   - On a virgin bucket, "" starts the chain and a non-empty cursor
//     resumes one (the fetcher validates whether it is still meaningful,
//     e.g. a random-session cursor after the session is gone).
//
// Failures are retried with exponential backoff (base doubling per attempt
// up to the cap) for at most MaxAttempts attempts before the *FetchError
// surfaces. A page that resolves after the bucket's session changed is
// dropped and reported as ErrStaleContext.
func (m *Manager) NextPage(ctx context.Context, key Key, cursor string, pageSize int) (*domain.Page, error) {
	fetcher := m.fetchers[key.Mode]
	if fetcher == nil {
		return nil, ErrUnknownMode
	}

	m.mu.Lock()
	b := m.buckets[key]
	if b == nil {
		b = &bucket{generation: 1}
		m.buckets[key] = b
	}
	if b.fetched {
		if cursor != b.nextCursor {
			m.mu.Unlock()
			return nil, ErrCursorMismatch
		}
		if !b.hasMore {
			m.mu.Unlock()
			return nil, ErrNoMorePages
		}
	}
	gen := b.generation
	m.mu.Unlock()

	page, err := m.fetchWithBackoff(ctx, key.Mode, fetcher, cursor, pageSize, filtersOf(key))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	b = m.buckets[key]
	if b == nil || b.generation != gen {
		cacheStaleDiscards.WithLabelValues(string(key.Mode)).Inc()
		return nil, ErrStaleContext
	}
	m.merge(key, b, page)
	return page, nil
}

// Refetch discards the bucket's contents and fetches the first page exactly
// once, without the backoff loop. This is the reconnection path: always
// attempted, never short-circuited by freshness.
func (m *Manager) Refetch(ctx context.Context, key Key, pageSize int) (*domain.Page, error) {
	fetcher := m.fetchers[key.Mode]
	if fetcher == nil {
		return nil, ErrUnknownMode
	}

	m.mu.Lock()
	b := m.buckets[key]
	if b == nil {
		b = &bucket{generation: 1}
		m.buckets[key] = b
	}
	b.reset()
	gen := b.generation
	m.mu.Unlock()

	page, err := fetcher.FetchPage(ctx, "", pageSize, filtersOf(key))
	if err != nil {
		cacheFetches.WithLabelValues(string(key.Mode), "error").Inc()
		return nil, err
	}
	cacheFetches.WithLabelValues(string(key.Mode), "ok").Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	b = m.buckets[key]
	if b == nil || b.generation != gen {
		cacheStaleDiscards.WithLabelValues(string(key.Mode)).Inc()
		return nil, ErrStaleContext
	}
	m.merge(key, b, page)
	return page, nil
}

// merge appends the page to the bucket. Duplicate ids across one cursor
// chain are an upstream contract violation: they are logged and counted,
// not repaired, because hiding them would mask the broken fetcher.
func (m *Manager) merge(key Key, b *bucket, page *domain.Page) {
	if b.seen == nil {
		b.seen = make(map[string]struct{}, len(page.Items))
	}
	for _, item := range page.Items {
		if _, dup := b.seen[item.ID]; dup {
			log.Error().
				Str("mode", string(key.Mode)).
				Str("meme_id", item.ID).
				Msg("duplicate id within one cursor chain")
		}
		b.seen[item.ID] = struct{}{}
	}
	b.items = append(b.items, page.Items...)
	b.nextCursor = page.NextCursor
	b.hasMore = page.HasMore
	if page.Total != nil {
		b.total = page.Total
	}
	b.fetched = true
	b.lastFetch = m.now()
}

func (m *Manager) fetchWithBackoff(ctx context.Context, mode domain.SortMode, f Fetcher, cursor string, pageSize int, filters []string) (*domain.Page, error) {
	attempts := m.backoff.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := m.backoff.Base

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		page, err := f.FetchPage(ctx, cursor, pageSize, filters)
		if err == nil {
			cacheFetches.WithLabelValues(string(mode), "ok").Inc()
			return page, nil
		}
		lastErr = err
		// Bad cursors will not heal with time; only transport errors retry.
		if errors.Is(err, ErrBadCursor) {
			break
		}
		if attempt == attempts-1 {
			break
		}
		if serr := m.sleep(ctx, delay); serr != nil {
			cacheFetches.WithLabelValues(string(mode), "canceled").Inc()
			return nil, serr
		}
		delay *= 2
		if m.backoff.Cap > 0 && delay > m.backoff.Cap {
			delay = m.backoff.Cap
		}
	}
	cacheFetches.WithLabelValues(string(mode), "error").Inc()
	return nil, lastErr
}

// filtersOf expands the key's filter dimension for the fetcher call.
func filtersOf(key Key) []string {
	if key.Filter == "" {
		return nil
	}
	return []string{key.Filter}
}
