// Package votes – synchronizer.
//
// The Synchronizer tracks exactly one active user identity at a time. On
// every identity change the previous snapshot is cleared synchronously,
// before anything is fetched, so a consumer can never observe one user's
// vote flags attributed to another — not even transiently. Lookups are
// local set membership against the current snapshot and fail closed: no
// snapshot means "not voted".
package votes

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultMaxAge is how long a snapshot is reused without a refetch.
const DefaultMaxAge = time.Hour

// Source is the bulk vote query: every meme id the given voter has voted
// on, in one round trip.
type Source interface {
	ListVotedMemeIDs(ctx context.Context, voter string) ([]string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, voter string) ([]string, error)

// ListVotedMemeIDs implements Source.
func (f SourceFunc) ListVotedMemeIDs(ctx context.Context, voter string) ([]string, error) {
	return f(ctx, voter)
}

// ErrNoSource is returned when a refresh is needed but no Source was set.
var ErrNoSource = errors.New("vote source not configured")

// Synchronizer maintains the active user's vote snapshot.
//
// Freshness: a snapshot is reused when it belongs to the same identity and
// is younger than MaxAge; otherwise SetUser triggers a full refetch whose
// result replaces (never merges with) the previous set. Snapshots are
// mirrored into the Store so a fresh process can warm-start.
type Synchronizer struct {
	source Source
	store  Store
	maxAge time.Duration

	mu          sync.Mutex
	user        string
	ids         map[string]struct{}
	refreshedAt time.Time

	// test seam
	now func() time.Time
}

// NewSynchronizer builds a Synchronizer over source and store. A nil store
// falls back to a process-local MemoryStore; maxAge <= 0 uses DefaultMaxAge.
func NewSynchronizer(source Source, store Store, maxAge time.Duration) *Synchronizer {
	if store == nil {
		store = NewMemoryStore()
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Synchronizer{source: source, store: store, maxAge: maxAge, now: time.Now}
}

func storeKey(user string) string { return "votes:" + user }

// SetUser switches the active identity and ensures a trustworthy snapshot.
//
// Sequence on an identity change (including to ""): the in-memory snapshot
// is dropped first, then — for a non-empty identity — a stored snapshot is
// adopted only when it was computed for that same identity and is still
// fresh; anything else triggers a full refetch. Setting the same identity
// again refetches only once the snapshot has aged past MaxAge.
func (s *Synchronizer) SetUser(ctx context.Context, user string) error {
	s.mu.Lock()
	if user != s.user {
		// Clear before any new data is requested.
		s.user = user
		s.ids = nil
		s.refreshedAt = time.Time{}
	}
	if user == "" {
		s.mu.Unlock()
		return nil
	}
	if s.ids != nil && s.now().Sub(s.refreshedAt) < s.maxAge {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// Warm start from the persisted snapshot when it is still trustworthy.
	if snap, ok, err := s.store.Get(storeKey(user)); err == nil && ok {
		if snap.User == user && s.now().Sub(snap.RefreshedAt) < s.maxAge {
			s.adopt(user, snap.MemeIDs, snap.RefreshedAt)
			return nil
		}
		// A stale or foreign snapshot must go before anything new is trusted.
		_ = s.store.Delete(storeKey(user))
	}

	return s.refresh(ctx, user)
}

// Refresh forces a full refetch for the active user, ignoring freshness.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if user == "" {
		return nil
	}
	return s.refresh(ctx, user)
}

func (s *Synchronizer) refresh(ctx context.Context, user string) error {
	if s.source == nil {
		return ErrNoSource
	}
	ids, err := s.source.ListVotedMemeIDs(ctx, user)
	if err != nil {
		return err
	}
	refreshedAt := s.now()
	if !s.adopt(user, ids, refreshedAt) {
		// Identity changed while the query was in flight; discard.
		return nil
	}
	_ = s.store.Set(storeKey(user), &Snapshot{User: user, MemeIDs: ids, RefreshedAt: refreshedAt})
	return nil
}

// adopt installs the snapshot if it still belongs to the active identity.
func (s *Synchronizer) adopt(user string, ids []string, refreshedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != user {
		return false
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.ids = set
	s.refreshedAt = refreshedAt
	return true
}

// HasVoted reports whether the active user has voted on memeID. It is a
// synchronous local read; with no snapshot installed it returns false.
func (s *Synchronizer) HasVoted(memeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		return false
	}
	_, ok := s.ids[memeID]
	return ok
}

// User returns the active identity ("" when logged out).
func (s *Synchronizer) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Invalidate drops the snapshot for the active user, in memory and in the
// store. The next SetUser or Refresh rebuilds it.
func (s *Synchronizer) Invalidate() {
	s.mu.Lock()
	user := s.user
	s.ids = nil
	s.refreshedAt = time.Time{}
	s.mu.Unlock()
	if user != "" {
		_ = s.store.Delete(storeKey(user))
	}
}
