package votes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingSource records refetches and serves a fixed table of vote sets.
type countingSource struct {
	mu    sync.Mutex
	calls int
	votes map[string][]string
	err   error
}

func (s *countingSource) ListVotedMemeIDs(ctx context.Context, voter string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.votes[voter], nil
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestSync(t *testing.T, src Source) (*Synchronizer, *time.Time) {
	t.Helper()
	s := NewSynchronizer(src, nil, time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSynchronizer_SetUser_FetchesAndAnswers(t *testing.T) {
	src := &countingSource{votes: map[string][]string{"alice": {"m-1", "m-3"}}}
	s, _ := newTestSync(t, src)

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if !s.HasVoted("m-1") || !s.HasVoted("m-3") {
		t.Fatalf("expected snapshot membership for m-1 and m-3")
	}
	if s.HasVoted("m-2") {
		t.Fatalf("m-2 must not be in the snapshot")
	}
	if src.callCount() != 1 {
		t.Fatalf("expected one bulk query, got %d", src.callCount())
	}
}

func TestSynchronizer_SameUserReusesFreshSnapshot(t *testing.T) {
	src := &countingSource{votes: map[string][]string{"alice": {"m-1"}}}
	s, now := newTestSync(t, src)

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	*now = now.Add(59 * time.Minute)
	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("second SetUser: %v", err)
	}
	if src.callCount() != 1 {
		t.Fatalf("fresh snapshot must be reused, got %d queries", src.callCount())
	}

	// Past the max age the same identity refetches.
	*now = now.Add(2 * time.Minute)
	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("aged SetUser: %v", err)
	}
	if src.callCount() != 2 {
		t.Fatalf("aged snapshot must refetch, got %d queries", src.callCount())
	}
}

func TestSynchronizer_IdentityChangeClearsBeforeFetch(t *testing.T) {
	src := &countingSource{votes: map[string][]string{
		"alice": {"m-1"},
		"bob":   {"m-2"},
	}}
	s, _ := newTestSync(t, src)

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser alice: %v", err)
	}
	if err := s.SetUser(context.Background(), "bob"); err != nil {
		t.Fatalf("SetUser bob: %v", err)
	}
	if s.HasVoted("m-1") {
		t.Fatalf("alice's vote visible under bob's identity")
	}
	if !s.HasVoted("m-2") {
		t.Fatalf("expected bob's snapshot installed")
	}
	if s.User() != "bob" {
		t.Fatalf("unexpected active user %q", s.User())
	}
}

func TestSynchronizer_FailedRefetchFailsClosed(t *testing.T) {
	src := &countingSource{votes: map[string][]string{"alice": {"m-1"}}}
	s, _ := newTestSync(t, src)

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser alice: %v", err)
	}

	// Switching to bob fails; alice's set must already be gone.
	src.mu.Lock()
	src.err = errors.New("db down")
	src.mu.Unlock()
	if err := s.SetUser(context.Background(), "bob"); err == nil {
		t.Fatalf("expected refetch error")
	}
	if s.HasVoted("m-1") {
		t.Fatalf("stale snapshot survived a failed identity change")
	}
	if s.User() != "bob" {
		t.Fatalf("identity must switch even when the fetch fails, got %q", s.User())
	}
}

func TestSynchronizer_LogoutClearsWithoutFetch(t *testing.T) {
	src := &countingSource{votes: map[string][]string{"alice": {"m-1"}}}
	s, _ := newTestSync(t, src)

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if err := s.SetUser(context.Background(), ""); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.HasVoted("m-1") {
		t.Fatalf("snapshot survived logout")
	}
	if src.callCount() != 1 {
		t.Fatalf("logout must not query, got %d", src.callCount())
	}
}

func TestSynchronizer_WarmStartFromStore(t *testing.T) {
	src := &countingSource{votes: map[string][]string{"alice": {"m-9"}}}
	store := NewMemoryStore()
	s := NewSynchronizer(src, store, time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	// A snapshot persisted by a previous process, still fresh.
	if err := store.Set(storeKey("alice"), &Snapshot{
		User:        "alice",
		MemeIDs:     []string{"m-1"},
		RefreshedAt: now.Add(-10 * time.Minute),
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if !s.HasVoted("m-1") {
		t.Fatalf("expected warm start from the stored snapshot")
	}
	if src.callCount() != 0 {
		t.Fatalf("warm start must not query the source, got %d", src.callCount())
	}
}

func TestSynchronizer_StaleStoredSnapshotIsDiscarded(t *testing.T) {
	src := &countingSource{votes: map[string][]string{"alice": {"m-9"}}}
	store := NewMemoryStore()
	s := NewSynchronizer(src, store, time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := store.Set(storeKey("alice"), &Snapshot{
		User:        "alice",
		MemeIDs:     []string{"m-1"},
		RefreshedAt: now.Add(-2 * time.Hour),
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if s.HasVoted("m-1") || !s.HasVoted("m-9") {
		t.Fatalf("expected refetch to replace the stale stored snapshot")
	}
	if src.callCount() != 1 {
		t.Fatalf("expected one refetch, got %d", src.callCount())
	}
	if _, ok, _ := store.Get(storeKey("alice")); !ok {
		t.Fatalf("refetched snapshot must be mirrored back into the store")
	}
}

func TestSynchronizer_Invalidate(t *testing.T) {
	src := &countingSource{votes: map[string][]string{"alice": {"m-1"}}}
	store := NewMemoryStore()
	s := NewSynchronizer(src, store, time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	s.Invalidate()
	if s.HasVoted("m-1") {
		t.Fatalf("snapshot survived Invalidate")
	}
	if _, ok, _ := store.Get(storeKey("alice")); ok {
		t.Fatalf("stored snapshot survived Invalidate")
	}

	// Next SetUser rebuilds.
	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !s.HasVoted("m-1") {
		t.Fatalf("expected snapshot rebuilt after Invalidate")
	}
}

func TestSynchronizer_RefreshForcesRequery(t *testing.T) {
	src := &countingSource{votes: map[string][]string{"alice": {"m-1"}}}
	s, _ := newTestSync(t, src)

	if err := s.SetUser(context.Background(), "alice"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	src.mu.Lock()
	src.votes["alice"] = []string{"m-1", "m-2"}
	src.mu.Unlock()

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !s.HasVoted("m-2") {
		t.Fatalf("expected refreshed snapshot to include the new vote")
	}
	if src.callCount() != 2 {
		t.Fatalf("expected forced requery, got %d", src.callCount())
	}
}

func TestSynchronizer_NoSource(t *testing.T) {
	s := NewSynchronizer(nil, nil, 0)
	if err := s.SetUser(context.Background(), "alice"); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource, got %v", err)
	}
}
