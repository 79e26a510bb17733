package votes

import (
	"path/filepath"
	"testing"
	"time"
)

func testSnapshot(user string) *Snapshot {
	return &Snapshot{
		User:        user,
		MemeIDs:     []string{"m-1", "m-2"},
		RefreshedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func assertRoundTrip(t *testing.T, s Store) {
	t.Helper()

	if _, ok, err := s.Get("votes:alice"); err != nil || ok {
		t.Fatalf("expected miss on empty store, got (ok=%v, err=%v)", ok, err)
	}

	want := testSnapshot("alice")
	if err := s.Set("votes:alice", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get("votes:alice")
	if err != nil || !ok {
		t.Fatalf("Get after Set: (ok=%v, err=%v)", ok, err)
	}
	if got.User != "alice" || len(got.MemeIDs) != 2 || !got.RefreshedAt.Equal(want.RefreshedAt) {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	// Overwrite replaces, never merges.
	repl := &Snapshot{User: "alice", MemeIDs: []string{"m-9"}, RefreshedAt: want.RefreshedAt}
	if err := s.Set("votes:alice", repl); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = s.Get("votes:alice")
	if len(got.MemeIDs) != 1 || got.MemeIDs[0] != "m-9" {
		t.Fatalf("overwrite did not replace: %+v", got)
	}

	if err := s.Delete("votes:alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("votes:alice"); ok {
		t.Fatalf("expected miss after delete")
	}
	// Deleting an absent key is not an error.
	if err := s.Delete("votes:alice"); err != nil {
		t.Fatalf("double delete: %v", err)
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	assertRoundTrip(t, NewMemoryStore())
}

func TestBoltStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	assertRoundTrip(t, s)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	if err := s.Set("votes:alice", testSnapshot("alice")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })
	got, ok, err := s2.Get("votes:alice")
	if err != nil || !ok || got.User != "alice" {
		t.Fatalf("snapshot lost across reopen: (%+v, ok=%v, err=%v)", got, ok, err)
	}
}
