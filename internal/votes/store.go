// Package votes implements the vote-cache synchronizer: a bulk per-user
// snapshot of "which memes has this user voted on", kept locally so that
// rendering a feed never issues one vote lookup per item.
//
// This file defines the snapshot storage port and its two implementations.
// The synchronizer's logic is storage-agnostic: tests run on the in-memory
// store, production persists snapshots in a bbolt file so a restart does
// not force an immediate refetch for a still-fresh user.
package votes

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Snapshot is the persisted form of one user's vote set: a full replacement
// computed in one bulk query, never an incremental merge.
type Snapshot struct {
	User        string    `json:"user"`
	MemeIDs     []string  `json:"meme_ids"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Store persists per-user vote snapshots under opaque keys.
type Store interface {
	// Get returns the snapshot stored under key, or ok == false when absent.
	Get(key string) (*Snapshot, bool, error)
	// Set stores snap under key, replacing any previous value.
	Set(key string, snap *Snapshot) error
	// Delete removes key; deleting an absent key is not an error.
	Delete(key string) error
}

// MemoryStore is the test and fallback implementation of Store.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Snapshot
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Snapshot)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (*Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := snap
	return &out, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(key string, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = *snap
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

var snapshotsBucket = []byte("vote_snapshots")

// BoltStore is the durable Store implementation backed by a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the snapshot database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening vote store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating snapshot bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying file.
func (s *BoltStore) Close() error { return s.db.Close() }

// Get implements Store.
func (s *BoltStore) Get(key string) (*Snapshot, bool, error) {
	var snap Snapshot
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(snapshotsBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &snap)
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &snap, true, nil
}

// Set implements Store.
func (s *BoltStore) Set(key string, snap *Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(snapshotsBucket).Put([]byte(key), data)
	})
}

// Delete implements Store.
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Delete([]byte(key))
	})
}
