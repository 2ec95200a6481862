// Package rulestore holds the currently active compiled rule set behind a
// reader/writer lock: many scanning goroutines read a snapshot
// concurrently, and a rule refresh replaces the snapshot under a single
// writer lock without preempting scans already in flight (spec §4.4, §5).
package rulestore

import (
	"sync"

	"github.com/vipyrsec/dragonfly-worker/internal/ruleengine"
	"github.com/vipyrsec/dragonfly-worker/internal/scanengine"
)

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	rules *ruleengine.Rules
	hash  string
}

// New constructs an empty store; call Replace once with the first fetched
// rule set before scanning any job.
func New() *Store {
	return &Store{}
}

// Snapshot is a consistent (rules, hash) pair. A scan holds the Rules
// pointer for its whole duration, so a concurrent Replace never changes
// the rules underneath an in-flight scan — invariant 2 in spec §3.
type Snapshot struct {
	Rules *ruleengine.Rules
	Hash  string
}

// Get returns the current snapshot. Cheap: the RLock is held only long
// enough to copy the pointer and hash.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Rules: s.rules, Hash: s.hash}
}

// Hash returns just the current hash, matching the comparison the worker
// loop makes against job.Hash before deciding to refresh.
func (s *Store) Hash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hash
}

// Current returns the active rule set as a scanengine.Scanner alongside
// its hash, narrowing the concrete *ruleengine.Rules to the interface the
// scan pipeline actually depends on.
func (s *Store) Current() (scanengine.Scanner, string) {
	snap := s.Get()
	return snap.Rules, snap.Hash
}

// Replace atomically swaps in a newly compiled rule set and its hash.
//
// The previous rule set is deliberately not closed here: a scan that
// already called Get against it may still be mid-ScanMem, and destroying
// the underlying YARA handle out from under it would be unsafe. The old
// value is simply dropped; once every goroutine holding a Snapshot from it
// finishes, it becomes unreachable and the Go runtime finalizer go-yara
// registers on *yara.Rules reclaims the native handle.
func (s *Store) Replace(rules *ruleengine.Rules, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
	s.hash = hash
}

// Close releases the current rule set. Only safe to call once no scan can
// possibly be in flight, i.e. after the worker pool has fully drained
// (process shutdown).
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules != nil {
		s.rules.Close()
		s.rules = nil
	}
}
