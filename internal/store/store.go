// Package store implements the Correlation Store (spec.md §4.3): a
// mapping from CorrelationKey to the context's arena Handle.
//
// Adapted from the teacher's internal/session.sessionManager: the same
// create-on-miss / lookup / explicit-remove contract keyed by an
// identifier, minus the sharding. The teacher sharded by a hash of the
// session id specifically so many independent goroutines could mutate
// different shards under their own per-shard lock concurrently; here
// spec.md §5 already serializes every store access behind the
// correlator's single engine mutex, so a second layer of internal
// locking would just be dead weight — one plain map suffices, and
// "lookup must not allocate" (spec.md §4.3) is easiest to guarantee
// without shard bookkeeping in the way.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package store

import (
	"github.com/momentics/logcorrelate/internal/arena"
	"github.com/momentics/logcorrelate/internal/keying"
)

// Store maps CorrelationKey to a context Handle. Not internally locked;
// the correlator engine's mutex serializes every call.
type Store struct {
	byKey map[keying.Key]arena.Handle
}

// New creates an empty store.
func New() *Store {
	return &Store{byKey: make(map[keying.Key]arena.Handle)}
}

// Lookup returns the handle for key, if a context is currently live for
// it. Never allocates.
func (s *Store) Lookup(key keying.Key) (arena.Handle, bool) {
	h, ok := s.byKey[key]
	return h, ok
}

// Insert registers handle under key. The caller is responsible for the
// invariant that a context is reachable from the store iff its timer
// handle is non-null (spec.md §3); Store itself only tracks the mapping.
func (s *Store) Insert(key keying.Key, h arena.Handle) {
	s.byKey[key] = h
}

// Remove drops key from the store. It does not release the handle's
// arena reference: that is the caller's responsibility, matching
// spec.md's dual-ownership model (store and timer each release their own
// reference independently).
func (s *Store) Remove(key keying.Key) {
	delete(s.byKey, key)
}

// Len returns the number of live contexts, for the metrics registry.
func (s *Store) Len() int { return len(s.byKey) }

// Range calls fn for every (key, handle) pair currently in the store.
// Used by persistence Save and by deinit to iterate all live contexts.
func (s *Store) Range(fn func(keying.Key, arena.Handle)) {
	for k, h := range s.byKey {
		fn(k, h)
	}
}
