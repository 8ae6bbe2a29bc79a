// SPDX-License-Identifier: Apache-2.0

// Package bridge keeps a live session to an XKOP field controller and
// republishes its values through an index-addressed store, a thin value
// bridge, and an HTTP boundary for the management pass-through.
package bridge

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

// Entry is one observed index with its last-known value.
type Entry struct {
	Index       uint8     `json:"index"`
	Value       uint16    `json:"value"`
	LastUpdated time.Time `json:"last_updated"`
}

// Store maps an 8-bit index to its last-known 16-bit value. It is the
// single piece of state shared between the controller session (writer)
// and external readers. Entries are created lazily and never removed;
// absence means the index was never observed.
type Store struct {
	mu      sync.Mutex
	entries map[uint8]Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[uint8]Entry)}
}

// Get returns the last-known value and update time for an index. ok is
// false when the index was never observed; an explicit zero value and
// "never observed" are distinct outcomes.
func (s *Store) Get(index uint8) (value uint16, lastUpdated time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[index]
	return e.Value, e.LastUpdated, ok
}

// Set records a value for an index and refreshes its update time.
// Last-writer-wins, no versioning. The padding index 0xFF is rejected.
func (s *Store) Set(index uint8, value uint16) error {
	if index == xkop.IndexUnused {
		return fmt.Errorf("%w: cannot store", xkop.ErrReservedIndex)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[index] = Entry{Index: index, Value: value, LastUpdated: time.Now()}
	return nil
}

// Apply stores every record of a decoded message.
func (s *Store) Apply(msg xkop.Message) {
	for _, r := range msg.Records {
		// Decode already filters padding slots; a reserved index here
		// would be a codec bug, not wire noise.
		_ = s.Set(r.Index, r.Value)
	}
}

// Snapshot returns a point-in-time copy of all entries, ordered by
// index. The copy is deep; callers never see live internal state.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Len returns the number of observed indices.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
