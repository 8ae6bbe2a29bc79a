// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

// ValueBridge translates between the index/value domain and the
// external query interface. It is deliberately thin: reads come
// straight from the store, writes are applied optimistically to the
// store and then transmitted (the protocol has no transactional
// acknowledgment, so the local copy is the best available truth).
type ValueBridge struct {
	store   *Store
	session *Session
	logger  zerolog.Logger
}

// NewValueBridge wires a bridge over a store and its session.
func NewValueBridge(store *Store, session *Session, logger zerolog.Logger) *ValueBridge {
	return &ValueBridge{store: store, session: session, logger: logger}
}

// Read returns the entry for an index. ok is false when the index was
// never observed — callers must treat that differently from an explicit
// zero value.
func (b *ValueBridge) Read(index uint8) (Entry, bool) {
	value, updated, ok := b.store.Get(index)
	if !ok {
		return Entry{}, false
	}
	return Entry{Index: index, Value: value, LastUpdated: updated}, true
}

// Snapshot returns a copy of every observed entry, ordered by index.
func (b *ValueBridge) Snapshot() []Entry {
	return b.store.Snapshot()
}

// Write records a single value locally and transmits it as a DATA
// frame. The store update happens even when the link is down; the
// transmit error is returned so the caller can report it.
func (b *ValueBridge) Write(index uint8, value uint16) error {
	return b.WriteBatch([]xkop.Record{{Index: index, Value: value}})
}

// WriteBatch applies a set of records and transmits them, split into
// frames of at most 4 records each.
func (b *ValueBridge) WriteBatch(records []xkop.Record) error {
	for _, r := range records {
		if err := b.store.Set(r.Index, r.Value); err != nil {
			return fmt.Errorf("record idx=%d: %w", r.Index, err)
		}
	}
	for start := 0; start < len(records); start += xkop.MaxRecords {
		end := start + xkop.MaxRecords
		if end > len(records) {
			end = len(records)
		}
		if err := b.session.SendRequest(xkop.TypeData, records[start:end]); err != nil {
			return err
		}
		b.logger.Debug().Int("records", end-start).Msg("transmitted set")
	}
	return nil
}

// WriteMask fans a bitmask value out across the mapped indices: each
// index carries bit (index-1) of the mask, matching the controller's
// bitmask function convention.
func (b *ValueBridge) WriteMask(indices []uint8, mask uint16) error {
	records := make([]xkop.Record, 0, len(indices))
	for _, idx := range indices {
		bit := uint(0)
		if idx > 0 {
			bit = uint(idx - 1)
		}
		var v uint16
		if mask&(1<<bit) != 0 {
			v = 1
		}
		records = append(records, xkop.Record{Index: idx, Value: v})
	}
	return b.WriteBatch(records)
}

// ReadMask assembles a bitmask from the mapped indices: bit (index-1)
// is set when the index holds a non-zero value. Never-observed indices
// contribute a zero bit.
func (b *ValueBridge) ReadMask(indices []uint8) uint16 {
	var mask uint16
	for _, idx := range indices {
		value, _, ok := b.store.Get(idx)
		if !ok || value == 0 {
			continue
		}
		bit := uint(0)
		if idx > 0 {
			bit = uint(idx - 1)
		}
		mask |= 1 << bit
	}
	return mask
}
