// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Set(10, 1234))

	value, updated, ok := s.Get(10)
	require.True(t, ok)
	require.Equal(t, uint16(1234), value)
	require.WithinDuration(t, time.Now(), updated, time.Second)
}

func TestStore_NeverObservedDistinctFromZero(t *testing.T) {
	s := NewStore()

	_, _, ok := s.Get(5)
	require.False(t, ok, "unobserved index must report ok=false")

	require.NoError(t, s.Set(5, 0))
	value, _, ok := s.Get(5)
	require.True(t, ok, "explicit zero must report ok=true")
	require.Equal(t, uint16(0), value)
}

func TestStore_OverwriteRefreshesTimestamp(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Set(7, 1))
	_, first, _ := s.Get(7)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Set(7, 2))

	value, second, _ := s.Get(7)
	require.Equal(t, uint16(2), value)
	require.True(t, second.After(first), "update time must move forward on overwrite")
}

func TestStore_RejectsReservedIndex(t *testing.T) {
	s := NewStore()
	require.ErrorIs(t, s.Set(xkop.IndexUnused, 1), xkop.ErrReservedIndex)
	require.Equal(t, 0, s.Len())
}

func TestStore_Apply(t *testing.T) {
	s := NewStore()
	s.Apply(xkop.Message{
		Type: xkop.TypeData,
		Records: []xkop.Record{
			{Index: 1, Value: 100},
			{Index: 2, Value: 200},
		},
	})

	require.Equal(t, 2, s.Len())
	value, _, ok := s.Get(2)
	require.True(t, ok)
	require.Equal(t, uint16(200), value)
}

func TestStore_SnapshotSortedAndIsolated(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Set(30, 3))
	require.NoError(t, s.Set(10, 1))
	require.NoError(t, s.Set(20, 2))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, uint8(10), snap[0].Index)
	require.Equal(t, uint8(20), snap[1].Index)
	require.Equal(t, uint8(30), snap[2].Index)

	// Mutating the snapshot must not leak back into the store.
	snap[0].Value = 9999
	value, _, _ := s.Get(10)
	require.Equal(t, uint16(1), value)
}
