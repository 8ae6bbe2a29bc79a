// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

// collectFrames reads complete frames off the controller side in the
// background and delivers them one per channel receive.
func collectFrames(conn net.Conn, n int) <-chan []byte {
	out := make(chan []byte, n)
	go func() {
		for i := 0; i < n; i++ {
			buf := make([]byte, xkop.FrameSize)
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			out <- buf
		}
	}()
	return out
}

func recvFrame(t *testing.T, frames <-chan []byte) []byte {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived at controller side")
		return nil
	}
}

func decodeRecords(t *testing.T, frame []byte) []xkop.Record {
	t.Helper()
	msg, err := xkop.NewCodec(xkop.EnforceChecksum).Decode(frame)
	require.NoError(t, err)
	return msg.Records
}

func TestBridge_ReadDistinguishesUnobserved(t *testing.T) {
	h := newHarness(t, nil)
	vb := NewValueBridge(h.store, h.session, zerolog.Nop())

	_, ok := vb.Read(12)
	require.False(t, ok)

	require.NoError(t, h.store.Set(12, 0))
	entry, ok := vb.Read(12)
	require.True(t, ok)
	require.Equal(t, uint16(0), entry.Value)
}

func TestBridge_WriteUpdatesStoreAndTransmits(t *testing.T) {
	h := newHarness(t, nil)
	controller := h.controller(t)
	h.waitState(t, StateConnected)
	vb := NewValueBridge(h.store, h.session, zerolog.Nop())

	frames := collectFrames(controller, 1)

	require.NoError(t, vb.Write(8, 808))
	require.Equal(t, []xkop.Record{{Index: 8, Value: 808}}, decodeRecords(t, recvFrame(t, frames)))

	value, _, ok := h.store.Get(8)
	require.True(t, ok)
	require.Equal(t, uint16(808), value)
}

func TestBridge_WriteBatchSplitsAcrossFrames(t *testing.T) {
	h := newHarness(t, nil)
	controller := h.controller(t)
	h.waitState(t, StateConnected)
	vb := NewValueBridge(h.store, h.session, zerolog.Nop())

	records := []xkop.Record{
		{Index: 1, Value: 10}, {Index: 2, Value: 20}, {Index: 3, Value: 30},
		{Index: 4, Value: 40}, {Index: 5, Value: 50}, {Index: 6, Value: 60},
	}

	frames := collectFrames(controller, 2)

	require.NoError(t, vb.WriteBatch(records))
	require.Equal(t, records[:4], decodeRecords(t, recvFrame(t, frames)))
	require.Equal(t, records[4:], decodeRecords(t, recvFrame(t, frames)))
}

func TestBridge_WriteWhileDownStillStoresLocally(t *testing.T) {
	session, err := NewSession(SessionConfig{
		Dial:   func(ctx context.Context) (io.ReadWriteCloser, error) { return nil, io.EOF },
		Codec:  xkop.NewCodec(xkop.EnforceChecksum),
		Store:  NewStore(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	vb := NewValueBridge(session.cfg.Store, session, zerolog.Nop())

	err = vb.Write(4, 44)
	require.ErrorIs(t, err, ErrNotConnected)

	// Optimistic local update survives the transmit failure.
	entry, ok := vb.Read(4)
	require.True(t, ok)
	require.Equal(t, uint16(44), entry.Value)
}

func TestBridge_WriteBatchRejectsReservedIndex(t *testing.T) {
	h := newHarness(t, nil)
	vb := NewValueBridge(h.store, h.session, zerolog.Nop())

	err := vb.WriteBatch([]xkop.Record{{Index: xkop.IndexUnused, Value: 1}})
	require.ErrorIs(t, err, xkop.ErrReservedIndex)
}

func TestBridge_WriteMaskFansOutBits(t *testing.T) {
	h := newHarness(t, nil)
	controller := h.controller(t)
	h.waitState(t, StateConnected)
	vb := NewValueBridge(h.store, h.session, zerolog.Nop())

	frames := collectFrames(controller, 1)

	// Index n carries bit n-1: mask 0b101 over indices 1..3 sets 1 and 3.
	require.NoError(t, vb.WriteMask([]uint8{1, 2, 3}, 0b101))
	require.Equal(t, []xkop.Record{
		{Index: 1, Value: 1},
		{Index: 2, Value: 0},
		{Index: 3, Value: 1},
	}, decodeRecords(t, recvFrame(t, frames)))
}

func TestBridge_ReadMaskAssemblesBits(t *testing.T) {
	h := newHarness(t, nil)
	vb := NewValueBridge(h.store, h.session, zerolog.Nop())

	require.NoError(t, h.store.Set(1, 1))
	require.NoError(t, h.store.Set(3, 0)) // explicit zero clears the bit
	require.NoError(t, h.store.Set(4, 250))

	// Index 5 never observed; contributes nothing.
	mask := vb.ReadMask([]uint8{1, 3, 4, 5})
	require.Equal(t, uint16(0b1001), mask)
}
