// SPDX-License-Identifier: Apache-2.0

package xkop

import (
	"bytes"
)

// StreamDecoder isolates XKOP frames from a raw byte stream.
//
// The wire carries fixed 17-byte frames with no framing bytes, so the
// decoder accumulates input until a full frame is buffered and then
// attempts a decode at the header signature. After any failure it
// resynchronizes by scanning forward for the next 0xCA 0x35 pair instead
// of discarding a blind 17-byte window; a single inserted or dropped byte
// therefore costs at most one frame, never the whole stream.
type StreamDecoder struct {
	codec *Codec
	stats *Statistics
	buf   []byte

	// ErrorFunc, when set, is called for every dropped candidate frame.
	// Decode failures never stop the stream.
	ErrorFunc func(error)
}

// headerSig is the two-byte frame signature scanned for during resync.
var headerSig = []byte{Header1, Header2}

// NewStreamDecoder creates a stream decoder using the given codec.
func NewStreamDecoder(codec *Codec) *StreamDecoder {
	return &StreamDecoder{
		codec: codec,
		stats: NewStatistics(),
		buf:   make([]byte, 0, 4*FrameSize),
	}
}

// Stats returns the decoder's statistics tracker.
func (d *StreamDecoder) Stats() *Statistics {
	return d.stats
}

// Reset discards all buffered bytes.
func (d *StreamDecoder) Reset() {
	d.buf = d.buf[:0]
}

// Buffered returns the number of bytes held awaiting a full frame.
func (d *StreamDecoder) Buffered() int {
	return len(d.buf)
}

// Feed appends raw bytes and returns every complete message that can be
// decoded from the accumulated stream. Malformed candidates are counted,
// reported through ErrorFunc, and skipped.
func (d *StreamDecoder) Feed(p []byte) []Message {
	d.buf = append(d.buf, p...)

	var msgs []Message
	for {
		if !d.align() {
			break
		}
		if len(d.buf) < FrameSize {
			break
		}

		msg, err := d.codec.Decode(d.buf[:FrameSize])
		if err != nil {
			// The signature at offset 0 did not begin a valid frame.
			// Drop one byte so a genuine frame starting inside this
			// window is still found on the next pass.
			d.stats.recordDecodeError(err)
			if d.ErrorFunc != nil {
				d.ErrorFunc(err)
			}
			d.discard(1)
			continue
		}

		d.stats.recordMessage(msg)
		msgs = append(msgs, msg)
		d.consume(FrameSize)
	}
	return msgs
}

// align discards leading bytes up to the next header signature. Returns
// false when no signature is buffered yet.
func (d *StreamDecoder) align() bool {
	if len(d.buf) >= 2 && d.buf[0] == Header1 && d.buf[1] == Header2 {
		return true
	}
	i := bytes.Index(d.buf, headerSig)
	if i >= 0 {
		d.discard(i)
		return true
	}
	// No signature. Keep a trailing 0xCA in case its partner byte is
	// still in flight; everything before it is garbage.
	keep := 0
	if n := len(d.buf); n > 0 && d.buf[n-1] == Header1 {
		keep = 1
	}
	d.discard(len(d.buf) - keep)
	return false
}

// discard removes n garbage bytes and counts them; consume removes the
// bytes of a successfully decoded frame without counting.
func (d *StreamDecoder) discard(n int) {
	if n <= 0 {
		return
	}
	d.stats.recordDroppedBytes(n)
	d.consume(n)
}

func (d *StreamDecoder) consume(n int) {
	d.buf = d.buf[:copy(d.buf, d.buf[n:])]
}
