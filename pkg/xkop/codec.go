// SPDX-License-Identifier: Apache-2.0

package xkop

import (
	"encoding/binary"
	"fmt"
	"time"
)

// ChecksumPolicy selects whether Decode enforces the frame checksum.
// Bypass exists for bench traffic from simulators that cannot produce
// the header-seeded checksum; production sessions always enforce.
type ChecksumPolicy int

const (
	EnforceChecksum ChecksumPolicy = iota
	BypassChecksum
)

// Codec encodes and decodes 17-byte XKOP frames. The checksum policy is
// fixed at construction; there is no runtime toggle.
type Codec struct {
	policy ChecksumPolicy
}

// NewCodec creates a codec with the given checksum policy.
func NewCodec(policy ChecksumPolicy) *Codec {
	return &Codec{policy: policy}
}

// Encode builds a complete wire frame from a type tag and up to 4
// records. Unused slots are padded with index 0xFF and a zero value.
// Returns ErrTooManyRecords if more than 4 records are supplied and
// ErrReservedIndex if a record uses the padding index.
func (c *Codec) Encode(t MessageType, records []Record) ([]byte, error) {
	if len(records) > MaxRecords {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyRecords, len(records), MaxRecords)
	}

	frame := make([]byte, FrameSize)
	frame[0] = Header1
	frame[1] = Header2
	frame[2] = byte(t)

	for i := 0; i < MaxRecords; i++ {
		off := payloadOffset + i*RecordSize
		if i < len(records) {
			r := records[i]
			if r.Index == IndexUnused {
				return nil, fmt.Errorf("%w: record %d", ErrReservedIndex, i)
			}
			frame[off] = r.Index
			binary.BigEndian.PutUint16(frame[off+1:], r.Value)
		} else {
			frame[off] = IndexUnused
		}
	}

	c1, c0 := Checksum(frame[:DataSize])
	frame[DataSize] = c1
	frame[DataSize+1] = c0
	return frame, nil
}

// Decode validates a single candidate frame and returns its logical
// message. The caller is responsible for isolating exactly one frame's
// worth of bytes (see StreamDecoder).
//
// Padding slots (index 0xFF) are filtered from the returned record list.
// STATUS frames decode to an empty record list.
func (c *Codec) Decode(buf []byte) (Message, error) {
	if len(buf) != FrameSize {
		return Message{}, fmt.Errorf("%w: %d bytes (want %d)", ErrBadLength, len(buf), FrameSize)
	}
	// Header is checked before the checksum: the checksum is seeded from
	// the header bytes, so verifying a frame with the wrong signature is
	// meaningless.
	if buf[0] != Header1 || buf[1] != Header2 {
		return Message{}, fmt.Errorf("%w: %02X %02X", ErrBadHeader, buf[0], buf[1])
	}
	if c.policy == EnforceChecksum && !Verify(buf) {
		c1, c0 := Checksum(buf[:DataSize])
		return Message{}, fmt.Errorf("%w: calc %02X %02X, recv %02X %02X",
			ErrChecksumMismatch, c1, c0, buf[DataSize], buf[DataSize+1])
	}

	t := MessageType(buf[2])
	switch t {
	case TypeData, TypeStatus:
	default:
		return Message{}, fmt.Errorf("%w: 0x%02X", ErrUnknownType, buf[2])
	}

	msg := Message{Type: t, Timestamp: time.Now()}
	if t == TypeStatus {
		return msg, nil
	}
	for i := 0; i < MaxRecords; i++ {
		off := payloadOffset + i*RecordSize
		if buf[off] == IndexUnused {
			continue
		}
		msg.Records = append(msg.Records, Record{
			Index: buf[off],
			Value: binary.BigEndian.Uint16(buf[off+1:]),
		})
	}
	return msg, nil
}
