// SPDX-License-Identifier: Apache-2.0

package xkop

import (
	"errors"
	"fmt"
	"time"
)

// Decode and encode failure modes. Decode callers are expected to treat
// all of these as drop-and-continue conditions, never as connection
// errors; errors.Is works against the sentinels.
var (
	ErrBadLength        = errors.New("xkop: bad frame length")
	ErrBadHeader        = errors.New("xkop: bad header signature")
	ErrChecksumMismatch = errors.New("xkop: checksum mismatch")
	ErrUnknownType      = errors.New("xkop: unknown message type")
	ErrTooManyRecords   = errors.New("xkop: too many records")
	ErrReservedIndex    = errors.New("xkop: index 0xFF is reserved")
)

// Record is one index/value pair packed into 3 payload bytes:
// one index byte followed by a big-endian 16-bit value.
type Record struct {
	Index uint8
	Value uint16
}

// Message is a decoded frame: the type tag plus the occupied records,
// in wire order. STATUS messages carry no records.
type Message struct {
	Type      MessageType
	Records   []Record
	Timestamp time.Time
}

func (m Message) String() string {
	return fmt.Sprintf("%s %v", m.Type, m.Records)
}
