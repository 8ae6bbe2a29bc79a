// SPDX-License-Identifier: Apache-2.0

// Package xkop implements the XKOP field-controller protocol.
//
// XKOP is a fixed-length binary protocol spoken by UTMC traffic-signal
// controllers over a TCP or UDP link. Every frame is exactly 17 bytes:
// a two-byte header signature, a type byte, four 3-byte index/value
// records, and a two-byte checksum. This package provides frame
// encoding/decoding, the header-seeded CRC16, a resynchronizing stream
// decoder, and traffic statistics.
package xkop

// Frame geometry
const (
	FrameSize    = 17 // full frame on the wire
	ChecksumSize = 2
	DataSize     = FrameSize - ChecksumSize // bytes covered by the checksum
	RecordSize   = 3
	MaxRecords   = 4

	payloadOffset = 3 // header (2) + type (1)
)

// Header signature bytes. Every well-formed frame starts with these two
// bytes, and they double as the checksum seed.
const (
	Header1 = 0xCA
	Header2 = 0x35
)

// IndexUnused marks an empty record slot. A record carrying this index
// must have a zero value and is skipped on decode.
const IndexUnused = 0xFF

// MessageType is the frame type tag at offset 2.
type MessageType uint8

// Frame types
const (
	TypeData   MessageType = 0x00 // carries up to 4 index/value records
	TypeTime   MessageType = 0x01 // reserved, seen only in legacy captures
	TypeStatus MessageType = 0x02 // controller keep-alive, no records
)

// String returns the conventional name for a message type.
func (t MessageType) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeTime:
		return "TIME"
	case TypeStatus:
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}
