// SPDX-License-Identifier: Apache-2.0

package xkop

import (
	"errors"
	"testing"
)

func TestEncode_WireLayout(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	frame, err := codec.Encode(TypeData, []Record{{Index: 3, Value: 1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := fromHex(t, "CA 35 00 03 00 01 FF 00 00 FF 00 00 FF 00 00 D6 90")
	if len(frame) != FrameSize {
		t.Fatalf("frame length %d, want %d", len(frame), FrameSize)
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Fatalf("frame mismatch at byte %d:\n got  %s\n want %s", i, FormatFrame(frame), FormatFrame(want))
		}
	}
}

func TestEncode_PadsUnusedSlots(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	frame, err := codec.Encode(TypeData, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < MaxRecords; i++ {
		off := payloadOffset + i*RecordSize
		if frame[off] != IndexUnused || frame[off+1] != 0 || frame[off+2] != 0 {
			t.Errorf("slot %d not padded: % X", i, frame[off:off+RecordSize])
		}
	}
}

func TestEncode_TooManyRecords(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	recs := []Record{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}}
	if _, err := codec.Encode(TypeData, recs); !errors.Is(err, ErrTooManyRecords) {
		t.Errorf("expected ErrTooManyRecords, got %v", err)
	}
}

func TestEncode_ReservedIndex(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	if _, err := codec.Encode(TypeData, []Record{{Index: IndexUnused, Value: 1}}); !errors.Is(err, ErrReservedIndex) {
		t.Errorf("expected ErrReservedIndex, got %v", err)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	tests := [][]Record{
		nil,
		{{Index: 0, Value: 0}},
		{{Index: 7, Value: 0x1234}},
		{{1, 100}, {2, 200}},
		{{1, 1}, {2, 2}, {3, 3}},
		{{0, 0xFFFF}, {254, 1}, {10, 0}, {99, 512}},
	}

	for _, recs := range tests {
		frame, err := codec.Encode(TypeData, recs)
		if err != nil {
			t.Fatalf("encode %v: %v", recs, err)
		}
		msg, err := codec.Decode(frame)
		if err != nil {
			t.Fatalf("decode %v: %v", recs, err)
		}
		if msg.Type != TypeData {
			t.Errorf("type %v, want DATA", msg.Type)
		}
		if len(msg.Records) != len(recs) {
			t.Fatalf("decoded %d records, want %d", len(msg.Records), len(recs))
		}
		for i, r := range recs {
			if msg.Records[i] != r {
				t.Errorf("record %d: got %+v, want %+v", i, msg.Records[i], r)
			}
		}
	}
}

func TestDecode_StatusHasNoRecords(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	frame := append(fromHex(t, "CA 35 02 00 00 00 00 00 00 00 00 00 00 00 00"), 0x9B, 0xA0)
	msg, err := codec.Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != TypeStatus {
		t.Errorf("type %v, want STATUS", msg.Type)
	}
	if len(msg.Records) != 0 {
		t.Errorf("status frame decoded %d records", len(msg.Records))
	}
}

func TestDecode_BadLength(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	for _, n := range []int{0, 16, 18} {
		if _, err := codec.Decode(make([]byte, n)); !errors.Is(err, ErrBadLength) {
			t.Errorf("length %d: expected ErrBadLength, got %v", n, err)
		}
	}
}

func TestDecode_BadHeader(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	frame, _ := codec.Encode(TypeData, nil)
	frame[0] = 0x00
	if _, err := codec.Decode(frame); !errors.Is(err, ErrBadHeader) {
		t.Errorf("expected ErrBadHeader, got %v", err)
	}
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	frame, _ := codec.Encode(TypeData, []Record{{Index: 1, Value: 1}})
	frame[5] ^= 0x01
	if _, err := codec.Decode(frame); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	codec := NewCodec(EnforceChecksum)
	frame, _ := codec.Encode(MessageType(0x07), nil)
	if _, err := codec.Decode(frame); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecode_BypassPolicy(t *testing.T) {
	codec := NewCodec(BypassChecksum)
	frame, _ := NewCodec(EnforceChecksum).Encode(TypeData, []Record{{Index: 1, Value: 1}})
	frame[5] ^= 0x01
	msg, err := codec.Decode(frame)
	if err != nil {
		t.Fatalf("bypass codec rejected corrupted frame: %v", err)
	}
	if len(msg.Records) != 1 {
		t.Errorf("decoded %d records, want 1", len(msg.Records))
	}

	// Header and length checks still apply under bypass.
	frame[0] = 0x00
	if _, err := codec.Decode(frame); !errors.Is(err, ErrBadHeader) {
		t.Errorf("expected ErrBadHeader under bypass, got %v", err)
	}
}
