// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	ts := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	frames := [][]byte{
		{0xCA, 0x35, 0x00, 0x01, 0x02, 0x03},
		{0xCA, 0x35, 0x02},
	}
	for i, f := range frames {
		if err := w.WriteAt(ts.Add(time.Duration(i)*time.Second), f); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	r := NewReader(&buf)
	for i, want := range frames {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !bytes.Equal(rec.Frame, want) {
			t.Errorf("record %d frame = % X, want % X", i, rec.Frame, want)
		}
		if !rec.Timestamp.Equal(ts.Add(time.Duration(i) * time.Second)) {
			t.Errorf("record %d timestamp = %v", i, rec.Timestamp)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("want io.EOF at end of stream, got %v", err)
	}
}

func TestWriteCopiesFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	frame := []byte{0x01, 0x02, 0x03}
	if err := w.Write(frame); err != nil {
		t.Fatal(err)
	}
	frame[0] = 0xFF // caller reuses its buffer

	rec, err := NewReader(&buf).Next()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Frame[0] != 0x01 {
		t.Errorf("record shares caller buffer: frame[0] = %02X", rec.Frame[0])
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.capture")

	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]byte{0xCA, 0x35, 0x00}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	rec, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rec.Frame, []byte{0xCA, 0x35, 0x00}) {
		t.Errorf("frame = % X", rec.Frame)
	}
}
