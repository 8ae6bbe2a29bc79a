// SPDX-License-Identifier: Apache-2.0

// Package capture persists raw controller frames as a stream of
// CBOR-encoded records, timestamped at arrival. Files written here feed
// offline replay and protocol debugging.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one captured wire frame.
type Record struct {
	Timestamp time.Time `cbor:"ts"`
	Frame     []byte    `cbor:"frame"`
}

// Writer appends frame records to a capture stream.
type Writer struct {
	enc    *cbor.Encoder
	closer io.Closer
}

// NewWriter wraps an output stream. When w is also an io.Closer, Close
// closes it.
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{enc: cbor.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// Create opens (or truncates) a capture file for writing.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	return NewWriter(f), nil
}

// Write appends one frame, stamped now.
func (w *Writer) Write(frame []byte) error {
	return w.WriteAt(time.Now(), frame)
}

// WriteAt appends one frame with an explicit timestamp.
func (w *Writer) WriteAt(ts time.Time, frame []byte) error {
	// The record owns its copy; callers reuse read buffers.
	rec := Record{Timestamp: ts, Frame: append([]byte(nil), frame...)}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write capture record: %w", err)
	}
	return nil
}

// Close closes the underlying stream when it is closable.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader iterates the records of a capture stream.
type Reader struct {
	dec    *cbor.Decoder
	closer io.Closer
}

// NewReader wraps an input stream.
func NewReader(r io.Reader) *Reader {
	cr := &Reader{dec: cbor.NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		cr.closer = c
	}
	return cr
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next record, or io.EOF at end of stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read capture record: %w", err)
	}
	return rec, nil
}

// Close closes the underlying stream when it is closable.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
