// SPDX-License-Identifier: Apache-2.0

package xkop

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks frame counts and error rates for one stream. All
// methods are safe for concurrent use; the read loop writes while the
// monitor and the HTTP surface read.
type Statistics struct {
	mu sync.Mutex
	s  StatisticsSnapshot
}

// StatisticsSnapshot is a point-in-time copy of the counters.
type StatisticsSnapshot struct {
	StartTime time.Time
	LastFrame time.Time

	TotalFrames    uint64
	DataFrames     uint64
	StatusFrames   uint64
	ChecksumErrors uint64
	UnknownTypes   uint64
	BytesDropped   uint64

	FrameRate float64 // frames/sec since start
	ErrorRate float64 // errors/sec since start
}

// NewStatistics creates a statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{s: StatisticsSnapshot{StartTime: time.Now()}}
}

func (st *Statistics) recordMessage(msg Message) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.TotalFrames++
	st.s.LastFrame = msg.Timestamp
	switch msg.Type {
	case TypeStatus:
		st.s.StatusFrames++
	default:
		st.s.DataFrames++
	}
}

func (st *Statistics) recordDecodeError(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		st.s.ChecksumErrors++
	case errors.Is(err, ErrUnknownType):
		st.s.UnknownTypes++
	}
}

func (st *Statistics) recordDroppedBytes(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.BytesDropped += uint64(n)
}

// Snapshot returns a copy of the counters with rates filled in.
func (st *Statistics) Snapshot() StatisticsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.s
	if elapsed := time.Since(s.StartTime).Seconds(); elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.ChecksumErrors+s.UnknownTypes) / elapsed
	}
	return s
}

// Reset zeroes all counters and restarts the clock.
func (st *Statistics) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s = StatisticsSnapshot{StartTime: time.Now()}
}

// String returns a formatted summary of the counters.
func (s StatisticsSnapshot) String() string {
	elapsed := time.Since(s.StartTime)
	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Data Frames:     %8d\n", s.DataFrames)
	result += fmt.Sprintf("Status Frames:   %8d\n", s.StatusFrames)
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", s.ChecksumErrors)
	}
	if s.UnknownTypes > 0 {
		result += fmt.Sprintf("Unknown Types:   %8d\n", s.UnknownTypes)
	}
	if s.BytesDropped > 0 {
		result += fmt.Sprintf("Bytes Dropped:   %8d\n", s.BytesDropped)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	return result
}
