/*
NAME
  ringbuf.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ringbuf implements the engine's period-indexed memory ring: a
// fixed-size byte buffer with a capture index and a playback index, each
// owned and advanced by exactly one writer.
package ringbuf

import "fmt"

// Ring is a fixed-size, period-indexed byte buffer. cap and play are
// advanced only by the engine goroutine; there is no internal locking of
// the buffer bytes themselves, matching the single-writer-per-index
// discipline the engine depends on for safety.
type Ring struct {
	buf         []byte
	periodBytes int
	n           int // Number of periods the ring holds.
	cap         int // Index of the next capture slot to write.
	play        int // Index of the next slot to read for playback.
}

// New allocates a Ring holding n periods of periodBytes bytes each.
func New(n, periodBytes int) (*Ring, error) {
	if n <= 0 || periodBytes <= 0 {
		return nil, fmt.Errorf("ringbuf: invalid dimensions n=%d periodBytes=%d", n, periodBytes)
	}
	return &Ring{
		buf:         make([]byte, n*periodBytes),
		periodBytes: periodBytes,
		n:           n,
	}, nil
}

// N returns the number of periods the ring holds.
func (r *Ring) N() int { return r.n }

// PeriodBytes returns the size in bytes of a single period slot.
func (r *Ring) PeriodBytes() int { return r.periodBytes }

// Cap returns the current capture index.
func (r *Ring) Cap() int { return r.cap }

// Play returns the current playback index.
func (r *Ring) Play() int { return r.play }

// CaptureSlot returns the byte slice backing the current capture index,
// ready to be filled by the caller.
func (r *Ring) CaptureSlot() []byte {
	off := r.cap * r.periodBytes
	return r.buf[off : off+r.periodBytes]
}

// PlaySlot returns the byte slice backing the current playback index.
func (r *Ring) PlaySlot() []byte {
	off := r.play * r.periodBytes
	return r.buf[off : off+r.periodBytes]
}

// AdvanceCap moves the capture index forward by one period, wrapping
// modulo N.
func (r *Ring) AdvanceCap() { r.cap = advance(r.cap, r.n) }

// AdvancePlay moves the playback index forward by one period, wrapping
// modulo N.
func (r *Ring) AdvancePlay() { r.play = advance(r.play, r.n) }

// Empty reports whether the playback index has caught up to the capture
// index, i.e. there is nothing left to draw from the ring.
func (r *Ring) Empty() bool { return r.play == r.cap }

// PeriodsQueued returns the number of periods currently sitting in the
// memory ring between play and cap.
func (r *Ring) PeriodsQueued() int {
	return (r.cap - r.play + r.n) % r.n
}

func advance(idx, n int) int {
	idx++
	if idx >= n {
		idx = 0
	}
	return idx
}
