/*
NAME
  ringbuf_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package ringbuf

import "testing"

func TestNewInvalidDimensions(t *testing.T) {
	tests := []struct {
		n, periodBytes int
	}{
		{0, 64},
		{-1, 64},
		{4, 0},
		{4, -1},
	}
	for _, test := range tests {
		if _, err := New(test.n, test.periodBytes); err == nil {
			t.Errorf("New(%d, %d) = nil error, want an error", test.n, test.periodBytes)
		}
	}
}

func TestInitiallyEmpty(t *testing.T) {
	r, err := New(8, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Cap() != 0 || r.Play() != 0 {
		t.Errorf("Cap()=%d Play()=%d, want 0, 0", r.Cap(), r.Play())
	}
	if !r.Empty() {
		t.Error("Empty() = false for a freshly allocated ring")
	}
	if got := r.PeriodsQueued(); got != 0 {
		t.Errorf("PeriodsQueued() = %d, want 0", got)
	}
}

func TestAdvanceAndQueueInvariant(t *testing.T) {
	const n = 8
	r, err := New(n, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 20; i++ {
		r.AdvanceCap()
		if r.Cap() < 0 || r.Cap() >= n {
			t.Fatalf("Cap() = %d out of [0, %d) after %d advances", r.Cap(), n, i+1)
		}
		queued := r.PeriodsQueued()
		if queued < 0 || queued >= n {
			t.Fatalf("PeriodsQueued() = %d out of [0, %d)", queued, n)
		}
		wantQueued := i + 1
		if wantQueued > n-1 {
			// Capture must not be allowed to lap play in practice; the ring
			// itself does not enforce this (engine/spec responsibility), but
			// the modular queued count still wraps predictably.
			wantQueued = wantQueued % n
		}
		if queued != wantQueued {
			t.Errorf("after %d captures, PeriodsQueued() = %d, want %d", i+1, queued, wantQueued)
		}
	}
}

func TestPlayCatchesUpToCapture(t *testing.T) {
	const n = 4
	r, err := New(n, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.AdvanceCap()
	r.AdvanceCap()
	r.AdvanceCap()
	if got := r.PeriodsQueued(); got != 3 {
		t.Fatalf("PeriodsQueued() = %d, want 3", got)
	}

	r.AdvancePlay()
	r.AdvancePlay()
	r.AdvancePlay()
	if !r.Empty() {
		t.Error("Empty() = false after play caught up to cap")
	}
	if got := r.PeriodsQueued(); got != 0 {
		t.Errorf("PeriodsQueued() = %d, want 0", got)
	}
}

func TestSlotsAreDistinctAndSized(t *testing.T) {
	r, err := New(4, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(r.CaptureSlot()) != 16 {
		t.Errorf("len(CaptureSlot()) = %d, want 16", len(r.CaptureSlot()))
	}
	r.AdvanceCap()
	if len(r.PlaySlot()) != 16 {
		t.Errorf("len(PlaySlot()) = %d, want 16", len(r.PlaySlot()))
	}

	// Writing through the capture slot at the new index must not alias the
	// still-unread play slot at index 0.
	cs := r.CaptureSlot()
	for i := range cs {
		cs[i] = 0xAB
	}
	ps := r.PlaySlot()
	for _, b := range ps {
		if b == 0xAB {
			t.Fatal("CaptureSlot and PlaySlot alias the same bytes at different indices")
		}
	}
}
