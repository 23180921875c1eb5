/*
NAME
  surface_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package control

import (
	"testing"

	"github.com/ausocean/delayline/engine"
)

const testPeriodTimeUs = 5330.0 // ~5.33ms, a 256-frame period at 48kHz.

func TestSetDelayRejectsOutOfRange(t *testing.T) {
	s := NewSurface(testPeriodTimeUs, 200, 10000)
	before := s.TargetDeltaP()

	if s.SetDelay(100) {
		t.Error("SetDelay(100) = true, want false (below min)")
	}
	if s.SetDelay(20000) {
		t.Error("SetDelay(20000) = true, want false (above max)")
	}
	if got := s.TargetDeltaP(); got != before {
		t.Errorf("target_delta_p changed after rejected SetDelay calls: got %d, want %d", got, before)
	}
}

func TestSetDelayAccepted(t *testing.T) {
	s := NewSurface(testPeriodTimeUs, 200, 10000)
	if !s.SetDelay(2500) {
		t.Fatal("SetDelay(2500) = false, want true")
	}
	got := s.DelaySetting()
	if diff := got - 2500; diff < -10 || diff > 10 {
		t.Errorf("DelaySetting() = %d, want ~2500 (period rounding)", got)
	}
}

func TestBufferPercentClamp(t *testing.T) {
	s := NewSurface(testPeriodTimeUs, 200, 10000)
	s.SetDelay(2500)
	target := s.TargetDeltaP()

	tests := []struct {
		actual int
		want   int
	}{
		{0, 0},
		{target, 100},
		{target * 3, 200},   // Far over target clamps to 200.
		{-target, 0},        // Negative actual clamps to 0.
		{target * 100 / 99, 100}, // Within [99,101] snaps to 100.
	}
	for _, test := range tests {
		s.Update(test.actual, engine.Play)
		if got := s.BufferPercent(); got != test.want {
			t.Errorf("BufferPercent() with actual=%d (target=%d) = %d, want %d",
				test.actual, target, got, test.want)
		}
	}
}

func TestBufferPercentZeroTarget(t *testing.T) {
	s := NewSurface(testPeriodTimeUs, 0, 10000)
	s.Update(100, engine.Play)
	if got := s.BufferPercent(); got != 0 {
		t.Errorf("BufferPercent() with target=0 = %d, want 0", got)
	}
}

func TestUpdateAndState(t *testing.T) {
	s := NewSurface(testPeriodTimeUs, 200, 10000)
	s.Update(42, engine.Purge12_8)
	if got := s.State(); got != engine.Purge12_8 {
		t.Errorf("State() = %v, want PURGE_12_8", got)
	}
	got := s.CurrentDelay()
	periodTimeUs := testPeriodTimeUs
	want := int(42 * periodTimeUs / 1000)
	if got != want {
		t.Errorf("CurrentDelay() = %d, want %d", got, want)
	}
}
