/*
NAME
  rate_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package engine

import "testing"

func TestStateNumerator(t *testing.T) {
	tests := []struct {
		state State
		want  int
	}{
		{Buffer1_8, 1},
		{Buffer2_8, 2},
		{Buffer4_8, 4},
		{Buffer6_8, 6},
		{Buffer7_8, 7},
		{Play, 8},
		{Purge10_8, 10},
		{Purge12_8, 12},
		{Purge16_8, 16},
		{Purge32_8, 32},
	}
	for _, test := range tests {
		if got := test.state.Numerator(); got != test.want {
			t.Errorf("%v.Numerator() = %d, want %d", test.state, got, test.want)
		}
		if got := test.state.Rate(); got != float64(test.want)/8 {
			t.Errorf("%v.Rate() = %f, want %f", test.state, got, float64(test.want)/8)
		}
	}
}

func TestSelectStateSweep(t *testing.T) {
	// The synthetic sweep from the end-to-end selector scenario. H=11ms, so
	// +100ms falls outside the hysteresis band and lands in BUFFER_7_8.
	offsets := []float64{-6000, -2000, -1000, -100, 0, 100, 500, 2000, 4000, 7000}
	want := []State{
		Purge32_8, Purge16_8, Purge12_8, Purge10_8, Play,
		Buffer7_8, Buffer7_8, Buffer4_8, Buffer2_8, Buffer1_8,
	}
	for i, off := range offsets {
		if got := SelectState(off); got != want[i] {
			t.Errorf("SelectState(%v) = %v, want %v", off, got, want[i])
		}
	}
}

func TestSelectStateHysteresis(t *testing.T) {
	for off := -hysteresis + 0.5; off < hysteresis; off += 1 {
		if got := SelectState(off); got != Play {
			t.Errorf("SelectState(%v) = %v, want PLAY (within hysteresis band)", off, got)
		}
	}
}

func TestSelectStateBoundaries(t *testing.T) {
	tests := []struct {
		off  float64
		want State
	}{
		{-5000.0001, Purge32_8},
		{-5000, Purge16_8},
		{-1500.0001, Purge16_8},
		{-1500, Purge12_8},
		{-500.0001, Purge12_8},
		{-500, Purge10_8},
		{-hysteresis - 0.0001, Purge10_8},
		{-hysteresis, Play},
		{hysteresis - 0.0001, Play},
		{hysteresis, Buffer7_8},
		{299.9999, Buffer7_8},
		{300, Buffer6_8},
		{999.9999, Buffer6_8},
		{1000, Buffer4_8},
		{2999.9999, Buffer4_8},
		{3000, Buffer2_8},
		{5999.9999, Buffer2_8},
		{6000, Buffer1_8},
	}
	for _, test := range tests {
		if got := SelectState(test.off); got != test.want {
			t.Errorf("SelectState(%v) = %v, want %v", test.off, got, test.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if Play.String() != "PLAY" {
		t.Errorf("Play.String() = %q, want PLAY", Play.String())
	}
	if Stop.String() != "STOP" {
		t.Errorf("Stop.String() = %q, want STOP", Stop.String())
	}
}
