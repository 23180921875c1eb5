/*
NAME
  bus_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package control

import "testing"

func TestEncodeDecodeFrame(t *testing.T) {
	tests := []struct {
		kind  byte
		value string
	}{
		{kindDelay, "2500"},
		{kindBuffer, "100"},
		{kindActual, "0"},
		{kindDelay, ""}, // Query frame.
	}
	for _, test := range tests {
		frame := encodeFrame(test.kind, test.value)
		kind, value, err := decodeFrame(frame)
		if err != nil {
			t.Fatalf("decodeFrame(%q): %v", frame, err)
		}
		if kind != test.kind || value != test.value {
			t.Errorf("decodeFrame(encodeFrame(%c, %q)) = (%c, %q), want (%c, %q)",
				test.kind, test.value, kind, value, test.kind, test.value)
		}
	}
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	tests := []string{
		"",
		"nocolon",
		"TooLongAKindSeparatorMissing",
		":novalue",
	}
	for _, frame := range tests {
		if _, _, err := decodeFrame(frame); err == nil {
			t.Errorf("decodeFrame(%q) = nil error, want an error", frame)
		}
	}
}

func TestAbs(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0},
		{5, 5},
		{-5, 5},
	}
	for _, test := range tests {
		if got := abs(test.in); got != test.want {
			t.Errorf("abs(%d) = %d, want %d", test.in, got, test.want)
		}
	}
}
