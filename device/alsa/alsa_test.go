/*
NAME
  alsa_test.go

AUTHOR
  Trek Hopton <trek@ausocean.org>
  Scott Barnard <scott@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package alsa

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/ausocean/utils/logging"
)

var powerTests = []struct {
	in  int
	out int
}{
	{36, 32},
	{47, 32},
	{3, 4},
	{46, 32},
	{7, 8},
	{2, 2},
	{36, 32},
	{757, 512},
	{2464, 2048},
	{18980, 16384},
	{70000, 65536},
	{8192, 8192},
	{2048, 2048},
	{65536, 65536},
	{-2048, 1},
	{-127, 1},
	{-1, 1},
	{0, 1},
	{1, 2},
}

func TestNearestPowerOfTwo(t *testing.T) {
	for _, tt := range powerTests {
		t.Run(strconv.Itoa(tt.in), func(t *testing.T) {
			v := nearestPowerOfTwo(tt.in)
			if v != tt.out {
				t.Errorf("got %v, want %v", v, tt.out)
			}
		})
	}
}

// TestConfigure exercises device discovery and negotiation end to end.
// It is skipped outside environments with a real ALSA capture+playback
// pair, since Configure opens hardware devices.
func TestConfigure(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true)
	d := New(l, "", "")

	err := d.Configure(Params{Rate: 8000, Channels: 1, BitDepth: 16, PeriodTime: 0.05})
	if err != nil {
		t.Skipf("no usable ALSA devices in this environment: %v", err)
	}
	defer d.Close()

	if d.PeriodBytes() <= 0 {
		t.Errorf("PeriodBytes() = %d, want > 0", d.PeriodBytes())
	}

	buf := make([]byte, d.PeriodBytes())
	if err := d.ReadPeriod(buf); err != nil {
		t.Errorf("ReadPeriod: %v", err)
	}
}
