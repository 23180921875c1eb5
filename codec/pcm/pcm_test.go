/*
NAME
  pcm_test.go

DESCRIPTION
  pcm_test.go contains functions for testing the pcm package.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pcm

import "testing"

func TestDataSize(t *testing.T) {
	tests := []struct {
		rate, channels, bitDepth uint
		period                   float64
		want                     int
	}{
		{48000, 2, 16, 0.05, 9600},  // 50ms (2400-frame) period at 48kHz stereo 16-bit.
		{8000, 1, 16, 1, 16000},     // One second of mono 16-bit at 8kHz.
		{44100, 2, 32, 0.1, 35280},  // 100ms of stereo 32-bit at 44.1kHz.
	}
	for _, test := range tests {
		got := DataSize(test.rate, test.channels, test.bitDepth, test.period)
		if got != test.want {
			t.Errorf("DataSize(%d, %d, %d, %v) = %d, want %d",
				test.rate, test.channels, test.bitDepth, test.period, got, test.want)
		}
	}
}

func TestSampleFormatString(t *testing.T) {
	tests := []struct {
		f    SampleFormat
		want string
	}{
		{S16_LE, "S16_LE"},
		{S32_LE, "S32_LE"},
		{Unknown, "Unknown"},
	}
	for _, test := range tests {
		if got := test.f.String(); got != test.want {
			t.Errorf("%v.String() = %q, want %q", int(test.f), got, test.want)
		}
	}
}

func TestSFFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    SampleFormat
		wantErr bool
	}{
		{"S16_LE", S16_LE, false},
		{"S32_LE", S32_LE, false},
		{"bogus", Unknown, true},
	}
	for _, test := range tests {
		got, err := SFFromString(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("SFFromString(%q) error = %v, wantErr %v", test.in, err, test.wantErr)
		}
		if err == nil && got != test.want {
			t.Errorf("SFFromString(%q) = %v, want %v", test.in, got, test.want)
		}
	}
}
