/*
NAME
  rate.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package engine

// State is the playback-rate state, a discriminated enum. Its rate
// numerator over eight (PLAY=8) is given by Numerator, not by the
// constant's own integer value.
type State int

const (
	Buffer1_8 State = iota // 1/8, strongest stretch.
	Buffer2_8              // 1/4
	Buffer4_8              // 1/2
	Buffer6_8              // 3/4
	Buffer7_8              // 7/8, mild stretch.
	Play                   // 1, in sync.
	Purge10_8              // 5/4, mild compress.
	Purge12_8              // 3/2
	Purge16_8              // 2
	Purge32_8              // 4, strongest compress.
	Stop                   // Terminal; the engine exits.
)

// Numerator returns the state's rate numerator over eight, e.g. Play
// returns 8 and Buffer1_8 returns 1.
func (s State) Numerator() int {
	switch s {
	case Buffer1_8:
		return 1
	case Buffer2_8:
		return 2
	case Buffer4_8:
		return 4
	case Buffer6_8:
		return 6
	case Buffer7_8:
		return 7
	case Play:
		return 8
	case Purge10_8:
		return 10
	case Purge12_8:
		return 12
	case Purge16_8:
		return 16
	case Purge32_8:
		return 32
	default:
		return 8
	}
}

// Rate returns the state's playback speed relative to normal: source frames
// consumed per output frame (in/out). A period of F source frames resamples
// to round(F/Rate()) output frames.
func (s State) Rate() float64 { return float64(s.Numerator()) / 8 }

func (s State) String() string {
	switch s {
	case Buffer1_8:
		return "BUFFER_1_8"
	case Buffer2_8:
		return "BUFFER_2_8"
	case Buffer4_8:
		return "BUFFER_4_8"
	case Buffer6_8:
		return "BUFFER_6_8"
	case Buffer7_8:
		return "BUFFER_7_8"
	case Play:
		return "PLAY"
	case Purge10_8:
		return "PURGE_10_8"
	case Purge12_8:
		return "PURGE_12_8"
	case Purge16_8:
		return "PURGE_16_8"
	case Purge32_8:
		return "PURGE_32_8"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// hysteresis is the half-width, in ms, of the band around zero time-off
// that selects PLAY instead of a mild buffer/purge state. It matches the
// threshold originally tuned to avoid flapping when the error is small.
const hysteresis = 11.0

// SelectState maps a signed time-off error in ms to a playback rate state,
// with a hysteresis band of +/-H around zero mapping to PLAY. Selection is
// stateless: it is recomputed fresh from timeOffMs every call, with no
// memory of the previous state beyond the hysteresis window itself.
func SelectState(timeOffMs float64) State {
	switch {
	case timeOffMs < -5000:
		return Purge32_8
	case timeOffMs < -1500:
		return Purge16_8
	case timeOffMs < -500:
		return Purge12_8
	case timeOffMs < -hysteresis:
		return Purge10_8
	case timeOffMs < hysteresis:
		return Play
	case timeOffMs < 300:
		return Buffer7_8
	case timeOffMs < 1000:
		return Buffer6_8
	case timeOffMs < 3000:
		return Buffer4_8
	case timeOffMs < 6000:
		return Buffer2_8
	default:
		return Buffer1_8
	}
}
