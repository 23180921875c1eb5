/*
NAME
  resample.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package engine

import (
	"math"

	"github.com/pkg/errors"
)

// ErrAlloc names a resampler allocation failure. Resampler.Resample does not
// return it: when a state needs more room than the scratch buffer holds, it
// grows the buffer with make.
var ErrAlloc = errors.New("engine: resampler allocation failure")

// Resampler turns one source period of F frames into an output period of
// round(F/r) frames by proportional frame duplication (r<1) or decimation
// (r>1), per a state's rate. It keeps a single reusable output buffer sized
// for the widest state (1/8 rate, 8xF frames) so that steady-state
// operation performs no per-period allocation.
type Resampler struct {
	frameBytes int
	scratch    []byte
}

// NewResampler returns a Resampler for periods of maxFrames frames at
// frameBytes bytes per frame, pre-sizing its scratch buffer for the
// strongest stretch state (1/8 rate).
func NewResampler(frameBytes, maxFrames int) *Resampler {
	return &Resampler{
		frameBytes: frameBytes,
		scratch:    make([]byte, 8*maxFrames*frameBytes),
	}
}

// Resample resamples src (one source period) to the rate implied by state
// and returns the output period. For Play, it returns src unchanged with
// no copy, per the spec's short-circuit requirement. For any other state,
// the returned slice aliases the Resampler's internal scratch buffer and is
// only valid until the next call to Resample.
func (r *Resampler) Resample(src []byte, state State) ([]byte, error) {
	if state == Play {
		return src, nil
	}

	frameBytes := r.frameBytes
	f := len(src) / frameBytes
	if f == 0 {
		return nil, errors.New("engine: empty source period")
	}
	rate := state.Rate()
	outFrames := int(math.Round(float64(f) / rate))
	need := outFrames * frameBytes
	if need > len(r.scratch) {
		grown := make([]byte, need)
		r.scratch = grown
	}
	out := r.scratch[:need]

	frameSkip := rate
	if frameSkip < 1 {
		frameSkip = 1
	}
	frameDup := 1 / rate
	if frameDup < 1 {
		frameDup = 1
	}

	srcCursor := 0.0
	target := 0.0
	dst := 0
	for srcCursor < float64(f) && dst < outFrames {
		target += frameDup
		srcFrame := int(srcCursor)
		if srcFrame >= f {
			srcFrame = f - 1
		}
		srcOff := srcFrame * frameBytes
		for dst < outFrames && float64(dst) < target {
			copy(out[dst*frameBytes:(dst+1)*frameBytes], src[srcOff:srcOff+frameBytes])
			dst++
		}
		srcCursor += frameSkip
	}
	// Degenerate rounding cases (very large r) can leave fewer than
	// outFrames frames written; pad by repeating the final source frame
	// rather than leaving silence/garbage in the tail.
	if dst < outFrames {
		lastOff := (f - 1) * frameBytes
		for dst < outFrames {
			copy(out[dst*frameBytes:(dst+1)*frameBytes], src[lastOff:lastOff+frameBytes])
			dst++
		}
	}
	return out, nil
}
