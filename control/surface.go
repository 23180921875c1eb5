/*
NAME
  surface.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package control implements the control surface: the mutex-guarded shared
// state an external thread uses to query and set the target delay, and the
// wire transport that exposes it to clients over a local message bus.
package control

import (
	"sync"

	"github.com/ausocean/delayline/engine"
)

// Surface is the shared, mutex-protected subset of engine state: the
// target delay, the most recently selected playback state, and the most
// recently computed actual delay. The engine thread updates it once per
// iteration; the control surface thread only ever reads it or writes
// target_delta_p, never the ring indices themselves.
type Surface struct {
	mu sync.Mutex

	targetDeltaP int
	state        engine.State
	actualDeltaP int

	periodTimeUs float64
	minDelayMs   int
	maxDelayMs   int
}

// NewSurface returns a Surface for a stream whose period lasts
// periodTimeUs microseconds, with delay settings clamped to
// [minDelayMs, maxDelayMs].
func NewSurface(periodTimeUs float64, minDelayMs, maxDelayMs int) *Surface {
	return &Surface{
		periodTimeUs: periodTimeUs,
		minDelayMs:   minDelayMs,
		maxDelayMs:   maxDelayMs,
		state:        engine.Buffer1_8,
	}
}

// SetDelay sets the target delay in milliseconds. Values outside
// [min_delay_ms, max_delay_ms] are rejected (not clamped) and leave
// target_delta_p unchanged, so that a client's out-of-range request surfaces
// as a no-op rather than being silently reinterpreted.
func (s *Surface) SetDelay(ms int) bool {
	if ms < s.minDelayMs || ms > s.maxDelayMs {
		return false
	}
	s.mu.Lock()
	s.targetDeltaP = msToPeriods(ms, s.periodTimeUs)
	s.mu.Unlock()
	return true
}

// DelaySetting returns the current target delay in milliseconds.
func (s *Surface) DelaySetting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return periodsToMs(s.targetDeltaP, s.periodTimeUs)
}

// CurrentDelay returns the most recently measured actual delay in
// milliseconds.
func (s *Surface) CurrentDelay() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return periodsToMs(s.actualDeltaP, s.periodTimeUs)
}

// BufferPercent returns round(actual_delta_p * 100 / target_delta_p),
// clamped to [0, 200], with values in [99, 101] snapped to 100 to keep the
// in-sync reading stable against single-period jitter.
func (s *Surface) BufferPercent() int {
	s.mu.Lock()
	target := s.targetDeltaP
	actual := s.actualDeltaP
	s.mu.Unlock()

	if target <= 0 {
		return 0
	}
	pct := (actual*100 + target/2) / target
	if pct < 0 {
		pct = 0
	}
	if pct > 200 {
		pct = 200
	}
	if pct >= 99 && pct <= 101 {
		pct = 100
	}
	return pct
}

// TargetDeltaP returns the current target delay in periods, for the engine
// to re-read each iteration.
func (s *Surface) TargetDeltaP() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetDeltaP
}

// Update is called by the engine once per iteration to publish the state
// and actual delta it just computed.
func (s *Surface) Update(actualDeltaP int, state engine.State) {
	s.mu.Lock()
	s.actualDeltaP = actualDeltaP
	s.state = state
	s.mu.Unlock()
}

// State returns the most recently published playback state.
func (s *Surface) State() engine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func msToPeriods(ms int, periodTimeUs float64) int {
	return int(float64(ms) * 1000 / periodTimeUs)
}

func periodsToMs(periods int, periodTimeUs float64) int {
	return int(float64(periods) * periodTimeUs / 1000)
}
