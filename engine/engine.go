/*
NAME
  engine.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package engine implements the capture-driven I/O loop that ties the
// hardware abstraction, ring buffer, rate selector, and resampler together,
// and the delta-tracking and rate-selection logic that loop relies on.
package engine

import (
	"sync"

	"github.com/ausocean/delayline/codec/pcm"
	"github.com/ausocean/delayline/ringbuf"
	"github.com/ausocean/utils/logging"
)

// prefetchTarget is the number of periods the engine tries to keep queued
// in the hardware playback ring; keeping a few periods of headroom is what
// lets the selector choose wide rates (like 4x) without immediately
// underrunning.
const prefetchTarget = 8

// HW is the hardware abstraction the engine drives: blocking capture and
// playback, with an underrun/recover contract. *github.com/ausocean/delayline/device/alsa.Device
// implements this.
type HW interface {
	PeriodBytes() int
	PeriodFrames() int
	HWPeriods() int
	ReadPeriod(buf []byte) error
	WriteFrames(frames []byte) error
	AvailPlaybackFrames() (int, error)
	Recover() error
}

// Surface is the control surface's view the engine writes to and reads
// from each iteration. *github.com/ausocean/delayline/control.Surface
// implements this; the interface lives here (not in control) so engine has
// no dependency on control, avoiding an import cycle.
type Surface interface {
	TargetDeltaP() int
	Update(actualDeltaP int, state State)
}

// Engine runs the capture-driven I/O loop over a HW, a ring buffer and a
// Surface.
type Engine struct {
	l             logging.Logger
	hw            HW
	ring          *ringbuf.Ring
	resampler     *Resampler
	surface       Surface
	captureFilter pcm.AudioFilter
	captureFormat pcm.BufferFormat
	playbackTap   func([]byte)
	periodTimeUs  float64

	mu   sync.Mutex // Guards captureFilter/playbackTap against concurrent Set*.
	stop chan struct{}
	err  chan error
	wg   sync.WaitGroup
}

// New returns an Engine ready to Start. periodTimeUs is the negotiated
// period duration in microseconds, used to convert between periods and
// milliseconds for delta tracking.
func New(l logging.Logger, hw HW, ring *ringbuf.Ring, surface Surface, periodTimeUs float64) *Engine {
	return &Engine{
		l:            l,
		hw:           hw,
		ring:         ring,
		resampler:    NewResampler(ring.PeriodBytes()/hw.PeriodFrames(), hw.PeriodFrames()),
		surface:      surface,
		periodTimeUs: periodTimeUs,
		err:          make(chan error, 1),
	}
}

// SetCaptureFilter installs an optional filter (e.g. a lowpass/highpass
// SelectiveFrequencyFilter) applied to each captured period before it
// enters the ring buffer. format must describe the capture device's actual
// sample layout, since the filter decodes b.Data according to it. Passing
// a nil filter disables filtering. This never affects timing: it runs
// before the ring write, so it cannot interact with the rate selector or
// resampler.
func (e *Engine) SetCaptureFilter(f pcm.AudioFilter, format pcm.BufferFormat) {
	e.mu.Lock()
	e.captureFilter = f
	e.captureFormat = format
	e.mu.Unlock()
}

// SetPlaybackTap installs a function called with a copy-free view of every
// period actually written to the playback device. It exists for diagnostic
// consumers (e.g. the --record WAV dump) and must not retain the slice
// beyond the call, since it aliases the resampler's scratch buffer (or, in
// PLAY, the ring buffer's play slot).
func (e *Engine) SetPlaybackTap(tap func([]byte)) {
	e.mu.Lock()
	e.playbackTap = tap
	e.mu.Unlock()
}

// Start spawns the engine's I/O loop.
func (e *Engine) Start() {
	e.stop = make(chan struct{})
	e.wg.Add(1)
	go e.loop()
}

// Stop signals the loop to exit and waits for it to finish.
func (e *Engine) Stop() {
	close(e.stop)
	e.wg.Wait()
}

// Err returns a channel that receives at most one error: an unrecoverable
// hardware failure that caused the loop to stop itself.
func (e *Engine) Err() <-chan error { return e.err }

// loop is the capture-driven main loop described in the spec: one blocking
// capture read provides the iteration's clock; afterward, an inner refill
// loop tops up the hardware playback ring, possibly writing zero, one, or
// several resampled periods depending on the current rate state. It must
// not be mistaken for a one-in-one-out loop.
func (e *Engine) loop() {
	defer e.wg.Done()

	periodFrames := e.hw.PeriodFrames()
	hwPeriods := e.hw.HWPeriods()
	prevState := State(-1)

	for {
		select {
		case <-e.stop:
			return
		default:
		}

		targetDeltaP := e.surface.TargetDeltaP()
		avail, err := e.hw.AvailPlaybackFrames()
		if err != nil {
			e.fail(err)
			return
		}
		actual := actualDeltaP(e.ring.PeriodsQueued(), hwPeriods, avail, periodFrames)
		offMs := timeOffMs(targetDeltaP, actual, e.periodTimeUs)

		slot := e.ring.CaptureSlot()
		if err := e.hw.ReadPeriod(slot); err != nil {
			e.l.Warning("engine: short capture read, skipping iteration", "error", err.Error())
			continue
		}
		e.applyCaptureFilter(slot)
		e.ring.AdvanceCap()

		lastState := e.refill(offMs, periodFrames, hwPeriods)
		if lastState != prevState {
			e.l.Debug("engine: state change", "state", lastState.String(), "actualDeltaP", actual, "timeOffMs", offMs)
			prevState = lastState
		}
		e.surface.Update(actual, lastState)
	}
}

// refill tops up the hardware playback ring until it holds at least
// prefetchTarget periods, or there is nothing left to draw from the ring,
// or a write fails in a way that must wait for the next capture period.
// It returns the last rate state it selected, for observability.
func (e *Engine) refill(offMs float64, periodFrames, hwPeriods int) State {
	lastState := Play
	for {
		avail, err := e.hw.AvailPlaybackFrames()
		if err != nil {
			e.l.Error("engine: avail query failed", "error", err.Error())
			return lastState
		}
		queued := hwPeriods - avail/periodFrames
		if queued >= prefetchTarget {
			return lastState
		}
		if e.ring.Empty() {
			return lastState
		}

		state := SelectState(offMs)
		if state == Stop {
			e.requestStopLocked()
			return lastState
		}
		lastState = state

		src := e.ring.PlaySlot()
		out, err := e.resampler.Resample(src, state)
		if err != nil {
			e.l.Warning("engine: resampler allocation failure, skipping write", "error", err.Error())
			return lastState
		}

		if err := e.hw.WriteFrames(out); err != nil {
			if isUnderrun(err) {
				if rerr := e.hw.Recover(); rerr != nil {
					e.l.Error("engine: recover failed", "error", rerr.Error())
				}
				return lastState
			}
			e.l.Warning("engine: playback write failed, skipping iteration", "error", err.Error())
			return lastState
		}
		e.mu.Lock()
		tap := e.playbackTap
		e.mu.Unlock()
		if tap != nil {
			tap(out)
		}
		e.ring.AdvancePlay()
	}
}

func (e *Engine) applyCaptureFilter(slot []byte) {
	e.mu.Lock()
	f := e.captureFilter
	format := e.captureFormat
	e.mu.Unlock()
	if f == nil {
		return
	}
	filtered, err := f.Apply(pcm.Buffer{Format: format, Data: slot})
	if err != nil {
		e.l.Warning("engine: capture filter failed, using unfiltered audio", "error", err.Error())
		return
	}
	copy(slot, filtered)
}

// requestStopLocked signals the loop's caller to stop; used when the rate
// selector or an external command reaches the terminal STOP state.
func (e *Engine) requestStopLocked() {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

func (e *Engine) fail(err error) {
	e.l.Error("engine: unrecoverable hardware error, stopping", "error", err.Error())
	select {
	case e.err <- err:
	default:
	}
}

// isUnderrun reports whether err signals a recoverable playback underrun.
// The HW interface keeps engine hardware-agnostic, so rather than import
// alsa.ErrUnderrun directly, engine recognizes any error implementing this
// small marker interface; alsa.ErrUnderrun implements it.
func isUnderrun(err error) bool {
	u, ok := err.(interface{ Underrun() bool })
	return ok && u.Underrun()
}
