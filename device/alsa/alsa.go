/*
NAME
  alsa.go

AUTHOR
  Alan Noble <alan@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package alsa provides a pair of ALSA capture and playback devices
// configured to identical stream parameters, for use by the delay engine.
package alsa

import (
	"fmt"

	yalsa "github.com/yobert/alsa"

	"github.com/ausocean/delayline/codec/pcm"
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// underrunError marks ErrUnderrun as recognizable by the engine package's
// isUnderrun check without engine needing to import this package.
type underrunError struct{ error }

func (underrunError) Underrun() bool { return true }

// ErrUnderrun is returned by WriteFrames when the playback device's buffer
// ran dry and the device needs to be recovered before further writes.
var ErrUnderrun = underrunError{errors.New("alsa: playback underrun")}

// Params describes the stream parameters both the capture and playback
// devices must agree on exactly; mismatch between the negotiated capture
// and playback streams is a fatal configuration error.
type Params struct {
	Rate       uint    // Samples per second (Hz).
	Channels   uint    // 1 (mono) or 2 (stereo).
	BitDepth   uint    // 16 or 32.
	PeriodTime float64 // Seconds per period.
}

// rates is a list of common sample rates, preferred in ascending order so
// that NegotiateRate lands on the exact requested rate when the card
// supports it.
var rates = [8]int{8000, 16000, 32000, 44100, 48000, 88200, 96000, 192000}

// periodsInHWBuf sizes the ALSA hardware ring in periods; four periods of
// headroom keeps capture and playback devices from immediately underrunning
// on minor scheduling jitter.
const periodsInHWBuf = 4

// Device pairs a capture and a playback ALSA device configured with
// identical stream parameters. It implements the hardware abstraction
// (HW) operations the engine needs: Configure, ReadPeriod, WriteFrames,
// AvailPlaybackFrames, and Recover.
type Device struct {
	l    logging.Logger
	cap  *yalsa.Device
	play *yalsa.Device

	Params
	periodBytes  int // Bytes per period, derived from Params.
	captureTitle string
	playTitle    string
}

// New returns a Device that logs to l. capTitle/playTitle select the ALSA
// device titles to open; an empty title selects the first matching device.
func New(l logging.Logger, capTitle, playTitle string) *Device {
	return &Device{l: l, captureTitle: capTitle, playTitle: playTitle}
}

// Configure opens, negotiates, and prepares both the capture and playback
// devices for the requested parameters. Negotiated parameters on the two
// devices must match exactly; any mismatch is a fatal configuration error,
// mirroring the original hardware validation step that compared capture and
// playback stream negotiation results before starting the audio thread.
func (d *Device) Configure(want Params) error {
	cards, err := yalsa.OpenCards()
	if err != nil {
		return errors.Wrap(err, "opening sound cards")
	}
	defer yalsa.CloseCards(cards)

	capDev, err := findDevice(cards, d.captureTitle, func(dv *yalsa.Device) bool { return dv.Record })
	if err != nil {
		return errors.Wrap(err, "finding capture device")
	}
	playDev, err := findDevice(cards, d.playTitle, func(dv *yalsa.Device) bool { return dv.Play })
	if err != nil {
		return errors.Wrap(err, "finding playback device")
	}

	capParams, err := negotiate(d.l, capDev, want)
	if err != nil {
		return errors.Wrap(err, "negotiating capture device")
	}
	playParams, err := negotiate(d.l, playDev, want)
	if err != nil {
		return errors.Wrap(err, "negotiating playback device")
	}
	if capParams != playParams {
		return fmt.Errorf("alsa: capture/playback negotiation mismatch: %+v != %+v", capParams, playParams)
	}

	if err := capDev.Prepare(); err != nil {
		return errors.Wrap(err, "preparing capture device")
	}
	if err := playDev.Prepare(); err != nil {
		return errors.Wrap(err, "preparing playback device")
	}

	d.cap = capDev
	d.play = playDev
	d.Params = capParams
	d.periodBytes = pcm.DataSize(capParams.Rate, capParams.Channels, capParams.BitDepth, capParams.PeriodTime)
	d.l.Info("alsa devices configured", "rate", capParams.Rate, "channels", capParams.Channels,
		"bitdepth", capParams.BitDepth, "periodBytes", d.periodBytes)
	return nil
}

// PeriodBytes returns the number of bytes in a single period, for the
// negotiated parameters.
func (d *Device) PeriodBytes() int { return d.periodBytes }

// PeriodFrames returns the number of frames in a single period.
func (d *Device) PeriodFrames() int {
	return d.periodBytes / int(d.Channels*d.BitDepth/8)
}

// HWPeriods returns how many periods the hardware playback ring holds.
func (d *Device) HWPeriods() int { return periodsInHWBuf }

// ReadPeriod blocks until exactly one period of capture audio is available,
// and copies it into buf, which must be PeriodBytes() long. This is the
// engine's clock: every iteration of the I/O loop waits here.
func (d *Device) ReadPeriod(buf []byte) error {
	if len(buf) != d.periodBytes {
		return fmt.Errorf("alsa: ReadPeriod buffer is %d bytes, want %d", len(buf), d.periodBytes)
	}
	_, err := d.cap.Read(buf)
	if err != nil {
		return errors.Wrap(err, "alsa: capture read")
	}
	return nil
}

// WriteFrames writes frames (a whole number of periods, or less) to the
// playback device. An ALSA underrun is reported as ErrUnderrun so the
// caller can Recover and continue rather than treat it as fatal.
func (d *Device) WriteFrames(frames []byte) error {
	_, err := d.play.Write(frames)
	if err != nil {
		if isUnderrun(err) {
			return ErrUnderrun
		}
		return errors.Wrap(err, "alsa: playback write")
	}
	return nil
}

// AvailPlaybackFrames returns the number of frames of space currently free
// in the playback device's hardware ring, used by the delta tracker to
// account for audio already handed to ALSA but not yet sounded.
func (d *Device) AvailPlaybackFrames() (int, error) {
	n, err := d.play.AvailUpdate()
	if err != nil {
		return 0, errors.Wrap(err, "alsa: avail update")
	}
	return n, nil
}

// Recover attempts to bring the playback device out of an underrun/xrun
// state so playback can resume. It is called whenever WriteFrames reports
// ErrUnderrun.
func (d *Device) Recover() error {
	d.l.Warning("recovering playback device from underrun")
	if err := d.play.Prepare(); err != nil {
		return errors.Wrap(err, "alsa: recover prepare")
	}
	return nil
}

// Close releases both devices.
func (d *Device) Close() {
	if d.cap != nil {
		d.cap.Close()
	}
	if d.play != nil {
		d.play.Close()
	}
}

func findDevice(cards []*yalsa.Card, title string, match func(*yalsa.Device) bool) (*yalsa.Device, error) {
	for _, card := range cards {
		devices, err := card.Devices()
		if err != nil {
			continue
		}
		for _, dev := range devices {
			if dev.Type != yalsa.PCM || !match(dev) {
				continue
			}
			if title == "" || dev.Title == title {
				if err := dev.Open(); err != nil {
					return nil, err
				}
				return dev, nil
			}
		}
	}
	return nil, fmt.Errorf("alsa: no matching device found (title=%q)", title)
}

// negotiate applies Params to dev, falling back to nearby values the way
// the capture-only negotiation in the original single-device setup did,
// and returns what was actually negotiated.
func negotiate(l logging.Logger, dev *yalsa.Device, want Params) (Params, error) {
	channels, err := dev.NegotiateChannels(int(want.Channels))
	if err != nil && want.Channels == 1 {
		l.Info("device cannot do mono, trying stereo", "error", err)
		channels, err = dev.NegotiateChannels(2)
	}
	if err != nil {
		return Params{}, errors.Wrap(err, "negotiating channels")
	}

	var rate int
	found := false
	for _, r := range rates {
		if r < int(want.Rate) || r%int(want.Rate) != 0 {
			continue
		}
		rate, err = dev.NegotiateRate(r)
		if err == nil {
			found = true
			break
		}
	}
	if !found {
		rate, err = dev.NegotiateRate(int(want.Rate))
		if err != nil {
			return Params{}, errors.Wrap(err, "negotiating rate")
		}
	}

	var wantFmt yalsa.FormatType
	switch want.BitDepth {
	case 16:
		wantFmt = yalsa.S16_LE
	case 32:
		wantFmt = yalsa.S32_LE
	default:
		return Params{}, fmt.Errorf("unsupported bit depth %d", want.BitDepth)
	}
	gotFmt, err := dev.NegotiateFormat(wantFmt)
	if err != nil {
		return Params{}, errors.Wrap(err, "negotiating format")
	}
	var bitDepth uint
	switch gotFmt {
	case yalsa.S16_LE:
		bitDepth = 16
	case yalsa.S32_LE:
		bitDepth = 32
	}

	bytesPerSec := rate * channels * int(bitDepth/8)
	wantPeriodSize := int(float64(bytesPerSec) * want.PeriodTime)
	periodSize, err := dev.NegotiatePeriodSize(nearestPowerOfTwo(wantPeriodSize))
	if err != nil {
		return Params{}, errors.Wrap(err, "negotiating period size")
	}
	if _, err := dev.NegotiateBufferSize(periodSize * periodsInHWBuf); err != nil {
		return Params{}, errors.Wrap(err, "negotiating buffer size")
	}

	periodTime := float64(periodSize) / float64(rate)
	return Params{Rate: uint(rate), Channels: uint(channels), BitDepth: bitDepth, PeriodTime: periodTime}, nil
}

// nearestPowerOfTwo finds and returns the nearest power of two to n.
// Source: https://stackoverflow.com/a/45859570
func nearestPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	if n == 1 {
		return 2
	}
	v := n
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	x := v >> 1
	if (v - n) > (n - x) {
		return x
	}
	return v
}

// isUnderrun reports whether err indicates an ALSA xrun. yobert/alsa
// surfaces xruns as a plain error with no typed sentinel, but they
// implement a Temporary() method; anything else is treated as fatal.
func isUnderrun(err error) bool {
	type temp interface{ Temporary() bool }
	if t, ok := err.(temp); ok {
		return t.Temporary()
	}
	return false
}
