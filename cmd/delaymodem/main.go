/*
NAME
  main.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// delaymodem is a variable-delay audio passthrough: it captures PCM audio
// from a capture device, buffers it, and plays it back on a playback
// device with a controllable, smoothly-converging delay.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ausocean/delayline/codec/pcm"
	"github.com/ausocean/delayline/control"
	"github.com/ausocean/delayline/device/alsa"
	"github.com/ausocean/delayline/engine"
	"github.com/ausocean/delayline/ringbuf"
	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultBits     = 16
	defaultRate     = 48000
	defaultMemoryMB = 32
	defaultPeriod   = 0.05 // Seconds.

	minDelayMs = 200
	logFile    = "delaymodem.log"
)

func main() {
	var (
		bits      int
		capture   string
		playback  string
		rate      int
		memoryMB  int
		verbose   bool
		help      bool
		filterArg string
		format    string
		record    string
	)

	flag.IntVar(&bits, "bits", defaultBits, "sample bit depth (16, 24, or 32; the ALSA device layer negotiates only 16 and 32, so 24 fails at device configuration)")
	flag.StringVar(&capture, "capture", "default", "capture device name")
	flag.StringVar(&playback, "playback", "default", "playback device name")
	flag.IntVar(&rate, "rate", defaultRate, "sample rate in Hz")
	flag.IntVar(&memoryMB, "memory", defaultMemoryMB, "memory ring size in MB")
	flag.BoolVar(&verbose, "verbose", false, "log at debug level and also to stderr")
	flag.BoolVar(&help, "help", false, "show usage and exit")
	flag.StringVar(&filterArg, "filter", "", "optional capture filter: lowpass:3000, highpass:80, bandpass:80,3000, bandstop:80,3000, or gain:1.5")
	flag.StringVar(&format, "format", "S16_LE", "sample format used by --filter: S16_LE or S32_LE")
	flag.StringVar(&record, "record", "", "if set, write recent playback audio to this WAV file on SIGUSR1")
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}
	if bits != 16 && bits != 24 && bits != 32 {
		fmt.Fprintf(os.Stderr, "invalid --bits %d: must be 16, 24, or 32\n", bits)
		flag.Usage()
		os.Exit(1)
	}
	sFormat, err := pcm.SFFromString(format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --format %q: %v\n", format, err)
		flag.Usage()
		os.Exit(1)
	}

	logLevel := logging.Info
	if verbose {
		logLevel = logging.Debug
	}
	fileLog := &lumberjack.Logger{Filename: logFile, MaxSize: 10, MaxBackups: 3}
	var out io.Writer = fileLog
	if verbose {
		out = io.MultiWriter(fileLog, os.Stderr)
	}
	l := logging.New(logLevel, out, false)

	if err := run(l, bits, capture, playback, rate, memoryMB, filterArg, sFormat, record); err != nil {
		l.Error("delaymodem: fatal error", "error", err.Error())
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(l logging.Logger, bits int, capture, playback string, rate, memoryMB int, filterArg string, sFormat pcm.SampleFormat, record string) error {
	hw := alsa.New(l, capture, playback)
	err := hw.Configure(alsa.Params{
		Rate:       uint(rate),
		Channels:   2,
		BitDepth:   uint(bits),
		PeriodTime: defaultPeriod,
	})
	if err != nil {
		return fmt.Errorf("configuring audio devices: %w", err)
	}
	defer hw.Close()

	memPeriods := (memoryMB * 1024 * 1024) / hw.PeriodBytes()
	ring, err := ringbuf.New(memPeriods, hw.PeriodBytes())
	if err != nil {
		return fmt.Errorf("allocating ring buffer: %w", err)
	}

	periodTimeUs := hw.PeriodTime * 1e6
	maxDelayMs := int(float64(memPeriods) * hw.PeriodTime * 1000)
	surface := control.NewSurface(periodTimeUs, minDelayMs, maxDelayMs)
	surface.SetDelay(2500)

	eng := engine.New(l, hw, ring, surface, periodTimeUs)

	if filterArg != "" {
		f, format, err := buildFilter(filterArg, hw, sFormat)
		if err != nil {
			return fmt.Errorf("building capture filter: %w", err)
		}
		eng.SetCaptureFilter(f, format)
	}

	bus, err := control.NewBus(l, surface, control.DefaultCmdAddr, control.DefaultStatusAddr)
	if err != nil {
		return fmt.Errorf("binding control bus: %w", err)
	}
	defer bus.Close()

	var rec *recorder
	if record != "" {
		rec = newRecorder(l, hw.Rate, hw.Channels, hw.BitDepth, hw.PeriodBytes(), hw.PeriodTime, record)
		rec.watch()
		eng.SetPlaybackTap(rec.tap)
	}

	stop := make(chan struct{})
	go bus.Run(stop)

	eng.Start()
	l.Info("delaymodem started", "capture", capture, "playback", playback,
		"rate", hw.Rate, "bits", hw.BitDepth, "memPeriods", memPeriods)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		l.Info("delaymodem: received shutdown signal")
	case err := <-eng.Err():
		close(stop)
		eng.Stop()
		return err
	}

	close(stop)
	eng.Stop()
	if rec != nil {
		rec.stop()
	}
	l.Info("delaymodem stopped cleanly")
	return nil
}

// buildFilter parses a "kind:param[,param]" filter spec into a
// pcm.AudioFilter and the pcm.BufferFormat it must be applied against.
func buildFilter(spec string, hw *alsa.Device, sFormat pcm.SampleFormat) (pcm.AudioFilter, pcm.BufferFormat, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return nil, pcm.BufferFormat{}, fmt.Errorf("filter spec must be kind:param, got %q", spec)
	}
	format := pcm.BufferFormat{SFormat: sFormat, Rate: hw.Rate, Channels: hw.Channels}
	const taps = 101

	switch parts[0] {
	case "lowpass", "highpass":
		var fc float64
		if _, err := fmt.Sscanf(parts[1], "%f", &fc); err != nil {
			return nil, pcm.BufferFormat{}, fmt.Errorf("invalid filter cutoff %q: %w", parts[1], err)
		}
		if parts[0] == "lowpass" {
			f, err := pcm.NewLowPass(fc, format, taps)
			return f, format, err
		}
		f, err := pcm.NewHighPass(fc, format, taps)
		return f, format, err
	case "bandpass", "bandstop":
		lower, upper, err := parseBand(parts[1])
		if err != nil {
			return nil, pcm.BufferFormat{}, err
		}
		if parts[0] == "bandpass" {
			f, err := pcm.NewBandPass(lower, upper, format, taps)
			return f, format, err
		}
		f, err := pcm.NewBandStop(lower, upper, format, taps)
		return f, format, err
	case "gain":
		var factor float64
		if _, err := fmt.Sscanf(parts[1], "%f", &factor); err != nil {
			return nil, pcm.BufferFormat{}, fmt.Errorf("invalid gain factor %q: %w", parts[1], err)
		}
		return pcm.NewAmplifier(factor), format, nil
	default:
		return nil, pcm.BufferFormat{}, fmt.Errorf("unknown filter kind %q", parts[0])
	}
}

// parseBand parses a "lower,upper" cutoff-frequency pair for bandpass and
// bandstop filters.
func parseBand(s string) (lower, upper float64, err error) {
	bounds := strings.SplitN(s, ",", 2)
	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("band filter param must be lower,upper, got %q", s)
	}
	if _, err := fmt.Sscanf(bounds[0], "%f", &lower); err != nil {
		return 0, 0, fmt.Errorf("invalid lower cutoff %q: %w", bounds[0], err)
	}
	if _, err := fmt.Sscanf(bounds[1], "%f", &upper); err != nil {
		return 0, 0, fmt.Errorf("invalid upper cutoff %q: %w", bounds[1], err)
	}
	return lower, upper, nil
}
