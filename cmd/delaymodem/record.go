/*
NAME
  record.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"encoding/binary"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	recordSeconds = 10
	recordTimeout = 100 * time.Millisecond
)

// recorder stages the last few seconds of actual playback output in a pool
// ring buffer, and on SIGUSR1 flushes it to a WAV file for post-hoc
// listening. It never affects engine timing: SetPlaybackTap hands it a
// best-effort copy after the audio has already been written to hardware.
type recorder struct {
	l        logging.Logger
	rate     uint
	channels uint
	bitDepth uint
	path     string
	buf      *pool.Buffer
	sig      chan os.Signal
	done     chan struct{}
}

// newRecorder builds a recorder holding roughly recordSeconds of audio,
// chunked at periodBytes (the size of every tap write, so each Write call
// lands on a single pool chunk rather than spanning several).
func newRecorder(l logging.Logger, rate, channels, bitDepth uint, periodBytes int, periodTimeSec float64, path string) *recorder {
	numPeriods := int(recordSeconds / periodTimeSec)
	if numPeriods < 1 {
		numPeriods = 1
	}
	r := &recorder{
		l:        l,
		rate:     rate,
		channels: channels,
		bitDepth: bitDepth,
		path:     path,
		buf:      pool.NewBuffer(numPeriods, periodBytes, recordTimeout),
		sig:      make(chan os.Signal, 1),
		done:     make(chan struct{}),
	}
	return r
}

// tap is installed via engine.SetPlaybackTap to accumulate played audio.
func (r *recorder) tap(frames []byte) {
	cp := make([]byte, len(frames))
	copy(cp, frames)
	if _, err := r.buf.Write(cp); err != nil && err != pool.ErrDropped {
		r.l.Warning("recorder: write failed", "error", err.Error())
	}
}

// watch starts a goroutine that flushes to path on SIGUSR1.
func (r *recorder) watch() {
	signal.Notify(r.sig, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-r.sig:
				if err := r.flush(); err != nil {
					r.l.Error("recorder: flush failed", "error", err.Error())
				}
			case <-r.done:
				return
			}
		}
	}()
}

func (r *recorder) stop() {
	close(r.done)
	signal.Stop(r.sig)
}

func (r *recorder) flush() error {
	f, err := os.Create(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, int(r.rate), int(r.bitDepth), int(r.channels), 1)
	defer enc.Close()

	samples := make([]int, 0, 4096)
	for {
		chunk, err := r.buf.Next(0)
		if err != nil {
			break
		}
		data := chunk.Bytes()
		samples = append(samples, decodeSamples(data, r.bitDepth)...)
		chunk.Close()
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: int(r.rate), NumChannels: int(r.channels)},
		Data:           samples,
		SourceBitDepth: int(r.bitDepth),
	}
	return enc.Write(buf)
}

// decodeSamples decodes a little-endian PCM byte slice into signed integer
// samples at the given bit depth (16, 24, or 32). 24-bit samples have no
// native encoding/binary support, so the low two bytes are read directly
// and the top byte is sign-extended by hand.
func decodeSamples(data []byte, bitDepth uint) []int {
	var samples []int
	switch bitDepth {
	case 16:
		for i := 0; i+1 < len(data); i += 2 {
			samples = append(samples, int(int16(binary.LittleEndian.Uint16(data[i:i+2]))))
		}
	case 24:
		for i := 0; i+2 < len(data); i += 3 {
			v := int32(data[i]) | int32(data[i+1])<<8 | int32(data[i+2])<<16
			if v&0x800000 != 0 {
				v |= -1 << 24 // Sign-extend the top byte.
			}
			samples = append(samples, int(v))
		}
	case 32:
		for i := 0; i+3 < len(data); i += 4 {
			samples = append(samples, int(int32(binary.LittleEndian.Uint32(data[i:i+4]))))
		}
	default:
		for i := 0; i+1 < len(data); i += 2 {
			samples = append(samples, int(int16(binary.LittleEndian.Uint16(data[i:i+2]))))
		}
	}
	return samples
}
