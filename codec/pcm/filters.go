/*
NAME
  filters.go

DESCRIPTION
  filters.go implements FIR frequency-selective and gain filters applied to
  captured PCM periods before they reach the ring buffer.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pcm

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// AudioFilter is applied to a whole captured period (b.Data) in the format
// carried by b.Format, and returns the filtered period in the same format.
// Unlike a codec, a filter never changes the length or format of a period:
// it is purely a conditioning pass run before the period enters the ring.
type AudioFilter interface {
	Apply(b Buffer) ([]byte, error)
}

// SelectiveFrequencyFilter is an FIR filter built by windowed-sinc design,
// applied by fast (FFT-based) convolution. One coefficient set serves
// lowpass, highpass, bandpass, and bandstop depending on how it's built.
type SelectiveFrequencyFilter struct {
	coeffs     []float64
	cutoff     [2]float64
	sampleRate uint
	taps       int
}

// NewLowPass builds an FIR lowpass filter with cutoff fc Hz and length taps,
// sized for PCM audio in the given format.
func NewLowPass(fc float64, info BufferFormat, taps int) (*SelectiveFrequencyFilter, error) {
	return newLoHiFilter(fc, info, taps, [2]float64{0, fc})
}

// NewHighPass builds an FIR highpass filter with cutoff fc Hz and length taps.
func NewHighPass(fc float64, info BufferFormat, taps int) (*SelectiveFrequencyFilter, error) {
	return newLoHiFilter(fc, info, taps, [2]float64{fc, 0})
}

// NewBandPass builds an FIR bandpass filter passing [fcLower, fcUpper] Hz,
// by convolving a highpass and a lowpass filter.
func NewBandPass(fcLower, fcUpper float64, info BufferFormat, taps int) (*SelectiveFrequencyFilter, error) {
	newFilter, hp, lp, err := newBandFilter([2]float64{fcLower, fcUpper}, info, taps)
	if err != nil {
		return nil, fmt.Errorf("could not create band filter: %w", err)
	}
	newFilter.coeffs, err = fastConvolve(hp.coeffs, lp.coeffs)
	if err != nil {
		return nil, fmt.Errorf("could not compute fast convolution: %w", err)
	}
	return newFilter, nil
}

// NewBandStop builds an FIR bandstop filter rejecting [fcLower, fcUpper] Hz,
// by summing a lowpass below the band and a highpass above it.
func NewBandStop(fcLower, fcUpper float64, info BufferFormat, taps int) (*SelectiveFrequencyFilter, error) {
	newFilter, hp, lp, err := newBandFilter([2]float64{fcUpper, fcLower}, info, taps)
	if err != nil {
		return nil, fmt.Errorf("could not create band filter: %w", err)
	}
	newFilter.coeffs = make([]float64, newFilter.taps+1)
	for i := range lp.coeffs {
		newFilter.coeffs[i] = lp.coeffs[i] + hp.coeffs[i]
	}
	return newFilter, nil
}

// Apply convolves the period against the filter's coefficients in the
// sample format carried by b.Format, so a single filter works whether
// the engine is running S16_LE or S32_LE capture.
func (filter *SelectiveFrequencyFilter) Apply(b Buffer) ([]byte, error) {
	return convolveFromBytes(b.Data, filter.coeffs, b.Format.SFormat)
}

// Amplifier scales every sample by a fixed factor, clipping to avoid
// wraparound artifacts.
type Amplifier struct {
	factor float64
}

// NewAmplifier builds an Amplifier with the given gain factor. Negative
// factors are taken as their absolute value; an amplifier never inverts
// phase.
func NewAmplifier(factor float64) *Amplifier {
	return &Amplifier{factor: math.Abs(factor)}
}

// Apply scales b.Data by the amplifier's factor, clipping to the range of
// the sample format carried by b.Format.
func (amp *Amplifier) Apply(b Buffer) ([]byte, error) {
	samples, err := bytesToFloats(b.Data, b.Format.SFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to floats: %w", err)
	}

	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = samples[i] * amp.factor
		if out[i] > 1 {
			out[i] = 1
		} else if out[i] < -1 {
			out[i] = -1
		}
	}
	return floatsToBytes(out, b.Format.SFormat)
}

// newLoHiFilter validates the input parameters and builds either a lowpass
// or a highpass filter, depending on which side of cutoff is zero.
func newLoHiFilter(fc float64, info BufferFormat, taps int, cutoff [2]float64) (*SelectiveFrequencyFilter, error) {
	if fc <= 0 || fc >= float64(info.Rate)/2 {
		return nil, errors.New("cutoff frequency out of bounds")
	}
	if taps <= 0 {
		return nil, errors.New("cannot create filter with taps <= 0")
	}

	var fd, factor1, factor2 float64
	switch {
	case cutoff[0] == 0: // Lowpass: cutoff[0] = 0, cutoff[1] = fc.
		fd = cutoff[1] / float64(info.Rate)
		factor1 = 1
		factor2 = 2 * fd
	case cutoff[1] == 0: // Highpass: cutoff[0] = fc, cutoff[1] = 0.
		fd = cutoff[0] / float64(info.Rate)
		factor1 = -1
		factor2 = 1 - 2*fd
	default:
		return nil, errors.New("newLoHiFilter cannot build bandpass or bandstop filters")
	}

	newFilter := SelectiveFrequencyFilter{cutoff: cutoff, sampleRate: info.Rate, taps: taps}
	size := newFilter.taps + 1
	newFilter.coeffs = make([]float64, size)
	b := 2 * math.Pi * fd
	winData := window.FlatTop(size)
	for n := 0; n < newFilter.taps/2; n++ {
		c := float64(n) - float64(newFilter.taps)/2
		y := math.Sin(c*b) / (math.Pi * c)
		newFilter.coeffs[n] = factor1 * y * winData[n]
		newFilter.coeffs[size-1-n] = newFilter.coeffs[n]
	}
	newFilter.coeffs[newFilter.taps/2] = factor2 * winData[newFilter.taps/2]

	return &newFilter, nil
}

// newBandFilter validates the input parameters and builds the lowpass and
// highpass filters a bandpass/bandstop filter is composed from.
func newBandFilter(cutoff [2]float64, info BufferFormat, taps int) (new, hp, lp *SelectiveFrequencyFilter, err error) {
	if cutoff[0] <= 0 || cutoff[0] >= float64(info.Rate)/2 {
		return nil, nil, nil, errors.New("cutoff frequencies out of bounds")
	}
	if cutoff[1] <= 0 || cutoff[1] >= float64(info.Rate)/2 {
		return nil, nil, nil, errors.New("cutoff frequencies out of bounds")
	}
	if taps <= 0 {
		return nil, nil, nil, errors.New("cannot create filter with taps <= 0")
	}
	newFilter := SelectiveFrequencyFilter{cutoff: cutoff, sampleRate: info.Rate, taps: taps}

	// For a bandpass filter, cutoff[0] = fcLower, cutoff[1] = fcUpper.
	// For a bandstop filter, cutoff[0] = fcUpper, cutoff[1] = fcLower.
	hp, err = NewHighPass(cutoff[0], info, taps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not create highpass component: %w", err)
	}
	lp, err = NewLowPass(cutoff[1], info, taps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not create lowpass component: %w", err)
	}

	return &newFilter, hp, lp, nil
}

// convolveFromBytes decodes b in the given sample format, convolves it
// against filter, and re-encodes the first len(samples) outputs of the
// convolution in the same format, so the result is as long as b.
func convolveFromBytes(b []byte, filter []float64, format SampleFormat) ([]byte, error) {
	samples, err := bytesToFloats(b, format)
	if err != nil {
		return nil, fmt.Errorf("could not convert to floats: %w", err)
	}
	convolution, err := fastConvolve(samples, filter)
	if err != nil {
		return nil, fmt.Errorf("could not compute fast convolution: %w", err)
	}
	return floatsToBytes(convolution[:len(samples)], format)
}

// bytesToFloats decodes a byte slice of PCM samples in the given format
// into floats in [-1, 1]. Only the two sample formats this tree supports
// (S16_LE and S32_LE) are handled; other formats are rejected rather than
// silently misinterpreted as 16-bit.
func bytesToFloats(b []byte, format SampleFormat) ([]float64, error) {
	if len(b) == 0 {
		return nil, errors.New("no audio to convert to floats")
	}

	switch format {
	case S16_LE:
		if len(b)%2 != 0 {
			return nil, errors.New("uneven number of bytes for S16_LE samples")
		}
		out := make([]float64, len(b)/2)
		for i := range out {
			v := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
			out[i] = float64(v) / (math.MaxInt16 + 1)
		}
		return out, nil
	case S32_LE:
		if len(b)%4 != 0 {
			return nil, errors.New("uneven number of bytes for S32_LE samples")
		}
		out := make([]float64, len(b)/4)
		for i := range out {
			v := int32(uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24)
			out[i] = float64(v) / (math.MaxInt32 + 1)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported sample format %v", format)
	}
}

// floatsToBytes encodes floats in [-1, 1] as PCM samples in the given
// format, the inverse of bytesToFloats.
func floatsToBytes(f []float64, format SampleFormat) ([]byte, error) {
	switch format {
	case S16_LE:
		out := make([]byte, len(f)*2)
		for i, v := range f {
			s := int16(v * math.MaxInt16)
			out[2*i] = byte(s)
			out[2*i+1] = byte(s >> 8)
		}
		return out, nil
	case S32_LE:
		out := make([]byte, len(f)*4)
		for i, v := range f {
			s := int32(v * math.MaxInt32)
			out[4*i] = byte(s)
			out[4*i+1] = byte(s >> 8)
			out[4*i+2] = byte(s >> 16)
			out[4*i+3] = byte(s >> 24)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported sample format %v", format)
	}
}

// fastConvolve computes the linear convolution of x and h in O(n log n) via
// zero-padded FFT multiplication.
func fastConvolve(x, h []float64) ([]float64, error) {
	if len(x) == 0 || len(h) == 0 {
		return nil, errors.New("convolution requires slices of length > 0")
	}

	convLen := len(x) + len(h) - 1
	padLen := int(math.Pow(2, math.Ceil(math.Log2(float64(convLen)))))

	xPadded := make([]float64, padLen)
	copy(xPadded, x)
	hPadded := make([]float64, padLen)
	copy(hPadded, h)

	xFFT, hFFT := fft.FFTReal(xPadded), fft.FFTReal(hPadded)
	yFFT := make([]complex128, padLen)
	for i := range xFFT {
		yFFT[i] = xFFT[i] * hFFT[i]
	}

	iy := fft.IFFT(yFFT)
	y := make([]float64, padLen)
	for i := range iy {
		y[i] = real(iy[i])
	}

	return y[:convLen], nil
}
