package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-oscfx/dsp/window"
)

var errEmptyInput = errors.New("spectrum: input must not be empty")

// scratchBuf holds pooled scratch memory for complex-to-real unpacking.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n:need], buf
}

func putScratch(buf *scratchBuf) {
	scratchPool.Put(buf)
}

// Power returns |X[k]|^2 for each complex spectrum bin.
func Power(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	re, im, buf := getScratch(len(in))

	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Power(out, re, im)
	putScratch(buf)
	return out
}

// FFTSize returns the transform length used for n input samples: the next
// power of two, at least 2.
func FFTSize(n int) int {
	if n <= 2 {
		return 2
	}
	return 1 << bits.Len(uint(n-1))
}

// BinFrequency returns the centre frequency in Hz of bin k of an fftSize
// transform.
func BinFrequency(k, fftSize int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(fftSize)
}

// PowerSpectrum returns the one-sided power spectrum of samples. The input
// is Hann-windowed and zero-padded to FFTSize(len(samples)); the result has
// FFTSize/2+1 bins.
func PowerSpectrum(samples []float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, errEmptyInput
	}

	n := FFTSize(len(samples))

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("spectrum: failed to create FFT plan: %w", err)
	}

	windowed := append([]float64(nil), samples...)
	window.Apply(window.TypeHann, windowed, window.WithPeriodic())

	in := make([]complex128, n)
	for i, v := range windowed {
		in[i] = complex(v, 0)
	}

	out := make([]complex128, n)
	if err := plan.Forward(out, in); err != nil {
		return nil, fmt.Errorf("spectrum: forward FFT failed: %w", err)
	}

	return Power(out[:n/2+1]), nil
}

// BandEnergy sums the power spectrum of samples over bins whose centre
// frequency lies in [loHz, hiHz].
func BandEnergy(samples []float64, sampleRate, loHz, hiHz float64) (float64, error) {
	if err := validateBand(sampleRate, loHz, hiHz); err != nil {
		return 0, err
	}

	pow, err := PowerSpectrum(samples)
	if err != nil {
		return 0, err
	}

	return sumBand(pow, FFTSize(len(samples)), sampleRate, loHz, hiHz), nil
}

// BandRatio returns the fraction of the total spectral energy of samples
// that lies in [loHz, hiHz]. A silent input yields 0.
func BandRatio(samples []float64, sampleRate, loHz, hiHz float64) (float64, error) {
	if err := validateBand(sampleRate, loHz, hiHz); err != nil {
		return 0, err
	}

	pow, err := PowerSpectrum(samples)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, p := range pow {
		total += p
	}

	if total == 0 {
		return 0, nil
	}

	return sumBand(pow, FFTSize(len(samples)), sampleRate, loHz, hiHz) / total, nil
}

func sumBand(pow []float64, fftSize int, sampleRate, loHz, hiHz float64) float64 {
	sum := 0.0
	for k, p := range pow {
		f := BinFrequency(k, fftSize, sampleRate)
		if f >= loHz && f <= hiHz {
			sum += p
		}
	}
	return sum
}

func validateBand(sampleRate, loHz, hiHz float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("spectrum: sample rate must be > 0: %v", sampleRate)
	}

	if math.IsNaN(loHz) || math.IsNaN(hiHz) || loHz > hiHz {
		return fmt.Errorf("spectrum: invalid band [%v, %v]", loHz, hiHz)
	}

	return nil
}
