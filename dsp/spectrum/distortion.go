package spectrum

import (
	"fmt"
	"math"
)

const (
	distortionLowHz  = 20.0
	distortionHighHz = 20000.0

	// captureBins is the half-width of the Hann main lobe in bins; a
	// component's amplitude is summed over bin±captureBins.
	captureBins = 2
)

// HarmonicDistortion summarizes the harmonic content of a periodic signal.
// Ratios are linear amplitude ratios relative to the fundamental.
type HarmonicDistortion struct {
	FundamentalHz float64
	THD           float64
	THDN          float64
	OddHD         float64
	EvenHD        float64
	// Harmonics holds the level of harmonic 2, 3, ... relative to the
	// fundamental.
	Harmonics []float64
}

// THDdB returns THD in decibels.
func (h HarmonicDistortion) THDdB() float64 { return amplitudeDB(h.THD) }

// THDNdB returns THD+N in decibels.
func (h HarmonicDistortion) THDNdB() float64 { return amplitudeDB(h.THDN) }

// Distortion measures harmonic distortion of samples. With fundamentalHz > 0
// the fundamental is taken at that frequency; otherwise the strongest bin
// between 20 Hz and min(20 kHz, Nyquist) is used. maxHarmonics <= 0 means
// every harmonic below the upper limit.
func Distortion(samples []float64, sampleRate, fundamentalHz float64, maxHarmonics int) (HarmonicDistortion, error) {
	if err := validateBand(sampleRate, distortionLowHz, sampleRate/2); err != nil {
		return HarmonicDistortion{}, err
	}

	pow, err := PowerSpectrum(samples)
	if err != nil {
		return HarmonicDistortion{}, err
	}

	fftSize := FFTSize(len(samples))
	binHz := sampleRate / float64(fftSize)
	maxBin := len(pow) - 1

	lower := clampBin(int(math.Round(distortionLowHz/binHz)), 1, maxBin)
	upper := clampBin(int(math.Round(min(distortionHighHz, sampleRate/2)/binHz)), lower, maxBin)

	fundamental := strongestBin(pow, lower, upper)
	if fundamentalHz > 0 {
		fundamental = clampBin(int(math.Round(fundamentalHz/binHz)), lower, upper)
	}

	capture := min(captureBins, fundamental/2)
	level := componentLevel(pow, fundamental, capture)
	res := HarmonicDistortion{FundamentalHz: float64(fundamental) * binHz}
	if level <= 0 {
		return res, fmt.Errorf("spectrum: no energy at the fundamental (%.1f Hz)", res.FundamentalHz)
	}

	var harmonicSum float64
	for k := 2; ; k++ {
		if maxHarmonics > 0 && k-1 > maxHarmonics {
			break
		}
		bin := k * fundamental
		if bin > upper {
			break
		}

		v := componentLevel(pow, bin, capture)
		harmonicSum += v
		if k%2 == 0 {
			res.EvenHD += v
		} else {
			res.OddHD += v
		}
		res.Harmonics = append(res.Harmonics, v/level)
	}

	var total float64
	for i := lower; i <= upper; i++ {
		total += math.Sqrt(pow[i])
	}

	res.THD = harmonicSum / level
	res.THDN = max(total-level, 0) / level
	res.OddHD /= level
	res.EvenHD /= level

	return res, nil
}

func strongestBin(pow []float64, lower, upper int) int {
	best := lower
	for i := lower; i <= upper; i++ {
		if pow[i] > pow[best] {
			best = i
		}
	}
	return best
}

func componentLevel(pow []float64, bin, capture int) float64 {
	lo := max(bin-capture, 0)
	hi := min(bin+capture, len(pow)-1)

	sum := 0.0
	for i := lo; i <= hi; i++ {
		sum += math.Sqrt(pow[i])
	}
	return sum
}

func clampBin(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func amplitudeDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}
