// Package testutil holds signal generators and assertions shared by tests.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// NoiseBlock returns a planar block of independent white-noise channels.
func NoiseBlock(seed int64, channels, frames int) [][]float64 {
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = DeterministicNoise(seed+int64(ch), 1, frames)
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// RMS returns the root-mean-square level of data.
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(data)))
}

// SteadyStateGain feeds a sine through process in blocks and returns the
// output/input RMS ratio measured over the second half of the signal.
func SteadyStateGain(process func([]float64), freqHz, sampleRate float64, length, blockSize int) float64 {
	in := DeterministicSine(freqHz, sampleRate, 1, length)
	out := append([]float64(nil), in...)
	for start := 0; start < length; start += blockSize {
		process(out[start:min(start+blockSize, length)])
	}
	half := length / 2
	inRMS := RMS(in[half:])
	if inRMS == 0 {
		return 0
	}
	return RMS(out[half:]) / inRMS
}
