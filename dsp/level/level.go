// Package level measures time-domain signal levels: DC offset, RMS, peak,
// crest factor and zero crossings, in one pass or block by block.
package level

import "math"

// Stats holds the level statistics of a signal.
type Stats struct {
	Frames        int
	DC            float64
	RMS           float64
	Peak          float64
	CrestFactor   float64 // Peak / RMS, 0 for silence
	ZeroCrossings int
}

// RMSdB returns RMS in dBFS.
func (s Stats) RMSdB() float64 { return ToDB(s.RMS) }

// PeakdB returns Peak in dBFS.
func (s Stats) PeakdB() float64 { return ToDB(s.Peak) }

// CrestFactordB returns the crest factor in dB.
func (s Stats) CrestFactordB() float64 { return ToDB(s.CrestFactor) }

// ToDB converts a linear amplitude to decibels. Zero maps to -Inf.
func ToDB(amp float64) float64 {
	a := math.Abs(amp)
	if a == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(a)
}

// Measure computes Stats for signal.
func Measure(signal []float64) Stats {
	var m Meter
	m.Update(signal)
	return m.Result()
}

// Meter accumulates Stats across blocks. Results are identical to calling
// Measure on the concatenated blocks.
type Meter struct {
	n     int
	sum   float64
	comp  float64 // Kahan compensation for sum
	sumSq float64
	peak  float64
	zc    int
	last  float64
}

// Update adds block to the running statistics.
func (m *Meter) Update(block []float64) {
	for _, x := range block {
		y := x - m.comp
		t := m.sum + y
		m.comp = (t - m.sum) - y
		m.sum = t

		m.sumSq += x * x
		m.peak = max(m.peak, math.Abs(x))

		if m.n > 0 && m.last*x < 0 {
			m.zc++
		}
		m.last = x
		m.n++
	}
}

// Result returns the statistics of everything seen since the last Reset.
func (m *Meter) Result() Stats {
	if m.n == 0 {
		return Stats{}
	}

	n := float64(m.n)
	s := Stats{
		Frames:        m.n,
		DC:            m.sum / n,
		RMS:           math.Sqrt(m.sumSq / n),
		Peak:          m.peak,
		ZeroCrossings: m.zc,
	}
	if s.RMS > 0 {
		s.CrestFactor = s.Peak / s.RMS
	}
	return s
}

// Reset clears the accumulated state.
func (m *Meter) Reset() { *m = Meter{} }
