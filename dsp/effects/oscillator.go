package effects

import (
	"fmt"
	"math"
)

// Waveform selects the oscillator shape. The numeric values match the
// /wave control message.
type Waveform int

const (
	Sine     Waveform = 1
	Triangle Waveform = 2
	Square   Waveform = 3
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Triangle:
		return "triangle"
	case Square:
		return "square"
	default:
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
}

// Valid reports whether w names a supported shape.
func (w Waveform) Valid() bool {
	return w >= Sine && w <= Square
}

// Oscillator is a phase-accumulator tone generator.
type Oscillator struct {
	sampleRate float64
	freq       float64
	waveform   Waveform
	phase      float64
	delta      float64
}

// NewOscillator returns a sine oscillator at freqHz.
func NewOscillator(sampleRate, freqHz float64) (*Oscillator, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("oscillator sample rate must be > 0: %f", sampleRate)
	}

	o := &Oscillator{sampleRate: sampleRate, waveform: Sine}
	o.SetFrequency(freqHz)

	return o, nil
}

// SetFrequency sets the pitch in Hz, limited to [0, sampleRate/2]. Non-finite
// values are ignored. The phase is preserved.
func (o *Oscillator) SetFrequency(hz float64) {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return
	}
	o.freq = math.Max(0, math.Min(hz, o.sampleRate/2))
	o.delta = 2 * math.Pi * o.freq / o.sampleRate
}

// SetWaveform switches shape. Unsupported values are ignored.
func (o *Oscillator) SetWaveform(w Waveform) {
	if w.Valid() {
		o.waveform = w
	}
}

// ResetPhase restarts the waveform at phase zero.
func (o *Oscillator) ResetPhase() { o.phase = 0 }

// Frequency returns the pitch in Hz.
func (o *Oscillator) Frequency() float64 { return o.freq }

// Waveform returns the current shape.
func (o *Oscillator) Waveform() Waveform { return o.waveform }

// Next returns the next sample in [-1,1] and advances the phase.
func (o *Oscillator) Next() float64 {
	v := o.value()
	o.phase += o.delta
	if o.phase >= 2*math.Pi {
		o.phase = math.Mod(o.phase, 2*math.Pi)
	}
	return v
}

// Fill overwrites buf with consecutive samples scaled by level.
func (o *Oscillator) Fill(buf []float64, level float64) {
	for i := range buf {
		buf[i] = o.Next() * level
	}
}

func (o *Oscillator) value() float64 {
	switch o.waveform {
	case Triangle:
		p := o.phase / (2 * math.Pi)
		switch {
		case p < 0.25:
			return 4 * p
		case p < 0.75:
			return 2 - 4*p
		default:
			return 4*p - 4
		}
	case Square:
		if math.Sin(o.phase) > 0 {
			return 1
		}
		return -1
	default:
		return math.Sin(o.phase)
	}
}
