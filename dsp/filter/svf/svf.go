package svf

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-oscfx/dsp/core"
)

const (
	// DefaultResonance is the Butterworth quality factor 1/sqrt(2).
	DefaultResonance = 1 / math.Sqrt2

	defaultCutoffHz = 1000.0
	minCutoffHz     = 1.0
	maxCutoffRatio  = 0.49
	minResonance    = 1e-3
)

// Mode selects which filter output ProcessSample returns.
type Mode int

const (
	Lowpass Mode = iota
	Highpass
	Bandpass
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Lowpass:
		return "lowpass"
	case Highpass:
		return "highpass"
	case Bandpass:
		return "bandpass"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) valid() bool {
	return m >= Lowpass && m <= Bandpass
}

// Option mutates construction-time parameters.
type Option func(*config) error

type config struct {
	mode      Mode
	cutoff    float64
	resonance float64
}

// WithMode selects the filter output.
func WithMode(mode Mode) Option {
	return func(cfg *config) error {
		if !mode.valid() {
			return fmt.Errorf("svf mode is invalid: %d", mode)
		}
		cfg.mode = mode
		return nil
	}
}

// WithCutoff sets the initial cutoff in Hz.
func WithCutoff(hz float64) Option {
	return func(cfg *config) error {
		if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
			return fmt.Errorf("svf cutoff must be > 0 and finite: %f", hz)
		}
		cfg.cutoff = hz
		return nil
	}
}

// WithResonance sets the quality factor.
func WithResonance(q float64) Option {
	return func(cfg *config) error {
		if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
			return fmt.Errorf("svf resonance must be > 0 and finite: %f", q)
		}
		cfg.resonance = q
		return nil
	}
}

// Filter is a single-channel TPT state-variable filter.
//
// Coefficients follow Simper's formulation:
//
//	g  = tan(pi*fc/fs), k = 1/Q
//	a1 = 1/(1 + g*(g+k)), a2 = g*a1, a3 = g*a2
type Filter struct {
	sampleRate float64
	cutoff     float64
	resonance  float64
	mode       Mode

	k, a1, a2, a3 float64

	ic1eq, ic2eq float64
}

// New returns a Filter prepared for sampleRate with zero state.
func New(sampleRate float64, opts ...Option) (*Filter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("svf sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := config{
		mode:      Lowpass,
		cutoff:    defaultCutoffHz,
		resonance: DefaultResonance,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		err := opt(&cfg)
		if err != nil {
			return nil, err
		}
	}

	f := &Filter{
		sampleRate: sampleRate,
		mode:       cfg.mode,
		resonance:  cfg.resonance,
	}
	f.cutoff = f.clampCutoff(cfg.cutoff)
	f.updateCoefficients()

	return f, nil
}

// SetSampleRate re-targets the filter to a new sample rate and clears state.
func (f *Filter) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("svf sample rate must be > 0 and finite: %f", sampleRate)
	}

	f.sampleRate = sampleRate
	f.cutoff = f.clampCutoff(f.cutoff)
	f.updateCoefficients()
	f.Reset()

	return nil
}

// SetCutoff updates the cutoff frequency in Hz, clamped to (0, 0.49*fs).
// Non-finite values are ignored. Integrator state is preserved.
func (f *Filter) SetCutoff(hz float64) {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return
	}

	hz = f.clampCutoff(hz)
	if hz == f.cutoff {
		return
	}

	f.cutoff = hz
	f.updateCoefficients()
}

// SetResonance updates the quality factor. Values <= 0 and non-finite
// values are ignored.
func (f *Filter) SetResonance(q float64) {
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return
	}

	q = math.Max(q, minResonance)
	if q == f.resonance {
		return
	}

	f.resonance = q
	f.updateCoefficients()
}

// SetMode selects the filter output. Invalid modes are ignored.
func (f *Filter) SetMode(mode Mode) {
	if mode.valid() {
		f.mode = mode
	}
}

// ProcessSample filters one input sample and returns the selected output.
func (f *Filter) ProcessSample(x float64) float64 {
	v3 := x - f.ic2eq
	v1 := f.a1*f.ic1eq + f.a2*v3
	v2 := f.ic2eq + f.a2*f.ic1eq + f.a3*v3
	f.ic1eq = 2*v1 - f.ic1eq
	f.ic2eq = 2*v2 - f.ic2eq

	switch f.mode {
	case Highpass:
		return x - f.k*v1 - v2
	case Bandpass:
		return v1
	default:
		return v2
	}
}

// ProcessInPlace filters buf in place. Zero-alloc.
func (f *Filter) ProcessInPlace(buf []float64) {
	a1, a2, a3, k := f.a1, f.a2, f.a3, f.k
	ic1, ic2 := f.ic1eq, f.ic2eq

	switch f.mode {
	case Highpass:
		for i, x := range buf {
			v3 := x - ic2
			v1 := a1*ic1 + a2*v3
			v2 := ic2 + a2*ic1 + a3*v3
			ic1 = 2*v1 - ic1
			ic2 = 2*v2 - ic2
			buf[i] = x - k*v1 - v2
		}
	case Bandpass:
		for i, x := range buf {
			v3 := x - ic2
			v1 := a1*ic1 + a2*v3
			v2 := ic2 + a2*ic1 + a3*v3
			ic1 = 2*v1 - ic1
			ic2 = 2*v2 - ic2
			buf[i] = v1
		}
	default:
		for i, x := range buf {
			v3 := x - ic2
			v1 := a1*ic1 + a2*v3
			v2 := ic2 + a2*ic1 + a3*v3
			ic1 = 2*v1 - ic1
			ic2 = 2*v2 - ic2
			buf[i] = v2
		}
	}

	f.ic1eq = core.FlushDenormals(ic1)
	f.ic2eq = core.FlushDenormals(ic2)
}

// Reset clears the integrator state.
func (f *Filter) Reset() {
	f.ic1eq = 0
	f.ic2eq = 0
}

// State returns the integrator state [ic1eq, ic2eq].
func (f *Filter) State() [2]float64 {
	return [2]float64{f.ic1eq, f.ic2eq}
}

// SetState restores a previously saved integrator state.
func (f *Filter) SetState(state [2]float64) {
	f.ic1eq = state[0]
	f.ic2eq = state[1]
}

// SampleRate returns the prepared sample rate in Hz.
func (f *Filter) SampleRate() float64 { return f.sampleRate }

// Cutoff returns the effective (clamped) cutoff in Hz.
func (f *Filter) Cutoff() float64 { return f.cutoff }

// Resonance returns the quality factor.
func (f *Filter) Resonance() float64 { return f.resonance }

// Mode returns the selected output.
func (f *Filter) Mode() Mode { return f.mode }

func (f *Filter) clampCutoff(hz float64) float64 {
	maxHz := maxCutoffRatio * f.sampleRate
	return core.Clamp(hz, min(minCutoffHz, maxHz), maxHz)
}

func (f *Filter) updateCoefficients() {
	g := math.Tan(math.Pi * f.cutoff / f.sampleRate)
	f.k = 1 / f.resonance
	f.a1 = 1 / (1 + g*(g+f.k))
	f.a2 = g * f.a1
	f.a3 = g * f.a2
}
