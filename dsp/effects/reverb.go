package effects

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-oscfx/dsp/core"
)

const (
	reverbNumCombs     = 8
	reverbNumAllpasses = 4

	reverbFixedGain    = 0.015
	reverbScaleWet     = 3.0
	reverbScaleDry     = 2.0
	reverbScaleDamp    = 0.4
	reverbScaleRoom    = 0.28
	reverbOffsetRoom   = 0.7
	reverbStereoSpread = 23
	reverbTuningRate   = 44100.0

	// reverbSmoothingSeconds is the ramp length applied to gain changes.
	reverbSmoothingSeconds = 0.01
)

// Tunings in samples at 44.1 kHz; the right channel adds the stereo spread.
var (
	reverbCombTunings    = [reverbNumCombs]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	reverbAllpassTunings = [reverbNumAllpasses]int{556, 441, 341, 225}
)

// ReverbParams are the user-facing reverb controls, each in [0,1] except
// Freeze, which holds the tail indefinitely while set.
type ReverbParams struct {
	RoomSize float64
	Damping  float64
	Wet      float64
	Dry      float64
	Width    float64
	Freeze   bool
}

// DefaultReverbParams returns the settings used by the reverb plugin at
// wet 0.5.
func DefaultReverbParams() ReverbParams {
	return ReverbParams{
		RoomSize: 0.7,
		Damping:  0.5,
		Wet:      0.5,
		Dry:      0.5,
		Width:    1.0,
	}
}

func (p ReverbParams) clamped() ReverbParams {
	p.RoomSize = core.ClampUnit(p.RoomSize)
	p.Damping = core.ClampUnit(p.Damping)
	p.Wet = core.ClampUnit(p.Wet)
	p.Dry = core.ClampUnit(p.Dry)
	p.Width = core.ClampUnit(p.Width)
	return p
}

// StereoReverb is a Schroeder/Freeverb-style stereo reverb.
type StereoReverb struct {
	sampleRate float64
	params     ReverbParams

	gain     float64
	wet1     smoothedGain
	wet2     smoothedGain
	dry      smoothedGain
	feedback float64
	damp     float64

	combs   [2][reverbNumCombs]reverbComb
	allpass [2][reverbNumAllpasses]reverbAllpass
}

// NewStereoReverb allocates delay lines for sampleRate and applies the
// default parameters without smoothing.
func NewStereoReverb(sampleRate float64) (*StereoReverb, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("reverb sample rate must be > 0: %f", sampleRate)
	}

	r := &StereoReverb{sampleRate: sampleRate}

	scale := sampleRate / reverbTuningRate
	for ch := range 2 {
		spread := ch * reverbStereoSpread
		for i, tuning := range reverbCombTunings {
			r.combs[ch][i] = newReverbComb(scaledLength(tuning+spread, scale))
		}
		for i, tuning := range reverbAllpassTunings {
			r.allpass[ch][i] = newReverbAllpass(scaledLength(tuning+spread, scale))
		}
	}

	steps := max(1, int(reverbSmoothingSeconds*sampleRate))
	r.wet1.steps = steps
	r.wet2.steps = steps
	r.dry.steps = steps

	r.SetParams(DefaultReverbParams())
	r.wet1.snap()
	r.wet2.snap()
	r.dry.snap()

	return r, nil
}

func scaledLength(tuning int, scale float64) int {
	return max(1, int(math.Round(float64(tuning)*scale)))
}

// SetParams updates the controls. Wet, dry and width changes are ramped over
// a short interval; room size and damping take effect immediately.
func (r *StereoReverb) SetParams(p ReverbParams) {
	p = p.clamped()
	r.params = p

	wet := p.Wet * reverbScaleWet
	r.wet1.setTarget(0.5 * wet * (1 + p.Width))
	r.wet2.setTarget(0.5 * wet * (1 - p.Width))
	r.dry.setTarget(p.Dry * reverbScaleDry)

	if p.Freeze {
		r.gain = 0
		r.feedback = 1
		r.damp = 0
	} else {
		r.gain = reverbFixedGain
		r.feedback = p.RoomSize*reverbScaleRoom + reverbOffsetRoom
		r.damp = p.Damping * reverbScaleDamp
	}

	for ch := range r.combs {
		for i := range r.combs[ch] {
			r.combs[ch][i].feedback = r.feedback
			r.combs[ch][i].setDamp(r.damp)
		}
	}
}

// Params returns the current (clamped) controls.
func (r *StereoReverb) Params() ReverbParams { return r.params }

// SampleRate returns the rate the delay lines were sized for.
func (r *StereoReverb) SampleRate() float64 { return r.sampleRate }

// Reset clears all delay and filter state.
func (r *StereoReverb) Reset() {
	for ch := range r.combs {
		for i := range r.combs[ch] {
			r.combs[ch][i].reset()
		}
		for i := range r.allpass[ch] {
			r.allpass[ch][i].reset()
		}
	}
	r.wet1.snap()
	r.wet2.snap()
	r.dry.snap()
}

// ProcessStereo processes left and right in place. Both slices are
// processed up to the shorter length.
func (r *StereoReverb) ProcessStereo(left, right []float64) {
	n := min(len(left), len(right))
	for i := range n {
		left[i], right[i] = r.processFrame(left[i], right[i])
	}
}

// ProcessMono processes buf in place as a stereo pair fed with identical
// input, keeping the left output.
func (r *StereoReverb) ProcessMono(buf []float64) {
	for i, x := range buf {
		buf[i], _ = r.processFrame(x, x)
	}
}

func (r *StereoReverb) processFrame(inL, inR float64) (float64, float64) {
	input := (inL + inR) * r.gain

	var outL, outR float64
	for i := range reverbNumCombs {
		outL += r.combs[0][i].process(input)
		outR += r.combs[1][i].process(input)
	}
	for i := range reverbNumAllpasses {
		outL = r.allpass[0][i].process(outL)
		outR = r.allpass[1][i].process(outR)
	}

	wet1 := r.wet1.next()
	wet2 := r.wet2.next()
	dry := r.dry.next()

	return outL*wet1 + outR*wet2 + inL*dry,
		outR*wet1 + outL*wet2 + inR*dry
}

// smoothedGain ramps linearly to its target over a fixed number of samples.
type smoothedGain struct {
	current   float64
	target    float64
	step      float64
	steps     int
	remaining int
}

func (s *smoothedGain) setTarget(v float64) {
	if v == s.target {
		return
	}
	s.target = v
	s.remaining = s.steps
	s.step = (s.target - s.current) / float64(s.steps)
}

func (s *smoothedGain) snap() {
	s.current = s.target
	s.remaining = 0
}

func (s *smoothedGain) next() float64 {
	if s.remaining > 0 {
		s.remaining--
		if s.remaining == 0 {
			s.current = s.target
		} else {
			s.current += s.step
		}
	}
	return s.current
}

type reverbAllpass struct {
	buffer []float64
	index  int
}

func newReverbAllpass(size int) reverbAllpass {
	return reverbAllpass{buffer: make([]float64, size)}
}

func (a *reverbAllpass) process(input float64) float64 {
	bufOut := a.buffer[a.index]
	a.buffer[a.index] = input + bufOut*0.5
	a.index++
	if a.index >= len(a.buffer) {
		a.index = 0
	}
	return bufOut - input
}

func (a *reverbAllpass) reset() {
	core.Zero(a.buffer)
	a.index = 0
}

type reverbComb struct {
	feedback    float64
	filterStore float64
	dampA       float64
	dampB       float64
	buffer      []float64
	index       int
}

func newReverbComb(size int) reverbComb {
	return reverbComb{buffer: make([]float64, size)}
}

func (c *reverbComb) setDamp(v float64) {
	c.dampA = v
	c.dampB = 1 - v
}

func (c *reverbComb) process(input float64) float64 {
	output := c.buffer[c.index]
	c.filterStore = core.FlushDenormals(output*c.dampB + c.filterStore*c.dampA)
	c.buffer[c.index] = input + c.filterStore*c.feedback
	c.index++
	if c.index >= len(c.buffer) {
		c.index = 0
	}
	return output
}

func (c *reverbComb) reset() {
	core.Zero(c.buffer)
	c.index = 0
	c.filterStore = 0
}
