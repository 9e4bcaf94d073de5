package effects

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-oscfx/dsp/core"
)

const (
	// DefaultDrive is the drive a new Waveshaper starts with.
	DefaultDrive = 0.5

	minDriveGain = 1.0
	maxDriveGain = 25.0
	shaperSlope  = 1.5
)

// Waveshaper is a two-pass tanh saturator with drive-dependent input gain
// and makeup gain.
//
// For drive d in [0,1] the input gain is 1+24d, each sample passes through
// tanh(1.5x) twice, and the result is scaled by 1/(0.3+0.7d).
type Waveshaper struct {
	drive  float64
	gain   float64
	makeup float64
}

// NewWaveshaper returns a Waveshaper at DefaultDrive.
func NewWaveshaper() *Waveshaper {
	w := &Waveshaper{}
	w.SetDrive(DefaultDrive)
	return w
}

// SetDrive sets the drive amount, clamped to [0,1]. NaN maps to 0.
func (w *Waveshaper) SetDrive(drive float64) {
	w.drive = core.ClampUnit(drive)
	w.gain = core.MapUnit(w.drive, minDriveGain, maxDriveGain)
	w.makeup = 1 / (0.3 + 0.7*w.drive)
}

// Drive returns the clamped drive amount.
func (w *Waveshaper) Drive() float64 { return w.drive }

// InputGain returns the linear gain applied before shaping.
func (w *Waveshaper) InputGain() float64 { return w.gain }

// MakeupGain returns the linear gain applied after shaping.
func (w *Waveshaper) MakeupGain() float64 { return w.makeup }

// ProcessSample shapes one sample.
func (w *Waveshaper) ProcessSample(x float64) float64 {
	return w.shape(x * w.gain)
}

// ProcessInPlace shapes buf in place.
func (w *Waveshaper) ProcessInPlace(buf []float64) {
	vecmath.ScaleBlock(buf, buf, w.gain)
	for i, x := range buf {
		buf[i] = w.shape(x)
	}
}

func (w *Waveshaper) shape(x float64) float64 {
	x = math.Tanh(x * shaperSlope)
	x = math.Tanh(x * shaperSlope)
	return x * w.makeup
}
