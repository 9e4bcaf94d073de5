package router

import (
	"math"

	"github.com/cwbudde/algo-oscfx/dsp/core"
)

const (
	// DefaultNotchBandwidthHz is the distance in Hz between the two edges
	// of the synthesized notch.
	DefaultNotchBandwidthHz = 1000.0

	// MinAudibleHz and MaxAudibleHz bound every derived cutoff.
	MinAudibleHz = 20.0
	MaxAudibleHz = 20000.0
)

// NotchEdges returns the lowpass and highpass cutoffs used to synthesize
// the notch around centerHz. Both edges lie in [MinAudibleHz, MaxAudibleHz]
// and low <= high for every input, including NaN and infinities.
func NotchEdges(centerHz, bandwidthHz float64) (low, high float64) {
	half := math.Abs(bandwidthHz) / 2
	low = clampAudible(centerHz - half)
	high = clampAudible(centerHz + half)
	if low > high {
		low, high = high, low
	}
	return low, high
}

func clampAudible(hz float64) float64 {
	return core.Clamp(hz, MinAudibleHz, MaxAudibleHz)
}
