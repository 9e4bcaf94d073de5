// Package effects provides the DSP kernels behind the non-filter plugins.
//
//   - Waveshaper: drive-mapped input gain, double tanh saturation and
//     makeup gain.
//   - StereoReverb: Freeverb-style reverb with 8 combs and 4 allpasses per
//     side and smoothed wet/dry/width.
//   - Oscillator: phase-accumulator tone source with sine, triangle and
//     square shapes.
//
// Kernels are not safe for concurrent use; they are driven from the audio
// thread only and keep zero-allocation hot paths.
package effects
