// Package svf provides a topology-preserving-transform (TPT) state-variable
// filter with lowpass, highpass and bandpass outputs.
//
// The integrator state stays valid across coefficient changes, so cutoff
// and resonance may be updated every block without re-preparing the filter.
package svf
