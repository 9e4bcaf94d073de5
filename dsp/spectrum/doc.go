// Package spectrum measures where the energy of a signal sits in frequency.
//
// PowerSpectrum windows a block with a periodic Hann window and runs it
// through an algo-fft plan. BandEnergy and BandRatio sum the one-sided power
// over a frequency band, and Distortion reads harmonic levels relative to a
// fundamental. Goertzel evaluates single bins.
package spectrum
