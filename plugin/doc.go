// Package plugin contains the OSC-controlled effect variants.
//
// Each variant implements Effect: it is prepared for a processing
// configuration, processes planar float64 blocks in place on the audio
// thread, and accepts OSC messages on control goroutines through
// HandleMessage. Control values cross threads through atomic Parameters or,
// for the filter variant, the router's published stage snapshot.
package plugin
