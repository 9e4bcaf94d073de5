// Package router implements a control-driven multi-mode filter.
//
// A Router holds a small set of filter stages (LPF, HPF, BPF, NOTCH), of
// which at most two may be active at once. Control messages decoded from
// the OSC addresses /filter/active and /filter/cutoff mutate the stage
// state; the audio callback applies the active stages to each block as a
// serial cascade in a fixed order.
//
// The stage state is an immutable snapshot published through an atomic
// pointer. Control goroutines build and publish a new snapshot per
// mutation; Process loads the snapshot once at block start and never locks
// or allocates.
package router
