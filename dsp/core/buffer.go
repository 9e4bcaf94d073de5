package core

import "math"

// EnsureLen returns a slice with the requested length, reusing buf capacity if possible.
func EnsureLen(buf []float64, n int) []float64 {
	if n <= 0 {
		return buf[:0]
	}
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]float64, n)
}

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// CopyInto copies src into dst and returns the number of copied elements.
func CopyInto(dst, src []float64) int {
	n := min(len(dst), len(src))
	copy(dst[:n], src[:n])
	return n
}

// NewPlanar allocates channels buffers of frames samples each.
func NewPlanar(channels, frames int) [][]float64 {
	if channels <= 0 {
		return nil
	}
	backing := make([]float64, channels*max(frames, 0))
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = backing[ch*frames : (ch+1)*frames : (ch+1)*frames]
	}
	return out
}

// ClonePlanar returns a deep copy of block.
func ClonePlanar(block [][]float64) [][]float64 {
	out := make([][]float64, len(block))
	for ch, buf := range block {
		out[ch] = append([]float64(nil), buf...)
	}
	return out
}

// Deinterleave splits frames of interleaved float32 samples into planar dst.
// dst must have at least frames samples per channel; the channel count is len(dst).
func Deinterleave(dst [][]float64, src []float32, frames int) {
	channels := len(dst)
	for ch := range channels {
		buf := dst[ch][:frames]
		for i := range buf {
			buf[i] = float64(src[i*channels+ch])
		}
	}
}

// Interleave packs frames of planar src into interleaved float32 dst.
// Non-finite samples are written as silence.
func Interleave(dst []float32, src [][]float64, frames int) {
	channels := len(src)
	for ch := range channels {
		buf := src[ch][:frames]
		for i, x := range buf {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				x = 0
			}
			dst[i*channels+ch] = float32(x)
		}
	}
}
