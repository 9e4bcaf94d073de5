package router

import (
	"math"
	"testing"
)

func TestNotchEdgesBounds(t *testing.T) {
	centers := []float64{
		0, 10, 20, 500, 1000, 19990, 20000, 100000,
		-100, math.NaN(), math.Inf(1), math.Inf(-1),
	}
	bandwidths := []float64{
		0, 1, DefaultNotchBandwidthHz, 50000, -1000, math.NaN(), math.Inf(1),
	}

	for _, c := range centers {
		for _, bw := range bandwidths {
			low, high := NotchEdges(c, bw)
			if !(MinAudibleHz <= low && low <= high && high <= MaxAudibleHz) {
				t.Fatalf("NotchEdges(%v,%v)=(%v,%v) violates %v <= low <= high <= %v",
					c, bw, low, high, MinAudibleHz, MaxAudibleHz)
			}
		}
	}
}

func TestNotchEdgesSymmetric(t *testing.T) {
	tests := []struct {
		center, bw, low, high float64
	}{
		{1000, 1000, 500, 1500},
		{5000, 200, 4900, 5100},
		{1000, -1000, 500, 1500},
		{0, 1000, 20, 500},
		{100000, 1000, 20000, 20000},
		{19800, 1000, 19300, 20000},
	}

	for _, tc := range tests {
		low, high := NotchEdges(tc.center, tc.bw)
		if low != tc.low || high != tc.high {
			t.Fatalf("NotchEdges(%v,%v)=(%v,%v), want (%v,%v)",
				tc.center, tc.bw, low, high, tc.low, tc.high)
		}
	}
}
