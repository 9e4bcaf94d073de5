package level

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-oscfx/internal/testutil"
)

func TestMeasure(t *testing.T) {
	tests := []struct {
		name   string
		signal []float64
		want   Stats
	}{
		{"empty", nil, Stats{}},
		{"silence", make([]float64, 8), Stats{Frames: 8}},
		{"dc", []float64{0.5, 0.5, 0.5, 0.5}, Stats{Frames: 4, DC: 0.5, RMS: 0.5, Peak: 0.5, CrestFactor: 1}},
		{"square", []float64{1, -1, 1, -1}, Stats{Frames: 4, RMS: 1, Peak: 1, CrestFactor: 1, ZeroCrossings: 3}},
		{"zero is not a crossing", []float64{1, 0, -1}, Stats{
			Frames: 3, RMS: math.Sqrt(2.0 / 3), Peak: 1, CrestFactor: 1 / math.Sqrt(2.0/3),
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Measure(tc.signal)
			if got.Frames != tc.want.Frames || got.ZeroCrossings != tc.want.ZeroCrossings {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			for _, pair := range [][2]float64{
				{got.DC, tc.want.DC}, {got.RMS, tc.want.RMS},
				{got.Peak, tc.want.Peak}, {got.CrestFactor, tc.want.CrestFactor},
			} {
				if math.Abs(pair[0]-pair[1]) > 1e-12 {
					t.Fatalf("got %+v, want %+v", got, tc.want)
				}
			}
		})
	}
}

func TestSineLevels(t *testing.T) {
	sig := testutil.DeterministicSine(1000, 48000, 1, 48000)
	s := Measure(sig)

	if math.Abs(s.RMS-1/math.Sqrt2) > 1e-6 {
		t.Fatalf("RMS=%f, want %f", s.RMS, 1/math.Sqrt2)
	}
	if math.Abs(s.CrestFactordB()-3.0103) > 1e-3 {
		t.Fatalf("crest=%f dB, want 3.01", s.CrestFactordB())
	}
	if math.Abs(s.RMSdB()+3.0103) > 1e-3 {
		t.Fatalf("RMS=%f dB, want -3.01", s.RMSdB())
	}
	if s.ZeroCrossings < 1990 || s.ZeroCrossings > 2000 {
		t.Fatalf("zero crossings=%d, want ~2000", s.ZeroCrossings)
	}
}

func TestMeterMatchesMeasure(t *testing.T) {
	sig := testutil.DeterministicNoise(7, 0.8, 1000)
	want := Measure(sig)

	var m Meter
	for off := 0; off < len(sig); off += 37 {
		m.Update(sig[off:min(off+37, len(sig))])
	}
	if got := m.Result(); got != want {
		t.Fatalf("blockwise %+v != one-shot %+v", got, want)
	}

	m.Reset()
	if got := m.Result(); got != (Stats{}) {
		t.Fatalf("after Reset: %+v", got)
	}
}

func TestToDB(t *testing.T) {
	if !math.IsInf(ToDB(0), -1) {
		t.Fatal("ToDB(0) should be -Inf")
	}
	if math.Abs(ToDB(-0.5)+6.0206) > 1e-3 {
		t.Fatalf("ToDB(-0.5)=%f", ToDB(-0.5))
	}
}
