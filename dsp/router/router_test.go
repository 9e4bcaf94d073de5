package router

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/dsp/spectrum"
	"github.com/cwbudde/algo-oscfx/internal/testutil"
)

const testSampleRate = 48000.0

func newPreparedRouter(t *testing.T, channels int, opts ...Option) *Router {
	t.Helper()

	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cfg := core.ApplyProcessorOptions(
		core.WithSampleRate(testSampleRate),
		core.WithBlockSize(512),
		core.WithChannels(channels),
	)
	if err := r.Prepare(cfg); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	return r
}

func mustApply(t *testing.T, r *Router, msg ControlMessage, want Outcome) {
	t.Helper()
	if got := r.Apply(msg); got != want {
		t.Fatalf("Apply(%#v)=%v, want %v", msg, got, want)
	}
}

func processInBlocks(r *Router, block [][]float64, blockSize int) {
	frames := len(block[0])
	view := make([][]float64, len(block))
	for start := 0; start < frames; start += blockSize {
		end := min(start+blockSize, frames)
		for ch := range block {
			view[ch] = block[ch][start:end]
		}
		r.Process(view)
	}
}

func TestNewInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative bandwidth", WithNotchBandwidth(-1)},
		{"zero resonance", WithResonance(0)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPrepareInvalid(t *testing.T) {
	r, _ := New()
	if err := r.Prepare(core.ProcessorConfig{SampleRate: 0, BlockSize: 512, Channels: 2}); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestOutcomeString(t *testing.T) {
	for o, want := range map[Outcome]string{Ignored: "ignored", Applied: "applied", Rejected: "rejected"} {
		if o.String() != want {
			t.Fatalf("%d.String()=%q, want %q", int(o), o.String(), want)
		}
	}
}

func TestApplyNeverExceedsMaxActive(t *testing.T) {
	r, _ := New()
	rng := rand.New(rand.NewSource(42))
	names := append(StageNames(), "PEAK")

	for i := 0; i < 5000; i++ {
		msg := SetActive{Stage: names[rng.Intn(len(names))], Enabled: rng.Intn(3) != 0}
		r.Apply(msg)

		if n := r.Snapshot().ActiveCount(); n > MaxActiveStages {
			t.Fatalf("step %d: %d active stages after %#v", i, n, msg)
		}
	}
}

func TestThirdActivationIsRejected(t *testing.T) {
	r, _ := New()

	mustApply(t, r, SetActive{Stage: "NOTCH", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "BPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Rejected)

	s := r.Snapshot()
	if !s.Active[Notch] || !s.Active[Bandpass] || s.Active[Lowpass] || s.Active[Highpass] {
		t.Fatalf("active set=%v, want [BPF NOTCH]", s.ActiveStages())
	}

	// Freeing a slot makes room again.
	mustApply(t, r, SetActive{Stage: "BPF", Enabled: false}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)

	if got := r.Snapshot().ActiveStages(); len(got) != 2 || got[0] != Lowpass || got[1] != Notch {
		t.Fatalf("active set=%v, want [LPF NOTCH]", got)
	}
}

func TestReactivatingActiveStageIsApplied(t *testing.T) {
	r, _ := New()

	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "HPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)

	if n := r.Snapshot().ActiveCount(); n != 2 {
		t.Fatalf("ActiveCount=%d, want 2", n)
	}
}

func TestUnknownStageIsNoop(t *testing.T) {
	r, _ := New()
	mustApply(t, r, SetCutoff{Stage: "LPF", Hz: 300}, Applied)

	before := r.Snapshot()

	mustApply(t, r, SetCutoff{Stage: "PEAK", Hz: 5000}, Ignored)
	mustApply(t, r, SetActive{Stage: "lpf", Enabled: true}, Ignored)

	if r.Snapshot() != before {
		t.Fatalf("state changed: %+v -> %+v", before, r.Snapshot())
	}

	if r.Apply(nil) != Ignored {
		t.Fatal("nil message should be ignored")
	}
}

func TestCutoffStoredUnclamped(t *testing.T) {
	r, _ := New()

	mustApply(t, r, SetCutoff{Stage: "HPF", Hz: 100000}, Applied)
	mustApply(t, r, SetCutoff{Stage: "LPF", Hz: -3}, Applied)

	s := r.Snapshot()
	if s.CutoffHz[Highpass] != 100000 || s.CutoffHz[Lowpass] != -3 {
		t.Fatalf("cutoffs=%v, want raw values", s.CutoffHz)
	}
}

func TestMalformedMessageLeavesStateUnchanged(t *testing.T) {
	r, _ := New()
	before := r.Snapshot()

	outcome, err := r.Handle(AddressActive, []any{float32(1), int32(1)})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if outcome != Ignored {
		t.Fatalf("outcome=%v, want ignored", outcome)
	}

	if r.Snapshot() != before {
		t.Fatal("state changed after malformed message")
	}
}

func TestHandleAppliesDecodedMessage(t *testing.T) {
	r, _ := New()

	if _, err := r.Handle(AddressCutoff, []any{"BPF", float32(750)}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome, err := r.Handle(AddressActive, []any{"BPF", int32(1)}); err != nil || outcome != Applied {
		t.Fatalf("Handle=(%v,%v), want applied", outcome, err)
	}

	s := r.Snapshot()
	if !s.Active[Bandpass] || s.CutoffHz[Bandpass] != 750 {
		t.Fatalf("state=%+v", s)
	}
}

func TestProcessIdentityWhenInactive(t *testing.T) {
	r := newPreparedRouter(t, 2)
	block := testutil.NoiseBlock(1, 2, 1024)
	want := core.ClonePlanar(block)

	r.Process(block)
	testutil.RequirePlanarEqual(t, block, want)

	// Toggle a stage on and off again: still the identity.
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: false}, Applied)

	r.Process(block)
	testutil.RequirePlanarEqual(t, block, want)
}

func TestProcessBeforePreparePassesThrough(t *testing.T) {
	r, _ := New()
	mustApply(t, r, SetActive{Stage: "HPF", Enabled: true}, Applied)

	block := testutil.NoiseBlock(2, 2, 256)
	want := core.ClonePlanar(block)

	r.Process(block)
	testutil.RequirePlanarEqual(t, block, want)
}

func TestExtraChannelsPassThrough(t *testing.T) {
	r := newPreparedRouter(t, 1)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)

	block := testutil.NoiseBlock(3, 2, 512)
	want := core.ClonePlanar(block)

	r.Process(block)

	testutil.RequirePlanarEqual(t, block[1:], want[1:])

	if diff, _ := testutil.MaxAbsDiff(block[0], want[0]); diff == 0 {
		t.Fatal("prepared channel was not filtered")
	}
}

func TestLowpassHighpassCascadeConcentratesEnergy(t *testing.T) {
	r := newPreparedRouter(t, 1)

	mustApply(t, r, SetCutoff{Stage: "LPF", Hz: 500}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)
	mustApply(t, r, SetCutoff{Stage: "HPF", Hz: 2000}, Applied)
	mustApply(t, r, SetActive{Stage: "HPF", Enabled: true}, Applied)

	const frames = 1 << 16
	block := [][]float64{testutil.DeterministicNoise(11, 1, frames)}

	inBandBefore, err := spectrum.BandRatio(block[0], testSampleRate, 500, 2000)
	if err != nil {
		t.Fatalf("BandRatio: %v", err)
	}

	processInBlocks(r, block, 512)
	testutil.RequireFinite(t, block[0])

	settled := block[0][4096:]

	inBand, _ := spectrum.BandRatio(settled, testSampleRate, 500, 2000)
	high, _ := spectrum.BandRatio(settled, testSampleRate, 5000, testSampleRate/2)
	low, _ := spectrum.BandRatio(settled, testSampleRate, 0, 200)

	if inBand < 0.5 {
		t.Fatalf("in-band energy ratio=%.3f, want >= 0.5 (unfiltered %.3f)", inBand, inBandBefore)
	}
	if inBand < 5*inBandBefore {
		t.Fatalf("in-band ratio %.3f not concentrated versus unfiltered %.3f", inBand, inBandBefore)
	}
	if high > 0.06 {
		t.Fatalf("energy above 5 kHz=%.3f, want < 0.06", high)
	}
	if low > 0.01 {
		t.Fatalf("energy below 200 Hz=%.3f, want < 0.01", low)
	}
}

func TestNotchAttenuatesCentre(t *testing.T) {
	r := newPreparedRouter(t, 1)
	mustApply(t, r, SetCutoff{Stage: "NOTCH", Hz: 1000}, Applied)
	mustApply(t, r, SetActive{Stage: "NOTCH", Enabled: true}, Applied)

	gain := testutil.SteadyStateGain(func(buf []float64) {
		r.Process([][]float64{buf})
	}, 1000, testSampleRate, 1<<14, 512)

	if gain > 0.2 {
		t.Fatalf("gain at notch centre=%.3f, want < 0.2", gain)
	}
}

func TestNotchExtremeCentreStaysFinite(t *testing.T) {
	for _, hz := range []float32{0, 100000, -50} {
		r := newPreparedRouter(t, 2)
		mustApply(t, r, SetCutoff{Stage: "NOTCH", Hz: float64(hz)}, Applied)
		mustApply(t, r, SetActive{Stage: "NOTCH", Enabled: true}, Applied)

		block := testutil.NoiseBlock(5, 2, 2048)
		processInBlocks(r, block, 256)

		for ch := range block {
			testutil.RequireFinite(t, block[ch])
		}
	}
}

func TestOutOfRangeCutoffStaysFinite(t *testing.T) {
	for _, clamp := range []bool{true, false} {
		r := newPreparedRouter(t, 1, WithCutoffClamping(clamp))
		mustApply(t, r, SetCutoff{Stage: "LPF", Hz: 1e9}, Applied)
		mustApply(t, r, SetCutoff{Stage: "BPF", Hz: -1e9}, Applied)
		mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)
		mustApply(t, r, SetActive{Stage: "BPF", Enabled: true}, Applied)

		block := testutil.NoiseBlock(6, 1, 4096)
		processInBlocks(r, block, 512)
		testutil.RequireFinite(t, block[0])
	}
}

func TestActivationStartsFromCleanState(t *testing.T) {
	input := testutil.DeterministicNoise(9, 1, 512)

	fresh := newPreparedRouter(t, 1)
	mustApply(t, fresh, SetActive{Stage: "LPF", Enabled: true}, Applied)

	want := [][]float64{append([]float64(nil), input...)}
	fresh.Process(want)

	reused := newPreparedRouter(t, 1)
	mustApply(t, reused, SetActive{Stage: "LPF", Enabled: true}, Applied)
	reused.Process(testutil.NoiseBlock(10, 1, 512))
	mustApply(t, reused, SetActive{Stage: "LPF", Enabled: false}, Applied)
	reused.Process(testutil.NoiseBlock(11, 1, 512))
	mustApply(t, reused, SetActive{Stage: "LPF", Enabled: true}, Applied)

	got := [][]float64{append([]float64(nil), input...)}
	reused.Process(got)

	testutil.RequirePlanarEqual(t, got, want)
}

func TestToggleBetweenBlocksResetsStage(t *testing.T) {
	input := testutil.DeterministicNoise(14, 1, 512)

	for _, stage := range []string{"LPF", "NOTCH"} {
		t.Run(stage, func(t *testing.T) {
			clean := newPreparedRouter(t, 1)
			mustApply(t, clean, SetActive{Stage: stage, Enabled: true}, Applied)
			want := [][]float64{append([]float64(nil), input...)}
			clean.Process(want)

			r := newPreparedRouter(t, 1)
			mustApply(t, r, SetActive{Stage: stage, Enabled: true}, Applied)
			r.Process(testutil.NoiseBlock(15, 1, 512))

			// Off and on again with no block in between.
			mustApply(t, r, SetActive{Stage: stage, Enabled: false}, Applied)
			mustApply(t, r, SetActive{Stage: stage, Enabled: true}, Applied)

			got := [][]float64{append([]float64(nil), input...)}
			r.Process(got)

			testutil.RequirePlanarEqual(t, got, want)
		})
	}
}

func TestActiveStageKeepsStateAcrossBlocks(t *testing.T) {
	input := testutil.NoiseBlock(16, 1, 1024)

	whole := newPreparedRouter(t, 1)
	mustApply(t, whole, SetActive{Stage: "HPF", Enabled: true}, Applied)
	want := [][]float64{append([]float64(nil), input[0]...)}
	processInBlocks(whole, want, 512)

	split := newPreparedRouter(t, 1)
	mustApply(t, split, SetActive{Stage: "HPF", Enabled: true}, Applied)
	got := [][]float64{append([]float64(nil), input[0]...)}
	processInBlocks(split, got, 64)

	testutil.RequirePlanarEqual(t, got, want)
}

func TestActivationsCountTransitions(t *testing.T) {
	r := newPreparedRouter(t, 1)

	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: false}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: false}, Applied)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "HPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "BPF", Enabled: true}, Rejected)

	got := r.Snapshot().Activations
	want := [NumStages]uint64{Lowpass: 2, Highpass: 1}
	if got != want {
		t.Fatalf("Activations=%v, want %v", got, want)
	}
}

func TestResetClearsFilterState(t *testing.T) {
	input := testutil.DeterministicNoise(12, 1, 512)

	r := newPreparedRouter(t, 1)
	mustApply(t, r, SetActive{Stage: "HPF", Enabled: true}, Applied)

	first := [][]float64{append([]float64(nil), input...)}
	r.Process(first)

	r.Process(testutil.NoiseBlock(13, 1, 512))
	r.Reset()

	second := [][]float64{append([]float64(nil), input...)}
	r.Process(second)

	testutil.RequirePlanarEqual(t, second, first)
}

func TestProcessDoesNotAllocate(t *testing.T) {
	r := newPreparedRouter(t, 2)
	mustApply(t, r, SetActive{Stage: "LPF", Enabled: true}, Applied)
	mustApply(t, r, SetActive{Stage: "NOTCH", Enabled: true}, Applied)

	block := testutil.NoiseBlock(14, 2, 512)

	allocs := testing.AllocsPerRun(100, func() {
		r.Process(block)
	})
	if allocs != 0 {
		t.Fatalf("Process allocated %.1f times per run", allocs)
	}
}

func TestConcurrentApplyAndProcess(t *testing.T) {
	r := newPreparedRouter(t, 2)
	source := testutil.NoiseBlock(15, 2, 256)
	block := core.NewPlanar(2, 256)

	var wg sync.WaitGroup
	for w := range 2 {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			names := StageNames()
			for range 2000 {
				name := names[rng.Intn(len(names))]
				if rng.Intn(2) == 0 {
					r.Apply(SetActive{Stage: name, Enabled: rng.Intn(2) == 0})
				} else {
					r.Apply(SetCutoff{Stage: name, Hz: 20 + rng.Float64()*18000})
				}
			}
		}(int64(w))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case <-done:
			if n := r.Snapshot().ActiveCount(); n > MaxActiveStages {
				t.Fatalf("%d active stages", n)
			}
			return
		default:
			for ch := range block {
				copy(block[ch], source[ch])
			}
			r.Process(block)
			for ch := range block {
				testutil.RequireFinite(t, block[ch])
			}
		}
	}
}
