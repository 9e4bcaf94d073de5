package plugin

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/dsp/router"
	"github.com/cwbudde/algo-oscfx/dsp/spectrum"
	"github.com/cwbudde/algo-oscfx/internal/testutil"
)

type recordingObserver struct {
	mu      sync.Mutex
	results []string
	active  []int
}

func (r *recordingObserver) MessageHandled(_, address, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, address+" "+result)
}

func (r *recordingObserver) ActiveStagesChanged(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = append(r.active, n)
}

func testConfig(channels int) core.ProcessorConfig {
	return core.ApplyProcessorOptions(
		core.WithSampleRate(48000),
		core.WithBlockSize(512),
		core.WithChannels(channels),
	)
}

func TestNewKinds(t *testing.T) {
	for _, kind := range Kinds() {
		e, err := New(kind, DefaultConfig())
		require.NoError(t, err, kind)
		assert.Equal(t, kind, e.Name())
		require.NoError(t, e.Prepare(testConfig(2)))

		port, ok := DefaultPort(kind)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, port, 9001)
	}

	_, err := New("chorus", DefaultConfig())
	require.ErrorIs(t, err, ErrUnknownEffect)
}

func TestDefaultPorts(t *testing.T) {
	want := map[string]int{KindFilter: 9001, KindReverb: 9002, KindDistortion: 9003, KindTone: 9004}
	for kind, port := range want {
		got, ok := DefaultPort(kind)
		require.True(t, ok)
		assert.Equal(t, port, got, kind)
	}
}

func TestNewFilterEffectInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resonance = 0
	_, err := NewFilterEffect(cfg)
	require.Error(t, err)
}

func TestParameterClamping(t *testing.T) {
	p := NewParameter("freq", "Frequency", 2000, 20, 5000)

	assert.Equal(t, 20.0, p.Min)
	assert.Equal(t, 2000.0, p.Max)
	assert.Equal(t, 2000.0, p.Default)

	p.Set(-3)
	assert.Equal(t, 20.0, p.Value())

	p.Set(math.NaN())
	assert.Equal(t, 20.0, p.Value())

	p.SetNormalized(0.5)
	assert.InDelta(t, 1010.0, p.Value(), 1e-9)
	assert.InDelta(t, 0.5, p.Normalized(), 1e-12)

	p.Reset()
	assert.Equal(t, 2000.0, p.Value())
}

func TestParameterSetIgnoresDuplicates(t *testing.T) {
	a := NewParameter("x", "X", 0, 1, 0.1)
	b := NewParameter("x", "X2", 0, 1, 0.9)

	s := NewParameterSet(a, nil, b)
	require.Equal(t, 1, s.Len())
	assert.Same(t, a, s.Get("x"))
	assert.Nil(t, s.Get("y"))
}

func TestFilterEffectScenario(t *testing.T) {
	obs := &recordingObserver{}
	f, err := NewFilterEffect(DefaultConfig(), WithObserver(obs))
	require.NoError(t, err)

	assert.True(t, f.HandleMessage(router.AddressActive, []any{"NOTCH", int32(1)}))
	assert.True(t, f.HandleMessage(router.AddressActive, []any{"BPF", int32(1)}))
	assert.False(t, f.HandleMessage(router.AddressActive, []any{"LPF", int32(1)}))
	assert.False(t, f.HandleMessage(router.AddressActive, []any{float32(1), int32(1)}))
	assert.False(t, f.HandleMessage("/filter/gain", []any{"LPF", float32(1)}))

	st := f.Router().Snapshot()
	assert.Equal(t, []router.StageKind{router.Bandpass, router.Notch}, st.ActiveStages())

	assert.Equal(t, []string{
		"/filter/active applied",
		"/filter/active applied",
		"/filter/active rejected",
		"/filter/active dropped",
		"/filter/gain ignored",
	}, obs.results)
	assert.Equal(t, []int{1, 2}, obs.active)
	assert.Zero(t, f.Parameters().Len())
}

func TestDistortionEffect(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDistortionEffect(WithObserver(obs))
	require.NoError(t, d.Prepare(testConfig(2)))

	assert.Equal(t, 0.5, d.Parameters().Get("drive").Value())

	assert.True(t, d.HandleMessage(AddressDrive, []any{float32(3)}))
	assert.Equal(t, 1.0, d.Parameters().Get("drive").Value())

	assert.True(t, d.HandleMessage(AddressDrive, []any{float32(-1)}))
	assert.Equal(t, 0.0, d.Parameters().Get("drive").Value())

	assert.False(t, d.HandleMessage(AddressDrive, []any{0.5}))
	assert.False(t, d.HandleMessage(AddressDrive, []any{float32(0.5), float32(0.5)}))
	assert.False(t, d.HandleMessage("/wet", []any{float32(0.5)}))
	assert.Equal(t, 0.0, d.Parameters().Get("drive").Value())

	block := testutil.NoiseBlock(1, 2, 1024)
	for ch := range block {
		for i := range block[ch] {
			block[ch][i] *= 10
		}
	}
	d.Process(block)

	// Drive 0: makeup 1/0.3 on top of tanh(1.5 tanh(1.5 x)).
	limit := math.Tanh(1.5) / 0.3
	for ch := range block {
		for _, v := range block[ch] {
			require.LessOrEqual(t, math.Abs(v), limit+1e-12)
		}
	}

	assert.Equal(t, []string{
		"/drive applied", "/drive applied", "/drive dropped", "/drive dropped", "/wet ignored",
	}, obs.results)
}

func TestReverbEffect(t *testing.T) {
	r := NewReverbEffect()

	// Unprepared: passthrough.
	block := testutil.NoiseBlock(2, 2, 256)
	want := core.ClonePlanar(block)
	r.Process(block)
	testutil.RequirePlanarEqual(t, block, want)

	require.NoError(t, r.Prepare(testConfig(2)))

	assert.True(t, r.HandleMessage(AddressWet, []any{float32(2)}))
	assert.Equal(t, 1.0, r.Parameters().Get("wet").Value())
	assert.False(t, r.HandleMessage(AddressWet, []any{int32(1)}))

	assert.True(t, r.HandleMessage(AddressWet, []any{float32(0)}))
	require.NoError(t, r.Prepare(testConfig(2)))

	// Wet 0 leaves only the dry path, scaled by the Freeverb dry factor.
	block = testutil.NoiseBlock(3, 2, 512)
	want = core.ClonePlanar(block)
	r.Process(block)
	for ch := range block {
		for i := range block[ch] {
			require.InDelta(t, 2*want[ch][i], block[ch][i], 1e-12)
		}
	}
}

func TestReverbEffectExtraChannelsMatchDryGain(t *testing.T) {
	r := NewReverbEffect()
	require.True(t, r.HandleMessage(AddressWet, []any{float32(0)}))
	require.NoError(t, r.Prepare(testConfig(4)))

	block := testutil.NoiseBlock(4, 4, 512)
	want := core.ClonePlanar(block)
	r.Process(block)
	for ch := range block {
		for i := range block[ch] {
			require.InDelta(t, 2*want[ch][i], block[ch][i], 1e-12, "channel %d", ch)
		}
	}

	// Wet: every channel rings out, and channels past the pair stay
	// independent of each other.
	require.True(t, r.HandleMessage(AddressWet, []any{float32(1)}))
	r.Reset()
	block = [][]float64{
		make([]float64, 9600), make([]float64, 9600),
		testutil.Impulse(9600, 0), make([]float64, 9600),
	}
	r.Process(block)
	assert.NotZero(t, testutil.RMS(block[2][4800:]), "expected a tail on channel 2")
	assert.Zero(t, testutil.RMS(block[3]), "channel 3 must not hear channel 2")
}

func TestReverbEffectMono(t *testing.T) {
	r := NewReverbEffect()
	require.NoError(t, r.Prepare(testConfig(1)))

	block := [][]float64{testutil.Impulse(48000, 0)}
	r.Process(block)
	testutil.RequireFinite(t, block[0])

	assert.NotZero(t, testutil.RMS(block[0][4800:]), "expected a reverb tail")
}

func TestToneEffect(t *testing.T) {
	tone := NewToneEffect()
	require.NoError(t, tone.Prepare(testConfig(2)))

	assert.True(t, tone.HandleMessage(AddressFreq, []any{float32(1000)}))
	assert.True(t, tone.HandleMessage(AddressFreq, []any{float32(1e5)}))
	assert.Equal(t, 2000.0, tone.Parameters().Get("freq").Value())
	assert.True(t, tone.HandleMessage(AddressFreq, []any{float32(1000)}))

	assert.False(t, tone.HandleMessage(AddressWave, []any{int32(4)}))
	assert.False(t, tone.HandleMessage(AddressWave, []any{float32(2)}))
	assert.True(t, tone.HandleMessage(AddressWave, []any{int32(1)}))
	assert.False(t, tone.HandleMessage(AddressReset, []any{int32(1)}))
	assert.True(t, tone.HandleMessage(AddressReset, nil))

	block := core.NewPlanar(2, 4800)
	tone.Process(block)

	testutil.RequirePlanarEqual(t, [][]float64{block[1]}, [][]float64{block[0]})

	amp, err := spectrum.ToneAmplitude(block[0], 1000, 48000)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, amp, 1e-3)
}

func TestSaveLoadState(t *testing.T) {
	src := NewToneEffect()
	src.Parameters().Get("freq").Set(880)
	src.Parameters().Get("wave").Set(3)

	data, err := SaveState(src)
	require.NoError(t, err)
	assert.Contains(t, string(data), "effect: tone")

	dst := NewToneEffect()
	require.NoError(t, LoadState(dst, data))
	assert.Equal(t, src.Parameters().Values(), dst.Parameters().Values())

	err = LoadState(NewDistortionEffect(), data)
	require.ErrorIs(t, err, ErrStateMismatch)

	require.Error(t, LoadState(dst, []byte("effect: [")))
}

func TestLoadStateClampsAndIgnoresUnknown(t *testing.T) {
	d := NewDistortionEffect()
	require.NoError(t, LoadState(d, []byte("effect: distortion\nparams:\n  drive: 7\n  bogus: 1\n")))
	assert.Equal(t, 1.0, d.Parameters().Get("drive").Value())
}
