package router

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/dsp/filter/svf"
)

// Outcome reports what Apply did with a message.
type Outcome int

const (
	// Ignored means the message named no known stage; state is unchanged.
	Ignored Outcome = iota
	// Applied means the state was updated.
	Applied
	// Rejected means an activation would have exceeded MaxActiveStages and
	// was reverted; state is unchanged.
	Rejected
)

// String returns a lower-case label suitable for logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Applied:
		return "applied"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Option mutates construction-time parameters.
type Option func(*config) error

type config struct {
	notchBandwidth float64
	resonance      float64
	clampCutoffs   bool
}

// WithNotchBandwidth sets the notch edge distance in Hz.
func WithNotchBandwidth(hz float64) Option {
	return func(cfg *config) error {
		if hz < 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
			return fmt.Errorf("router notch bandwidth must be >= 0 and finite: %f", hz)
		}
		cfg.notchBandwidth = hz
		return nil
	}
}

// WithResonance sets the quality factor shared by every stage filter.
func WithResonance(q float64) Option {
	return func(cfg *config) error {
		if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
			return fmt.Errorf("router resonance must be > 0 and finite: %f", q)
		}
		cfg.resonance = q
		return nil
	}
}

// WithCutoffClamping controls whether LPF/HPF/BPF cutoffs are clamped to
// [MinAudibleHz, MaxAudibleHz] when a block is processed. Stored values are
// never clamped.
func WithCutoffClamping(enabled bool) Option {
	return func(cfg *config) error {
		cfg.clampCutoffs = enabled
		return nil
	}
}

// channelFilters are the persistent filter instances of one channel.
type channelFilters struct {
	stage     [Notch]*svf.Filter
	notchLow  *svf.Filter
	notchHigh *svf.Filter
}

// Router applies the active filter stages to audio blocks.
//
// Apply, Handle and Snapshot may be called from any goroutine. Prepare,
// Process and Reset belong to the audio thread and must not run
// concurrently with each other.
type Router struct {
	writeMu sync.Mutex
	state   atomic.Pointer[StageState]

	notchBandwidth float64
	resonance      float64
	clampCutoffs   bool

	cfg      core.ProcessorConfig
	channels []channelFilters
	// seen holds the Activations counters of the last processed snapshot.
	seen [NumStages]uint64
}

// New returns a Router with the default stage state. It passes audio
// through unchanged until Prepare is called.
func New(opts ...Option) (*Router, error) {
	cfg := config{
		notchBandwidth: DefaultNotchBandwidthHz,
		resonance:      svf.DefaultResonance,
		clampCutoffs:   true,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		err := opt(&cfg)
		if err != nil {
			return nil, err
		}
	}

	r := &Router{
		notchBandwidth: cfg.notchBandwidth,
		resonance:      cfg.resonance,
		clampCutoffs:   cfg.clampCutoffs,
	}
	initial := DefaultStageState()
	r.state.Store(&initial)

	return r, nil
}

// Snapshot returns the currently published stage state.
func (r *Router) Snapshot() StageState {
	return *r.state.Load()
}

// NotchBandwidth returns the notch edge distance in Hz.
func (r *Router) NotchBandwidth() float64 { return r.notchBandwidth }

// Handle decodes and applies one OSC message. A non-nil error explains why
// the message was dropped; the state is unchanged in that case.
func (r *Router) Handle(address string, args []any) (Outcome, error) {
	msg, err := Decode(address, args)
	if err != nil {
		return Ignored, err
	}
	return r.Apply(msg), nil
}

// Apply mutates the stage state according to msg and publishes the result.
func (r *Router) Apply(msg ControlMessage) Outcome {
	if msg == nil {
		return Ignored
	}
	kind, ok := ParseStageKind(msg.StageName())
	if !ok {
		return Ignored
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	next := *r.state.Load()

	switch m := msg.(type) {
	case SetCutoff:
		next.CutoffHz[kind] = m.Hz

	case SetActive:
		if m.Enabled && !next.Active[kind] {
			next.Activations[kind]++
		}
		next.Active[kind] = m.Enabled
		if next.ActiveCount() > MaxActiveStages {
			return Rejected
		}

	default:
		return Ignored
	}

	r.state.Store(&next)
	return Applied
}

// Prepare allocates per-channel filters for cfg. It discards filter state
// and must be called before processing and whenever the host changes
// sample rate, block size or channel count.
func (r *Router) Prepare(cfg core.ProcessorConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("router: %w", err)
	}

	channels := make([]channelFilters, cfg.Channels)
	for ch := range channels {
		for k := Lowpass; k < Notch; k++ {
			f, err := r.newFilter(cfg.SampleRate, stageMode(k))
			if err != nil {
				return err
			}
			channels[ch].stage[k] = f
		}

		low, err := r.newFilter(cfg.SampleRate, svf.Lowpass)
		if err != nil {
			return err
		}
		high, err := r.newFilter(cfg.SampleRate, svf.Highpass)
		if err != nil {
			return err
		}
		channels[ch].notchLow = low
		channels[ch].notchHigh = high
	}

	r.cfg = cfg
	r.channels = channels
	r.seen = r.state.Load().Activations

	return nil
}

// Reset clears all filter state without reallocating.
func (r *Router) Reset() {
	for ch := range r.channels {
		r.channels[ch].reset()
	}
	r.seen = r.state.Load().Activations
}

// Process applies the active stages to block in place. Channels beyond the
// prepared channel count are left untouched. Zero-alloc.
func (r *Router) Process(block [][]float64) {
	st := r.state.Load()

	var fresh [NumStages]bool
	for k := range st.Active {
		fresh[k] = st.Active[k] && st.Activations[k] != r.seen[k]
	}
	r.seen = st.Activations

	if st.ActiveCount() == 0 {
		return
	}

	n := min(len(block), len(r.channels))
	for ch := range n {
		r.processChannel(&r.channels[ch], block[ch], st, &fresh)
	}
}

func (r *Router) processChannel(cf *channelFilters, buf []float64, st *StageState, fresh *[NumStages]bool) {
	for k := Lowpass; k < NumStages; k++ {
		if !st.Active[k] {
			continue
		}

		if k == Notch {
			low, high := NotchEdges(st.CutoffHz[Notch], r.notchBandwidth)
			if fresh[Notch] {
				cf.notchLow.Reset()
				cf.notchHigh.Reset()
			}
			cf.notchLow.SetCutoff(low)
			cf.notchLow.ProcessInPlace(buf)
			cf.notchHigh.SetCutoff(high)
			cf.notchHigh.ProcessInPlace(buf)
			continue
		}

		f := cf.stage[k]
		if fresh[k] {
			f.Reset()
		}
		f.SetCutoff(r.stageCutoff(st.CutoffHz[k]))
		f.ProcessInPlace(buf)
	}
}

func (r *Router) stageCutoff(hz float64) float64 {
	if r.clampCutoffs {
		return clampAudible(hz)
	}
	return hz
}

func (r *Router) newFilter(sampleRate float64, mode svf.Mode) (*svf.Filter, error) {
	f, err := svf.New(sampleRate,
		svf.WithMode(mode),
		svf.WithCutoff(DefaultCutoffHz),
		svf.WithResonance(r.resonance),
	)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	return f, nil
}

func (cf *channelFilters) reset() {
	for _, f := range cf.stage {
		f.Reset()
	}
	cf.notchLow.Reset()
	cf.notchHigh.Reset()
}

func stageMode(k StageKind) svf.Mode {
	switch k {
	case Highpass:
		return svf.Highpass
	case Bandpass:
		return svf.Bandpass
	default:
		return svf.Lowpass
	}
}
