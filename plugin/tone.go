package plugin

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/dsp/effects"
)

// Tone control addresses.
const (
	AddressFreq  = "/freq"  // float32 Hz, clamped to [20, 2000]
	AddressWave  = "/wave"  // int32 1=sine 2=triangle 3=square
	AddressReset = "/reset" // no arguments; restarts the phase
)

// ToneEffect replaces its input with an oscillator signal.
type ToneEffect struct {
	freq   *Parameter
	wave   *Parameter
	level  *Parameter
	params *ParameterSet
	log    *slog.Logger
	obs    Observer

	resetPhase atomic.Bool
	osc        *effects.Oscillator
}

// NewToneEffect returns a 440 Hz sine tone at level 0.5.
func NewToneEffect(opts ...Option) *ToneEffect {
	o := applyOptions(KindTone, opts)

	freq := NewParameter("freq", "Frequency", 20, 2000, 440)
	wave := NewParameter("wave", "Waveform", float64(effects.Sine), float64(effects.Square), float64(effects.Sine))
	level := NewParameter("level", "Level", 0, 1, 0.5)

	return &ToneEffect{
		freq:   freq,
		wave:   wave,
		level:  level,
		params: NewParameterSet(freq, wave, level),
		log:    o.logger,
		obs:    o.observer,
	}
}

func (t *ToneEffect) Name() string { return KindTone }

func (t *ToneEffect) Prepare(cfg core.ProcessorConfig) error {
	if err := validChannels(cfg); err != nil {
		return err
	}

	osc, err := effects.NewOscillator(cfg.SampleRate, t.freq.Value())
	if err != nil {
		return fmt.Errorf("plugin: %w", err)
	}
	t.osc = osc

	return nil
}

func (t *ToneEffect) Process(block [][]float64) {
	if t.osc == nil || len(block) == 0 {
		return
	}

	if t.resetPhase.Swap(false) {
		t.osc.ResetPhase()
	}
	t.osc.SetFrequency(t.freq.Value())
	t.osc.SetWaveform(effects.Waveform(math.Round(t.wave.Value())))

	t.osc.Fill(block[0], t.level.Value())
	for _, ch := range block[1:] {
		core.CopyInto(ch, block[0])
	}
}

func (t *ToneEffect) Reset() {
	if t.osc != nil {
		t.osc.ResetPhase()
	}
}

func (t *ToneEffect) Parameters() *ParameterSet { return t.params }

func (t *ToneEffect) HandleMessage(address string, args []any) bool {
	ok := t.handle(address, args)

	result := ResultApplied
	switch {
	case ok:
		t.log.Debug("tone updated",
			"address", address,
			"freq", t.freq.Value(),
			"wave", effects.Waveform(t.wave.Value()).String(),
		)
	case address == AddressFreq || address == AddressWave || address == AddressReset:
		result = ResultDropped
		t.log.Debug("malformed tone message", "address", address, "args", args)
	default:
		result = ResultIgnored
	}
	t.obs.MessageHandled(KindTone, address, result)

	return ok
}

func (t *ToneEffect) handle(address string, args []any) bool {
	switch address {
	case AddressFreq:
		hz, ok := singleFloat32(args)
		if !ok {
			return false
		}
		t.freq.Set(hz)
		return true

	case AddressWave:
		w, ok := singleInt32(args)
		if !ok || !effects.Waveform(w).Valid() {
			return false
		}
		t.wave.Set(float64(w))
		t.resetPhase.Store(true)
		return true

	case AddressReset:
		if len(args) != 0 {
			return false
		}
		t.resetPhase.Store(true)
		return true
	}

	return false
}
