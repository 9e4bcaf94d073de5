package plugin

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/dsp/effects"
)

// AddressWet sets the reverb wet level (float32, clamped to [0,1]); dry is
// 1 - wet.
const AddressWet = "/wet"

// ReverbEffect is a stereo reverb controlled by /wet. Channels 0 and 1 share
// one stereo reverb; every further channel gets its own mono reverb with the
// same settings.
type ReverbEffect struct {
	wet    *Parameter
	params *ParameterSet
	log    *slog.Logger
	obs    Observer

	// reverbs[0] serves channels 0 and 1, reverbs[i] serves channel i+1.
	reverbs []*effects.StereoReverb
	lastWet float64
}

// NewReverbEffect returns a reverb at the default wet level. It passes audio
// through until prepared.
func NewReverbEffect(opts ...Option) *ReverbEffect {
	o := applyOptions(KindReverb, opts)
	wet := NewParameter("wet", "Wetness", 0, 1, 0.5)

	return &ReverbEffect{
		wet:    wet,
		params: NewParameterSet(wet),
		log:    o.logger,
		obs:    o.observer,
	}
}

func (r *ReverbEffect) Name() string { return KindReverb }

func (r *ReverbEffect) Prepare(cfg core.ProcessorConfig) error {
	if err := validChannels(cfg); err != nil {
		return err
	}

	reverbs := make([]*effects.StereoReverb, max(1, cfg.Channels-1))
	for i := range reverbs {
		rv, err := effects.NewStereoReverb(cfg.SampleRate)
		if err != nil {
			return fmt.Errorf("plugin: %w", err)
		}
		reverbs[i] = rv
	}

	r.reverbs = reverbs
	r.lastWet = -1
	r.apply(r.wet.Value())
	r.Reset()

	return nil
}

func (r *ReverbEffect) apply(w float64) {
	p := effects.DefaultReverbParams()
	p.Wet = w
	p.Dry = 1 - w
	for _, rv := range r.reverbs {
		rv.SetParams(p)
	}
	r.lastWet = w
}

// Process runs the reverb in place. Channels beyond the prepared count pass
// through unchanged.
func (r *ReverbEffect) Process(block [][]float64) {
	if len(r.reverbs) == 0 || len(block) == 0 {
		return
	}

	if w := r.wet.Value(); w != r.lastWet {
		r.apply(w)
	}

	if len(block) == 1 {
		r.reverbs[0].ProcessMono(block[0])
		return
	}
	r.reverbs[0].ProcessStereo(block[0], block[1])

	for ch := 2; ch < len(block) && ch-1 < len(r.reverbs); ch++ {
		r.reverbs[ch-1].ProcessMono(block[ch])
	}
}

func (r *ReverbEffect) Reset() {
	for _, rv := range r.reverbs {
		rv.Reset()
	}
}

func (r *ReverbEffect) Parameters() *ParameterSet { return r.params }

func (r *ReverbEffect) HandleMessage(address string, args []any) bool {
	if address != AddressWet {
		r.obs.MessageHandled(KindReverb, address, ResultIgnored)
		return false
	}

	v, ok := singleFloat32(args)
	if !ok {
		r.log.Debug("malformed wet message", "args", args)
		r.obs.MessageHandled(KindReverb, address, ResultDropped)
		return false
	}

	r.wet.Set(v)
	r.log.Debug("wet updated", "value", r.wet.Value())
	r.obs.MessageHandled(KindReverb, address, ResultApplied)

	return true
}
