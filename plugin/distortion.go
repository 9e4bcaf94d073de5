package plugin

import (
	"log/slog"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/dsp/effects"
)

// AddressDrive sets the distortion drive (float32, clamped to [0,1]).
const AddressDrive = "/drive"

// DistortionEffect is a double-tanh waveshaper controlled by /drive.
type DistortionEffect struct {
	drive  *Parameter
	params *ParameterSet
	shaper *effects.Waveshaper
	log    *slog.Logger
	obs    Observer
}

// NewDistortionEffect returns a distortion at the default drive.
func NewDistortionEffect(opts ...Option) *DistortionEffect {
	o := applyOptions(KindDistortion, opts)
	drive := NewParameter("drive", "Drive", 0, 1, effects.DefaultDrive)

	return &DistortionEffect{
		drive:  drive,
		params: NewParameterSet(drive),
		shaper: effects.NewWaveshaper(),
		log:    o.logger,
		obs:    o.observer,
	}
}

func (d *DistortionEffect) Name() string { return KindDistortion }

func (d *DistortionEffect) Prepare(cfg core.ProcessorConfig) error {
	return validChannels(cfg)
}

func (d *DistortionEffect) Process(block [][]float64) {
	d.shaper.SetDrive(d.drive.Value())
	for _, ch := range block {
		d.shaper.ProcessInPlace(ch)
	}
}

func (d *DistortionEffect) Reset() {}

func (d *DistortionEffect) Parameters() *ParameterSet { return d.params }

func (d *DistortionEffect) HandleMessage(address string, args []any) bool {
	if address != AddressDrive {
		d.obs.MessageHandled(KindDistortion, address, ResultIgnored)
		return false
	}

	v, ok := singleFloat32(args)
	if !ok {
		d.log.Debug("malformed drive message", "args", args)
		d.obs.MessageHandled(KindDistortion, address, ResultDropped)
		return false
	}

	d.drive.Set(v)
	d.log.Debug("drive updated", "value", d.drive.Value())
	d.obs.MessageHandled(KindDistortion, address, ResultApplied)

	return true
}
