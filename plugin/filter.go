package plugin

import (
	"errors"
	"log/slog"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/dsp/router"
)

// FilterEffect exposes the stage router as an effect.
type FilterEffect struct {
	router *router.Router
	params *ParameterSet
	log    *slog.Logger
	obs    Observer
}

// NewFilterEffect builds a filter effect from cfg.
func NewFilterEffect(cfg Config, opts ...Option) (*FilterEffect, error) {
	o := applyOptions(KindFilter, opts)

	r, err := router.New(
		router.WithNotchBandwidth(cfg.NotchBandwidthHz),
		router.WithResonance(cfg.Resonance),
		router.WithCutoffClamping(cfg.ClampCutoffs),
	)
	if err != nil {
		return nil, err
	}

	return &FilterEffect{
		router: r,
		params: NewParameterSet(),
		log:    o.logger,
		obs:    o.observer,
	}, nil
}

func (f *FilterEffect) Name() string { return KindFilter }

// Router returns the underlying stage router.
func (f *FilterEffect) Router() *router.Router { return f.router }

func (f *FilterEffect) Prepare(cfg core.ProcessorConfig) error {
	return f.router.Prepare(cfg)
}

func (f *FilterEffect) Process(block [][]float64) { f.router.Process(block) }

func (f *FilterEffect) Reset() { f.router.Reset() }

func (f *FilterEffect) Parameters() *ParameterSet { return f.params }

func (f *FilterEffect) HandleMessage(address string, args []any) bool {
	outcome, err := f.router.Handle(address, args)
	if err != nil {
		result := ResultDropped
		if errors.Is(err, router.ErrUnknownAddress) {
			result = ResultIgnored
		}
		f.log.Debug("control message not applied", "address", address, "error", err)
		f.obs.MessageHandled(KindFilter, address, result)
		return false
	}

	f.obs.MessageHandled(KindFilter, address, outcome.String())

	st := f.router.Snapshot()
	switch outcome {
	case router.Applied:
		f.obs.ActiveStagesChanged(st.ActiveCount())
		f.log.Debug("stage state updated",
			"address", address,
			"active", stageList(st),
		)
		return true
	case router.Rejected:
		f.log.Info("stage activation rejected, two stages already active",
			"stage", args[0],
			"active", stageList(st),
		)
	}

	return false
}

func stageList(st router.StageState) []string {
	kinds := st.ActiveStages()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
