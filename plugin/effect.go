package plugin

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/dsp/filter/svf"
	"github.com/cwbudde/algo-oscfx/dsp/router"
)

// Effect is one OSC-controlled audio processor.
//
// Prepare, Process and Reset are called from the audio thread; HandleMessage
// may be called concurrently from any number of control goroutines.
type Effect interface {
	Name() string
	Prepare(cfg core.ProcessorConfig) error
	Process(block [][]float64)
	// HandleMessage applies an OSC message and reports whether it was
	// recognized and accepted.
	HandleMessage(address string, args []any) bool
	Reset()
	Parameters() *ParameterSet
}

// Effect kinds accepted by New.
const (
	KindFilter     = "filter"
	KindReverb     = "reverb"
	KindDistortion = "distortion"
	KindTone       = "tone"
)

var (
	// ErrUnknownEffect is returned by New for an unrecognized kind.
	ErrUnknownEffect = errors.New("plugin: unknown effect")
	// ErrStateMismatch is returned by LoadState for state saved by a
	// different effect.
	ErrStateMismatch = errors.New("plugin: state belongs to another effect")
)

var defaultPorts = map[string]int{
	KindFilter:     9001,
	KindReverb:     9002,
	KindDistortion: 9003,
	KindTone:       9004,
}

// Kinds returns the effect kinds in port order.
func Kinds() []string {
	return []string{KindFilter, KindReverb, KindDistortion, KindTone}
}

// DefaultPort returns the UDP control port conventionally used by kind.
func DefaultPort(kind string) (int, bool) {
	p, ok := defaultPorts[kind]
	return p, ok
}

// Config carries the variant-specific settings used by New.
type Config struct {
	NotchBandwidthHz float64
	Resonance        float64
	ClampCutoffs     bool
}

// DefaultConfig returns the settings every variant starts with.
func DefaultConfig() Config {
	return Config{
		NotchBandwidthHz: router.DefaultNotchBandwidthHz,
		Resonance:        svf.DefaultResonance,
		ClampCutoffs:     true,
	}
}

// Option configures ambient collaborators of an effect.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
}

// WithLogger sets the logger used on the control path.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the control-path event sink.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func applyOptions(kind string, opts []Option) options {
	o := options{
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.logger = o.logger.With("component", "plugin", "effect", kind)
	return o
}

// New builds the effect named kind.
func New(kind string, cfg Config, opts ...Option) (Effect, error) {
	switch kind {
	case KindFilter:
		return NewFilterEffect(cfg, opts...)
	case KindReverb:
		return NewReverbEffect(opts...), nil
	case KindDistortion:
		return NewDistortionEffect(opts...), nil
	case KindTone:
		return NewToneEffect(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownEffect, kind, Kinds())
	}
}

// singleFloat32 extracts the only argument of a one-float message.
func singleFloat32(args []any) (float64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	v, ok := args[0].(float32)
	return float64(v), ok
}

// singleInt32 extracts the only argument of a one-int message.
func singleInt32(args []any) (int32, bool) {
	if len(args) != 1 {
		return 0, false
	}
	v, ok := args[0].(int32)
	return v, ok
}

func validChannels(cfg core.ProcessorConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("plugin: %w", err)
	}
	return nil
}
