package core

import (
	"fmt"
	"math"
)

// MaxChannels bounds the channel count a processor can be prepared for.
const MaxChannels = 32

// ProcessorConfig is the prepare-time contract between an audio host and a
// processor: sample rate, the largest block the host will deliver, and the
// number of planar channels.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int
	Channels   int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns a stereo 48 kHz config with 512-sample blocks.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 48000,
		BlockSize:  512,
		Channels:   2,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 && !math.IsInf(sampleRate, 0) {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the maximum processing block size.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// WithChannels sets the planar channel count.
func WithChannels(channels int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if channels > 0 && channels <= MaxChannels {
			cfg.Channels = channels
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Validate reports whether the config can be used to prepare a processor.
func (c ProcessorConfig) Validate() error {
	if c.SampleRate <= 0 || math.IsNaN(c.SampleRate) || math.IsInf(c.SampleRate, 0) {
		return fmt.Errorf("processor sample rate must be > 0 and finite: %f", c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("processor block size must be > 0: %d", c.BlockSize)
	}
	if c.Channels <= 0 || c.Channels > MaxChannels {
		return fmt.Errorf("processor channels must be in [1, %d]: %d", MaxChannels, c.Channels)
	}
	return nil
}

// Nyquist returns half the sample rate.
func (c ProcessorConfig) Nyquist() float64 {
	return c.SampleRate / 2
}
