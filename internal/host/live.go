package host

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/plugin"
)

const f32Bytes = 4

// BlockObserver is told how long each processed block took.
type BlockObserver interface {
	ObserveBlock(d time.Duration)
}

// BlockSink receives every processed block, planar.
type BlockSink interface {
	Write(block [][]float64)
}

// LiveOption configures a Live host.
type LiveOption func(*Live)

// WithLiveLogger sets the logger.
func WithLiveLogger(l *slog.Logger) LiveOption {
	return func(h *Live) {
		if l != nil {
			h.log = l
		}
	}
}

// WithBlockObserver reports per-block processing time.
func WithBlockObserver(obs BlockObserver) LiveOption {
	return func(h *Live) { h.blocks = obs }
}

// WithSink copies processed audio to sink, e.g. a monitor tap.
func WithSink(sink BlockSink) LiveOption {
	return func(h *Live) { h.sink = sink }
}

// Live runs an Effect on a full-duplex float32 device.
type Live struct {
	effect plugin.Effect
	cfg    core.ProcessorConfig
	log    *slog.Logger
	blocks BlockObserver
	sink   BlockSink

	interleaved []float32
	planar      [][]float64
	views       [][]float64
}

// NewLive prepares e for cfg and preallocates the conversion buffers.
func NewLive(e plugin.Effect, cfg core.ProcessorConfig, opts ...LiveOption) (*Live, error) {
	if e == nil {
		return nil, errors.New("host: nil effect")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}

	h := &Live{
		effect:      e,
		cfg:         cfg,
		log:         slog.Default(),
		interleaved: make([]float32, cfg.BlockSize*cfg.Channels),
		planar:      core.NewPlanar(cfg.Channels, cfg.BlockSize),
		views:       make([][]float64, cfg.Channels),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.log = h.log.With("component", "live", "effect", e.Name())

	if err := e.Prepare(cfg); err != nil {
		return nil, fmt.Errorf("host: prepare %s: %w", e.Name(), err)
	}

	return h, nil
}

// Run opens the default duplex device and processes audio until ctx is
// cancelled.
func (h *Live) Run(ctx context.Context) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		h.log.Debug("malgo", "message", msg)
	})
	if err != nil {
		return fmt.Errorf("host: init audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	devCfg := malgo.DefaultDeviceConfig(malgo.Duplex)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = uint32(h.cfg.Channels)
	devCfg.Playback.Format = malgo.FormatF32
	devCfg.Playback.Channels = uint32(h.cfg.Channels)
	devCfg.SampleRate = uint32(h.cfg.SampleRate)
	devCfg.PeriodSizeInFrames = uint32(h.cfg.BlockSize)

	device, err := malgo.InitDevice(mctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: h.process,
	})
	if err != nil {
		return fmt.Errorf("host: init duplex device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("host: start device: %w", err)
	}
	h.log.Info("audio device started",
		"sample_rate", h.cfg.SampleRate, "block_size", h.cfg.BlockSize, "channels", h.cfg.Channels)

	<-ctx.Done()

	if err := device.Stop(); err != nil {
		return fmt.Errorf("host: stop device: %w", err)
	}
	h.log.Info("audio device stopped")

	return nil
}

// process is the device callback: in and out hold frames interleaved
// float32 frames. A nil or short input is treated as silence.
func (h *Live) process(out, in []byte, frames uint32) {
	channels := h.cfg.Channels
	total := int(frames)

	for off := 0; off < total; off += h.cfg.BlockSize {
		n := min(h.cfg.BlockSize, total-off)
		samples := h.interleaved[:n*channels]

		decodeF32(samples, in, off*channels)
		core.Deinterleave(h.planar, samples, n)
		for ch := range h.views {
			h.views[ch] = h.planar[ch][:n]
		}

		start := time.Now()
		h.effect.Process(h.views)
		if h.blocks != nil {
			h.blocks.ObserveBlock(time.Since(start))
		}
		if h.sink != nil {
			h.sink.Write(h.views)
		}

		core.Interleave(samples, h.views, n)
		encodeF32(out, samples, off*channels)
	}
}

func decodeF32(dst []float32, src []byte, first int) {
	for i := range dst {
		p := (first + i) * f32Bytes
		if p+f32Bytes > len(src) {
			clear(dst[i:])
			return
		}
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[p:]))
	}
}

func encodeF32(dst []byte, src []float32, first int) {
	for i, v := range src {
		p := (first + i) * f32Bytes
		if p+f32Bytes > len(dst) {
			return
		}
		binary.LittleEndian.PutUint32(dst[p:], math.Float32bits(v))
	}
}
