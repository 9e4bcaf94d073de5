package host

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/plugin"
)

// RenderOption configures an offline render.
type RenderOption func(*renderConfig)

type renderConfig struct {
	blockSize int
	script    *Script
	log       *slog.Logger
}

// WithRenderBlockSize sets the processing block size.
func WithRenderBlockSize(n int) RenderOption {
	return func(c *renderConfig) {
		if n > 0 {
			c.blockSize = n
		}
	}
}

// WithScript schedules control events during the render.
func WithScript(s *Script) RenderOption {
	return func(c *renderConfig) { c.script = s }
}

// WithRenderLogger sets the logger used for event reporting.
func WithRenderLogger(l *slog.Logger) RenderOption {
	return func(c *renderConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// RenderBuffer prepares e for in's format and processes a copy of in block by
// block. Script events are delivered at the first block boundary at or after
// their time; events past the end are not delivered.
func RenderBuffer(e plugin.Effect, in *Audio, opts ...RenderOption) (*Audio, error) {
	if e == nil || in == nil {
		return nil, errors.New("host: nil effect or audio")
	}

	rc := renderConfig{blockSize: core.DefaultProcessorConfig().BlockSize, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&rc)
		}
	}
	log := rc.log.With("component", "render", "effect", e.Name())

	pcfg := core.ProcessorConfig{
		SampleRate: float64(in.SampleRate),
		BlockSize:  rc.blockSize,
		Channels:   len(in.Channels),
	}
	if err := e.Prepare(pcfg); err != nil {
		return nil, fmt.Errorf("host: prepare %s: %w", e.Name(), err)
	}

	out := &Audio{
		SampleRate: in.SampleRate,
		BitDepth:   in.BitDepth,
		Channels:   core.ClonePlanar(in.Channels),
	}

	var events []Event
	if rc.script != nil {
		events = rc.script.Events
	}

	frames := out.Frames()
	views := make([][]float64, len(out.Channels))
	next := 0

	for off := 0; off < frames; off += rc.blockSize {
		for next < len(events) && eventFrame(events[next].At, in.SampleRate) <= off {
			ev := events[next]
			ok := e.HandleMessage(ev.Address, ev.Args)
			log.Debug("script event", "at", ev.At, "frame", off, "address", ev.Address, "accepted", ok)
			next++
		}

		end := min(off+rc.blockSize, frames)
		for ch, buf := range out.Channels {
			views[ch] = buf[off:end]
		}
		e.Process(views)
	}

	if skipped := len(events) - next; skipped > 0 {
		log.Warn("script events past end of input were not applied", "count", skipped)
	}

	return out, nil
}

// Render reads inPath, processes it and writes outPath in the same format.
func Render(e plugin.Effect, inPath, outPath string, opts ...RenderOption) error {
	in, err := ReadWAVFile(inPath)
	if err != nil {
		return err
	}

	out, err := RenderBuffer(e, in, opts...)
	if err != nil {
		return err
	}

	return WriteWAVFile(outPath, out)
}

func eventFrame(at float64, sampleRate int) int {
	return int(math.Ceil(at * float64(sampleRate)))
}
