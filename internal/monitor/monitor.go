// Package monitor streams processed audio to an OSC peer as /waveform
// packets. The audio thread writes into a lock-tolerant ring buffer through a
// Tap; a Streamer goroutine drains fixed-size frames and sends them.
package monitor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-vecmath"
	"github.com/smallnest/ringbuffer"
)

// AddressWaveform is the outbound address. Arguments are int32 channel
// count, int32 frame count, then channels*frames float32 samples grouped by
// channel: every sample of channel 0, then every sample of channel 1.
const AddressWaveform = "/waveform"

const bytesPerSample = 4

// TapOption configures a Tap.
type TapOption func(*Tap)

// WithGain scales samples before they enter the buffer.
func WithGain(g float64) TapOption {
	return func(t *Tap) { t.gain = g }
}

// Tap copies processed blocks into a ring buffer as interleaved frames so
// that a partial read never splits channels. Write never blocks and never
// allocates.
type Tap struct {
	rb       *ringbuffer.RingBuffer
	channels int
	frames   int
	maxBlock int
	gain     float64

	scratch []float64
	encoded []byte
	dropped atomic.Uint64
}

// NewTap returns a tap for channels interleaved channels. The buffer holds
// blocks frames of frames samples each; maxBlock is the largest block
// passed to Write in one chunk.
func NewTap(channels, frames, blocks, maxBlock int, opts ...TapOption) (*Tap, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("monitor: channels must be > 0: %d", channels)
	}
	if frames <= 0 || blocks <= 0 {
		return nil, fmt.Errorf("monitor: frames and blocks must be > 0: %d, %d", frames, blocks)
	}
	if maxBlock <= 0 {
		return nil, fmt.Errorf("monitor: max block must be > 0: %d", maxBlock)
	}

	t := &Tap{
		rb:       ringbuffer.New(channels * frames * blocks * bytesPerSample),
		channels: channels,
		frames:   frames,
		maxBlock: maxBlock,
		gain:     1,
		scratch:  make([]float64, maxBlock),
		encoded:  make([]byte, channels*maxBlock*bytesPerSample),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t, nil
}

// Channels returns the interleaved channel count.
func (t *Tap) Channels() int { return t.channels }

// Frames returns the frame length the streamer sends.
func (t *Tap) Frames() int { return t.frames }

// Dropped returns how many chunks were discarded because the buffer was
// full or busy.
func (t *Tap) Dropped() uint64 { return t.dropped.Load() }

// Write appends block (planar) to the buffer. Missing channels are written
// as silence. A chunk that does not fit whole is dropped.
func (t *Tap) Write(block [][]float64) {
	n := 0
	if len(block) > 0 {
		n = len(block[0])
	}

	for off := 0; off < n; off += t.maxBlock {
		m := min(t.maxBlock, n-off)
		t.writeChunk(block, off, m)
	}
}

func (t *Tap) writeChunk(block [][]float64, off, n int) {
	for ch := range t.channels {
		src := t.scratch[:n]
		if ch < len(block) && len(block[ch]) >= off+n {
			vecmath.ScaleBlock(src, block[ch][off:off+n], t.gain)
		} else {
			clear(src)
		}
		for i, v := range src {
			idx := (i*t.channels + ch) * bytesPerSample
			binary.LittleEndian.PutUint32(t.encoded[idx:], math.Float32bits(float32(v)))
		}
	}

	data := t.encoded[:n*t.channels*bytesPerSample]
	if t.rb.Free() < len(data) {
		t.dropped.Add(1)
		return
	}
	if _, err := t.rb.TryWrite(data); err != nil {
		t.dropped.Add(1)
	}
}

// readFrame fills dst (channels*frames samples) from the buffer. It reports
// false when a whole frame is not yet available.
func (t *Tap) readFrame(dst []float32, raw []byte) bool {
	if t.rb.Length() < len(raw) {
		return false
	}

	n, err := t.rb.Read(raw)
	if err != nil || n != len(raw) {
		return false
	}

	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerSample:]))
	}

	return true
}

// Sender delivers one OSC message. *oscio.Client satisfies it.
type Sender interface {
	Send(address string, args ...any) error
}

// StreamerOption configures a Streamer.
type StreamerOption func(*Streamer)

// WithInterval sets how often the buffer is polled.
func WithInterval(d time.Duration) StreamerOption {
	return func(s *Streamer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the streamer logger.
func WithLogger(l *slog.Logger) StreamerOption {
	return func(s *Streamer) {
		if l != nil {
			s.log = l
		}
	}
}

// Streamer drains a Tap and sends /waveform messages.
type Streamer struct {
	tap      *Tap
	out      Sender
	interval time.Duration
	log      *slog.Logger

	samples []float32
	raw     []byte
	args    []any
}

// NewStreamer returns a streamer reading from tap and sending to out.
func NewStreamer(tap *Tap, out Sender, opts ...StreamerOption) (*Streamer, error) {
	if tap == nil || out == nil {
		return nil, errors.New("monitor: tap and sender are required")
	}

	size := tap.channels * tap.frames
	s := &Streamer{
		tap:      tap,
		out:      out,
		interval: 10 * time.Millisecond,
		log:      slog.Default(),
		samples:  make([]float32, size),
		raw:      make([]byte, size*bytesPerSample),
		args:     make([]any, 2+size),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.log = s.log.With("component", "monitor")

	return s, nil
}

// Flush sends every whole frame currently buffered and returns how many
// were sent.
func (s *Streamer) Flush() (int, error) {
	channels, frames := s.tap.channels, s.tap.frames
	sent := 0
	for s.tap.readFrame(s.samples, s.raw) {
		s.args[0] = int32(channels)
		s.args[1] = int32(frames)
		for i, v := range s.samples {
			ch, n := i%channels, i/channels
			s.args[2+ch*frames+n] = v
		}
		if err := s.out.Send(AddressWaveform, s.args...); err != nil {
			return sent, fmt.Errorf("monitor: send waveform: %w", err)
		}
		sent++
	}
	return sent, nil
}

// Run polls the tap until ctx is cancelled. Send errors are logged and do
// not stop the loop.
func (s *Streamer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Flush(); err != nil {
				s.log.Warn("waveform send failed", "error", err)
			}
		}
	}
}
