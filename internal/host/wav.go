package host

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-oscfx/dsp/core"
)

const wavFormatPCM = 1

// ErrInvalidWAV is returned for input that is not a PCM WAV file.
var ErrInvalidWAV = errors.New("host: invalid WAV file")

// Audio is planar float audio with the bit depth it was read at.
type Audio struct {
	SampleRate int
	BitDepth   int
	Channels   [][]float64
}

// Frames returns the per-channel sample count.
func (a *Audio) Frames() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Duration returns the length in seconds.
func (a *Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.SampleRate)
}

// ReadWAV decodes an integer PCM WAV (16, 24 or 32 bit) into [-1, 1) floats.
func ReadWAV(r io.ReadSeeker) (*Audio, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: unsupported format tag %d", ErrInvalidWAV, dec.WavAudioFormat)
	}

	bitDepth := int(dec.BitDepth)
	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, err
	}

	channels := int(dec.NumChans)
	if channels <= 0 || channels > core.MaxChannels {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidWAV, channels)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("host: read PCM: %w", err)
	}

	frames := len(buf.Data) / channels
	out := core.NewPlanar(channels, frames)
	for i := range frames {
		for ch := range channels {
			out[ch][i] = float64(buf.Data[i*channels+ch]) / scale
		}
	}

	return &Audio{SampleRate: int(dec.SampleRate), BitDepth: bitDepth, Channels: out}, nil
}

// WriteWAV encodes a as integer PCM at a.BitDepth. Samples are clipped to
// the representable range and non-finite samples become silence.
func WriteWAV(w io.WriteSeeker, a *Audio) error {
	scale, err := fullScale(a.BitDepth)
	if err != nil {
		return err
	}
	channels := len(a.Channels)
	if channels == 0 {
		return errors.New("host: no channels to write")
	}

	frames := a.Frames()
	data := make([]int, frames*channels)
	for ch, buf := range a.Channels {
		for i := range frames {
			data[i*channels+ch] = quantize(buf[i], scale)
		}
	}

	enc := wav.NewEncoder(w, a.SampleRate, a.BitDepth, channels, wavFormatPCM)
	if err := enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: a.SampleRate, NumChannels: channels},
		SourceBitDepth: a.BitDepth,
	}); err != nil {
		return fmt.Errorf("host: encode WAV: %w", err)
	}

	return enc.Close()
}

// ReadWAVFile opens and decodes path.
func ReadWAVFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}
	defer f.Close()

	return ReadWAV(f)
}

// WriteWAVFile creates path and encodes a into it.
func WriteWAVFile(path string, a *Audio) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}
	if err := WriteWAV(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16, 24, 32:
		return math.Exp2(float64(bitDepth - 1)), nil
	}
	return 0, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
}

func quantize(x, scale float64) int {
	if !core.IsFinite(x) {
		return 0
	}
	v := math.Round(x * scale)
	return int(core.Clamp(v, -scale, scale-1))
}
