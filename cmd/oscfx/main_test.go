package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/internal/host"
	"github.com/cwbudde/algo-oscfx/internal/oscio"
	"github.com/cwbudde/algo-oscfx/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStagesCommand(t *testing.T) {
	out, err := run(t, "stages")
	require.NoError(t, err)

	for _, want := range []string{"LPF", "HPF", "BPF", "NOTCH", "filter", "9001", "reverb", "9002", "distortion", "9003"} {
		assert.Contains(t, out, want)
	}
}

func TestInvalidEffectFails(t *testing.T) {
	_, err := run(t, "--effect", "chorus", "stages")
	require.Error(t, err)
}

func TestSendCommand(t *testing.T) {
	got := make(chan []any, 1)
	srv, err := oscio.NewServer("127.0.0.1:0", func(address string, args []any) {
		if address == "/filter/cutoff" {
			got <- args
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()
	<-srv.Ready()

	_, err = run(t, "send", "--to", srv.Addr().String(), "/filter/cutoff", "LPF", "500.0")
	require.NoError(t, err)

	select {
	case args := <-got:
		assert.Equal(t, []any{"LPF", float32(500)}, args)
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestSendRejectsBadAddress(t *testing.T) {
	_, err := run(t, "send", "--to", "127.0.0.1:9", "filter")
	require.Error(t, err)
}

func TestRenderAndAnalyze(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	script := filepath.Join(dir, "events.yaml")

	const sr = 48000
	sig := testutil.DeterministicSine(5000, sr, 0.5, sr/2)
	require.NoError(t, host.WriteWAVFile(in, &host.Audio{SampleRate: sr, BitDepth: 16, Channels: [][]float64{sig}}))
	require.NoError(t, os.WriteFile(script, []byte(`
events:
  - {at: 0, address: /filter/cutoff, args: [LPF, 500.0]}
  - {at: 0, address: /filter/active, args: [LPF, 1]}
`), 0o600))

	_, err := run(t, "render", "--script", script, in, out)
	require.NoError(t, err)

	rendered, err := host.ReadWAVFile(out)
	require.NoError(t, err)
	tail := rendered.Channels[0][sr/4:]
	assert.Less(t, testutil.RMS(tail), 0.1*testutil.RMS(sig[sr/4:]))
	assert.Equal(t, core.DefaultProcessorConfig().SampleRate, float64(rendered.SampleRate))

	report, err := run(t, "analyze", "--tone", "5000", "--thd", "0", out)
	require.NoError(t, err)
	assert.Contains(t, report, "TONE (Hz)")
	assert.Contains(t, report, "high")
	assert.Contains(t, report, "THD (dB)")
	assert.Contains(t, report, "RMS (dBFS)")
}
