package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-oscfx/internal/host"
	"github.com/cwbudde/algo-oscfx/internal/logging"
	"github.com/cwbudde/algo-oscfx/internal/metrics"
	"github.com/cwbudde/algo-oscfx/internal/monitor"
	"github.com/cwbudde/algo-oscfx/internal/mqttbridge"
	"github.com/cwbudde/algo-oscfx/internal/oscio"
	"github.com/cwbudde/algo-oscfx/plugin"
)

func newServeCommand(a *app) *cobra.Command {
	var noAudio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the effect on the default audio device under OSC control",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, !noAudio)
		},
	}

	f := cmd.Flags()
	f.String("listen", "0.0.0.0", "OSC listen host")
	f.Int("port", 0, "OSC UDP port (0 selects the effect's default)")
	f.Bool("mqtt", false, "also accept OSC packets from MQTT")
	f.Bool("metrics", false, "serve Prometheus metrics")
	f.Bool("monitor", false, "stream processed audio as /waveform")
	f.String("state", "", "parameter state file, loaded on start and saved on exit")
	f.BoolVar(&noAudio, "no-audio", false, "run the control servers without an audio device")

	a.bind("osc.listen", f.Lookup("listen"))
	a.bind("osc.port", f.Lookup("port"))
	a.bind("mqtt.enabled", f.Lookup("mqtt"))
	a.bind("metrics.enabled", f.Lookup("metrics"))
	a.bind("monitor.enabled", f.Lookup("monitor"))
	a.bind("state.path", f.Lookup("state"))

	return cmd
}

func (a *app) serve(ctx context.Context, withAudio bool) error {
	s := a.settings
	log := logging.Component(a.log, "serve")

	var m *metrics.Metrics
	var effOpts []plugin.Option
	if s.Metrics.Enabled {
		var err error
		if m, err = metrics.New(); err != nil {
			return err
		}
		effOpts = append(effOpts, plugin.WithObserver(m))
	}

	eff, err := a.newEffect(effOpts...)
	if err != nil {
		return err
	}
	if err := loadStateFile(eff, s.State.Path); err != nil {
		return err
	}

	handler := func(address string, args []any) { eff.HandleMessage(address, args) }

	// Runners start only after all setup has succeeded.
	var runners []func(context.Context) error

	srvOpts := []oscio.ServerOption{oscio.WithLogger(a.log)}
	if m != nil {
		srvOpts = append(srvOpts, oscio.WithDropObserver(m))
	}
	srv, err := oscio.NewServer(s.OSCAddr(), handler, srvOpts...)
	if err != nil {
		return err
	}
	runners = append(runners, srv.Serve)

	if s.MQTT.Enabled {
		bOpts := []mqttbridge.Option{mqttbridge.WithLogger(a.log)}
		if m != nil {
			bOpts = append(bOpts, mqttbridge.WithDropObserver(m))
		}
		bridge, err := mqttbridge.New(mqttbridge.Config{
			Broker:   s.MQTT.Broker,
			Topic:    s.MQTT.Topic,
			ClientID: s.MQTT.ClientID,
			QoS:      byte(s.MQTT.QoS),
			Timeout:  s.MQTT.Timeout,
		}, handler, bOpts...)
		if err != nil {
			return err
		}
		runners = append(runners, bridge.Run)
	}

	if m != nil {
		runners = append(runners, func(ctx context.Context) error {
			return m.Serve(ctx, s.Metrics.Listen, a.log)
		})
	}

	liveOpts := []host.LiveOption{host.WithLiveLogger(a.log)}
	if m != nil {
		liveOpts = append(liveOpts, host.WithBlockObserver(m))
	}

	if s.Monitor.Enabled {
		tap, err := monitor.NewTap(s.Audio.Channels, s.Monitor.Frames, s.Monitor.Blocks, s.Audio.BlockSize)
		if err != nil {
			return err
		}
		client, err := oscio.Dial(s.Monitor.Target)
		if err != nil {
			return err
		}
		defer client.Close()

		streamer, err := monitor.NewStreamer(tap, client, monitor.WithLogger(a.log))
		if err != nil {
			return err
		}
		runners = append(runners, streamer.Run)
		liveOpts = append(liveOpts, host.WithSink(tap))
	}

	if withAudio {
		live, err := host.NewLive(eff, s.ProcessorConfig(), liveOpts...)
		if err != nil {
			return err
		}
		runners = append(runners, live.Run)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runners {
		g.Go(func() error { return run(gctx) })
	}

	log.Info("serving", "effect", eff.Name(), "osc", s.OSCAddr(),
		"mqtt", s.MQTT.Enabled, "metrics", s.Metrics.Enabled, "monitor", s.Monitor.Enabled, "audio", withAudio)

	runErr := g.Wait()

	if err := saveStateFile(eff, s.State.Path); err != nil {
		log.Error("saving state failed", "path", s.State.Path, "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("serve: %w", runErr)
	}
	log.Info("stopped")

	return nil
}

// loadStateFile restores parameters from path. A missing file is not an
// error.
func loadStateFile(e plugin.Effect, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	return plugin.LoadState(e, data)
}

func saveStateFile(e plugin.Effect, path string) error {
	if path == "" {
		return nil
	}
	data, err := plugin.SaveState(e)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
