// Package config loads oscfx settings from defaults, an optional YAML file,
// OSCFX_* environment variables and bound command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cwbudde/algo-oscfx/dsp/core"
	"github.com/cwbudde/algo-oscfx/internal/logging"
	"github.com/cwbudde/algo-oscfx/plugin"
)

// EnvPrefix is prepended to every environment variable, e.g.
// OSCFX_OSC_PORT for osc.port.
const EnvPrefix = "OSCFX"

// Settings is the complete runtime configuration.
type Settings struct {
	Effect  string          `mapstructure:"effect"`
	Log     LogSettings     `mapstructure:"log"`
	OSC     OSCSettings     `mapstructure:"osc"`
	MQTT    MQTTSettings    `mapstructure:"mqtt"`
	Audio   AudioSettings   `mapstructure:"audio"`
	Filter  FilterSettings  `mapstructure:"filter"`
	Monitor MonitorSettings `mapstructure:"monitor"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	State   StateSettings   `mapstructure:"state"`
}

// LogSettings selects the slog handler.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OSCSettings configures the UDP control server. A zero Port selects the
// effect's default port.
type OSCSettings struct {
	Listen string `mapstructure:"listen"`
	Port   int    `mapstructure:"port"`
}

// MQTTSettings configures the optional MQTT control bridge.
type MQTTSettings struct {
	Enabled  bool          `mapstructure:"enabled"`
	Broker   string        `mapstructure:"broker"`
	Topic    string        `mapstructure:"topic"`
	ClientID string        `mapstructure:"client_id"`
	QoS      int           `mapstructure:"qos"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AudioSettings describes the processing configuration.
type AudioSettings struct {
	SampleRate float64 `mapstructure:"sample_rate"`
	BlockSize  int     `mapstructure:"block_size"`
	Channels   int     `mapstructure:"channels"`
}

// FilterSettings tune the stage router.
type FilterSettings struct {
	NotchBandwidthHz float64 `mapstructure:"notch_bandwidth_hz"`
	Resonance        float64 `mapstructure:"resonance"`
	ClampCutoffs     bool    `mapstructure:"clamp_cutoffs"`
}

// MonitorSettings configure the /waveform streamer.
type MonitorSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Target  string `mapstructure:"target"`
	Frames  int    `mapstructure:"frames"`
	Blocks  int    `mapstructure:"blocks"`
}

// MetricsSettings configure the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// StateSettings point at the parameter state file. When set, serve loads
// it on start if present and writes it on shutdown.
type StateSettings struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers every key with its default value. Keys without a
// default are invisible to environment lookup, so all keys are listed.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("effect", plugin.KindFilter)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)

	v.SetDefault("osc.listen", "0.0.0.0")
	v.SetDefault("osc.port", 0)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "oscfx/control")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.timeout", 10*time.Second)

	def := core.DefaultProcessorConfig()
	v.SetDefault("audio.sample_rate", def.SampleRate)
	v.SetDefault("audio.block_size", def.BlockSize)
	v.SetDefault("audio.channels", def.Channels)

	pc := plugin.DefaultConfig()
	v.SetDefault("filter.notch_bandwidth_hz", pc.NotchBandwidthHz)
	v.SetDefault("filter.resonance", pc.Resonance)
	v.SetDefault("filter.clamp_cutoffs", pc.ClampCutoffs)

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.target", "127.0.0.1:9001")
	v.SetDefault("monitor.frames", 256)
	v.SetDefault("monitor.blocks", 16)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9464")

	v.SetDefault("state.path", "")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) into v and returns validated settings.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks cross-field constraints and reports every problem found.
func (s *Settings) Validate() error {
	var errs []error

	if _, ok := plugin.DefaultPort(s.Effect); !ok {
		errs = append(errs, fmt.Errorf("effect %q is not one of %v", s.Effect, plugin.Kinds()))
	}

	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if s.OSC.Port < 0 || s.OSC.Port > 65535 {
		errs = append(errs, fmt.Errorf("osc.port out of range: %d", s.OSC.Port))
	}

	if err := s.ProcessorConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}

	if s.Filter.NotchBandwidthHz < 0 {
		errs = append(errs, fmt.Errorf("filter.notch_bandwidth_hz must be >= 0: %v", s.Filter.NotchBandwidthHz))
	}
	if s.Filter.Resonance <= 0 {
		errs = append(errs, fmt.Errorf("filter.resonance must be > 0: %v", s.Filter.Resonance))
	}

	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" || s.MQTT.Topic == "" {
			errs = append(errs, errors.New("mqtt.broker and mqtt.topic are required when mqtt is enabled"))
		}
		if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2: %d", s.MQTT.QoS))
		}
	}

	if s.Monitor.Enabled {
		if _, _, err := net.SplitHostPort(s.Monitor.Target); err != nil {
			errs = append(errs, fmt.Errorf("monitor.target: %w", err))
		}
		if s.Monitor.Frames <= 0 || s.Monitor.Blocks <= 0 {
			errs = append(errs, fmt.Errorf("monitor.frames and monitor.blocks must be > 0"))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid settings: %w", err)
	}

	return nil
}

// OSCPort returns the configured port or the effect's default.
func (s *Settings) OSCPort() int {
	if s.OSC.Port != 0 {
		return s.OSC.Port
	}
	p, _ := plugin.DefaultPort(s.Effect)
	return p
}

// OSCAddr returns the UDP listen address.
func (s *Settings) OSCAddr() string {
	return net.JoinHostPort(s.OSC.Listen, fmt.Sprint(s.OSCPort()))
}

// ProcessorConfig returns the audio processing configuration.
func (s *Settings) ProcessorConfig() core.ProcessorConfig {
	return core.ProcessorConfig{
		SampleRate: s.Audio.SampleRate,
		BlockSize:  s.Audio.BlockSize,
		Channels:   s.Audio.Channels,
	}
}

// PluginConfig returns the variant settings for plugin.New.
func (s *Settings) PluginConfig() plugin.Config {
	return plugin.Config{
		NotchBandwidthHz: s.Filter.NotchBandwidthHz,
		Resonance:        s.Filter.Resonance,
		ClampCutoffs:     s.Filter.ClampCutoffs,
	}
}
