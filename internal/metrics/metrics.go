// Package metrics exposes Prometheus collectors for the control path and the
// audio host on a private registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/algo-oscfx/dsp/router"
	"github.com/cwbudde/algo-oscfx/plugin"
)

const (
	namespace    = "oscfx"
	otherAddress = "other"
)

// knownAddresses bounds the cardinality of the address label.
var knownAddresses = map[string]struct{}{
	router.AddressActive: {},
	router.AddressCutoff: {},
	plugin.AddressWet:    {},
	plugin.AddressDrive:  {},
	plugin.AddressFreq:   {},
	plugin.AddressWave:   {},
	plugin.AddressReset:  {},
}

// Metrics holds all collectors. It implements plugin.Observer and
// oscio.DropObserver.
type Metrics struct {
	registry *prometheus.Registry

	ControlMessages *prometheus.CounterVec
	Rejected        prometheus.Counter
	ActiveStages    prometheus.Gauge
	Blocks          prometheus.Counter
	BlockSeconds    prometheus.Histogram
	PacketsDropped  *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()

	if err := m.registry.Register(m); err != nil {
		return nil, fmt.Errorf("metrics: register collectors: %w", err)
	}

	return m, nil
}

func (m *Metrics) initMetrics() {
	m.ControlMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "control_messages_total",
		Help:      "Control messages received, by address and outcome",
	}, []string{"address", "result"})

	m.Rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_activations_rejected_total",
		Help:      "Stage activations refused because the active set was full",
	})

	m.ActiveStages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_stages",
		Help:      "Number of currently active filter stages",
	})

	m.Blocks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_processed_total",
		Help:      "Audio blocks processed",
	})

	m.BlockSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "block_process_seconds",
		Help:      "Wall time spent processing one audio block",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 2, 16),
	})

	m.PacketsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "osc_packets_dropped_total",
		Help:      "Inbound OSC packets that could not be decoded",
	}, []string{"reason"})
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ControlMessages.Describe(ch)
	m.Rejected.Describe(ch)
	m.ActiveStages.Describe(ch)
	m.Blocks.Describe(ch)
	m.BlockSeconds.Describe(ch)
	m.PacketsDropped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ControlMessages.Collect(ch)
	m.Rejected.Collect(ch)
	m.ActiveStages.Collect(ch)
	m.Blocks.Collect(ch)
	m.BlockSeconds.Collect(ch)
	m.PacketsDropped.Collect(ch)
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// MessageHandled counts one control message.
func (m *Metrics) MessageHandled(_, address, result string) {
	if _, ok := knownAddresses[address]; !ok {
		address = otherAddress
	}
	m.ControlMessages.WithLabelValues(address, result).Inc()
	if result == plugin.ResultRejected {
		m.Rejected.Inc()
	}
}

// ActiveStagesChanged records the active stage count.
func (m *Metrics) ActiveStagesChanged(n int) { m.ActiveStages.Set(float64(n)) }

// PacketDropped counts one undecodable packet.
func (m *Metrics) PacketDropped(reason string) { m.PacketsDropped.WithLabelValues(reason).Inc() }

// ObserveBlock records one processed block.
func (m *Metrics) ObserveBlock(d time.Duration) {
	m.Blocks.Inc()
	m.BlockSeconds.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	log.Info("metrics endpoint listening", "component", "metrics", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}

	return nil
}
