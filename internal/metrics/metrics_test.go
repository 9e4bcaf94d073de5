package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-oscfx/dsp/router"
	"github.com/cwbudde/algo-oscfx/internal/oscio"
	"github.com/cwbudde/algo-oscfx/plugin"
)

var (
	_ plugin.Observer     = (*Metrics)(nil)
	_ oscio.DropObserver = (*Metrics)(nil)
)

func TestControlMessageCounting(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.MessageHandled(plugin.KindFilter, router.AddressActive, plugin.ResultApplied)
	m.MessageHandled(plugin.KindFilter, router.AddressActive, plugin.ResultApplied)
	m.MessageHandled(plugin.KindFilter, router.AddressActive, plugin.ResultRejected)
	m.MessageHandled(plugin.KindFilter, "/nope/1", plugin.ResultIgnored)
	m.MessageHandled(plugin.KindFilter, "/nope/2", plugin.ResultIgnored)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ControlMessages.WithLabelValues(router.AddressActive, plugin.ResultApplied)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ControlMessages.WithLabelValues(router.AddressActive, plugin.ResultRejected)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ControlMessages.WithLabelValues(otherAddress, plugin.ResultIgnored)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Rejected), 0)
}

func TestGaugesAndBlocks(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ActiveStagesChanged(2)
	m.ActiveStagesChanged(1)
	m.ObserveBlock(200 * time.Microsecond)
	m.ObserveBlock(300 * time.Microsecond)
	m.PacketDropped(oscio.DropMalformed)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveStages), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Blocks), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PacketsDropped.WithLabelValues(oscio.DropMalformed)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.BlockSeconds))
}

func TestHandlerExposition(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.ObserveBlock(time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "oscfx_blocks_processed_total 1"))
	assert.True(t, strings.Contains(body, "oscfx_block_process_seconds_bucket"))
}

func TestServeStopsOnCancel(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0", nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
