package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}

	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info", FormatJSON)
	require.NoError(t, err)

	Component(l, "oscio").Debug("hidden")
	Component(l, "oscio").Info("listening", "port", 9001)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "listening", rec["msg"])
	assert.Equal(t, "oscio", rec["component"])
	assert.EqualValues(t, 9001, rec["port"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug", "")
	require.NoError(t, err)

	l.Debug("stage state updated", "active", "LPF")
	assert.Contains(t, buf.String(), "msg=\"stage state updated\"")
	assert.Contains(t, buf.String(), "active=LPF")
}

func TestNewInvalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "info", "xml")
	require.Error(t, err)

	_, err = New(&bytes.Buffer{}, "loud", FormatText)
	require.Error(t, err)
}
