package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWire(t *testing.T) {
	payload := `[
		{"key": "s", "type": "string", "value": "value"},
		{"key": "i", "type": "int64", "value": "-7"},
		{"key": "u", "type": "uint64", "value": "7"},
		{"key": "b", "type": "bool", "value": "true"},
		{"key": "f", "type": "float64", "value": "1.5"},
		{"key": "t", "type": "time", "value": "2026-03-01T12:00:00Z"},
		{"key": "d", "type": "duration", "value": "1m30s"},
		{"key": "e", "type": "error", "value": "disk full"},
		{"key": "x", "type": "any", "value": "<nil>"}
	]`
	var wire []LogAttrWire
	require.NoError(t, json.Unmarshal([]byte(payload), &wire))

	want := []slog.Attr{
		slog.String("s", "value"),
		slog.Int64("i", -7),
		slog.Uint64("u", 7),
		slog.Bool("b", true),
		slog.Float64("f", 1.5),
		slog.Time("t", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		slog.Duration("d", 90*time.Second),
		slog.String("e", "disk full"),
		slog.String("x", "<nil>"),
	}
	require.Len(t, wire, len(want))
	for i, w := range wire {
		got := FromWire(w)
		assert.True(t, want[i].Equal(got), "%s: got %v", w.Key, got)
	}
}

func TestFromWire_Fallbacks(t *testing.T) {
	got := FromWire(LogAttrWire{Key: "n", Type: "int64", Value: "many"})
	assert.Equal(t, slog.KindString, got.Value.Kind())
	assert.Equal(t, "many", got.Value.String())

	raw := FromWire(LogAttrWire{Key: "j", Type: "json", Value: `{"a":1}`})
	assert.Equal(t, json.RawMessage(`{"a":1}`), raw.Value.Any())
}

func TestLogMessageWire(t *testing.T) {
	var msg LogMessageWire
	require.NoError(t, json.Unmarshal([]byte(`{"level":"WARN","message":"low memory","attrs":[{"key":"free","type":"int64","value":"12"}]}`), &msg))

	assert.Equal(t, slog.LevelWarn, msg.SlogLevel())
	require.Len(t, msg.SlogAttrs(), 1)
	assert.Equal(t, int64(12), msg.SlogAttrs()[0].Value.Int64())

	assert.Equal(t, slog.LevelInfo, LogMessageWire{Level: "chatty"}.SlogLevel())
}

func TestNewHandler_Defaults(t *testing.T) {
	h := NewHandler()
	assert.NotNil(t, h)
	// Check default level via Enabled
	assert.True(t, h.Enabled(context.TODO(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.TODO(), slog.LevelDebug))
}

func TestNewHandler_Options(t *testing.T) {
	var buf bytes.Buffer
	logger := New(
		WithLevel(slog.LevelDebug),
		WithSource(true),
		WithFormat(FormatJSON),
		WithWriter(&buf),
	)
	logger.Debug("Host: plugin loaded", "generation", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Host: plugin loaded", record["msg"])
	assert.Equal(t, float64(3), record["generation"])
	assert.Contains(t, record, "source")
}

func TestNewHandler_LevelVar(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelError)
	logger := New(WithLevel(lvl), WithWriter(&buf))

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	lvl.Set(slog.LevelInfo)
	logger.Info("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
