package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"verbose", "", true},
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

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithWriter(&buf, LevelDebug)

	l.Info("state entered",
		Module("billing"),
		State("enabled"),
		Int("attempt", 2),
		Bool("ordered", true),
		Duration("took", 1500*time.Millisecond),
		Strings("deps", []string{"a", "b"}),
		Err(errors.New("boom")),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "state entered", line["message"])
	assert.Equal(t, "billing", line["module"])
	assert.Equal(t, "enabled", line["state"])
	assert.EqualValues(t, 2, line["attempt"])
	assert.Equal(t, true, line["ordered"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, []any{"a", "b"}, line["deps"])
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithWriter(&buf, LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewZerologAdapterWithWriter(&buf, LevelInfo)
	child := base.With(Module("db"), RunID("r-1"))

	child.Info("hello")
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "db", lines[0]["module"])
	assert.Equal(t, "r-1", lines[0]["run_id"])
	assert.NotContains(t, lines[1], "module")
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NewNoopLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	assert.NotNil(t, l.With(Module("m")))
}
