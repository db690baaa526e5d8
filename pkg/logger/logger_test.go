package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followwatch/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"console info", &config.LoggingConfig{Level: "info"}, false},
		{"debug with file", &config.LoggingConfig{Level: "debug", File: filepath.Join(t.TempDir(), "logs", "fw.log")}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
	}
	for in, want := range tests {
		got, err := parseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLogLevel("trace-ish")
	assert.Error(t, err)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestFieldsAreCarried(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	child := l.WithField("component", "pool").WithError(errors.New("boom"))
	child.InfoWithFields("account leased", map[string]interface{}{
		"account_id": int64(3),
		"wait":       1500 * time.Millisecond,
	})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "followwatch", lines[0]["app"])
	assert.Equal(t, "pool", lines[0]["component"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, float64(3), lines[0]["account_id"])
	assert.Equal(t, "account leased", lines[0]["message"])
}

func TestChildDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "info")
	require.NoError(t, err)

	_ = l.WithField("target_id", 9)
	l.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["target_id"]
	assert.False(t, ok)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "warn")
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "scheduler")

	child.Info("batch started")
	child.WithError(errors.New("x")).Warn("batch slow")
	LogTaskOutcome(tl, 4, "failure", time.Second, errors.New("timeout"))

	assert.True(t, tl.HasMessage("batch started"))
	assert.Equal(t, []string{"batch slow", "target check failed"}, tl.GetMessagesByLevel("warn"))

	entries := tl.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "scheduler", entries[0].Fields["component"])
	assert.Equal(t, int64(4), entries[2].Fields["target_id"])

	tl.Clear()
	assert.Empty(t, tl.Entries())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("k", "v").Error("ignored")
	LogComponentStart(l, "x", nil)
	LogComponentStop(l, "x", time.Minute)
}
