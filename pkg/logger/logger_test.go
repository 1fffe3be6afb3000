package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"e621dl/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level without color", &config.LoggingConfig{Level: "debug", NoColor: true}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
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

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter("warn", &buf)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	l.Error("also shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["message"])
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "e621dl", lines[0]["app"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewWithWriter("debug", &buf)
	require.NoError(t, err)

	child := base.WithField("entry", "fur").WithFields(map[string]interface{}{
		"page":     2,
		"duration": 1500 * time.Millisecond,
	})
	child.InfoWithFields("page fetched", map[string]interface{}{"posts": 320})
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "fur", lines[0]["entry"])
	assert.EqualValues(t, 2, lines[0]["page"])
	assert.EqualValues(t, 320, lines[0]["posts"])
	_, has := lines[1]["entry"]
	assert.False(t, has)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter("info", &buf)
	require.NoError(t, err)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("disk full")).Error("write failed")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "disk full", lines[0]["error"])
}

func TestTestLoggerCapturesChildren(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("entry", "pool:12").WithError(errors.New("boom"))
	child.Warn("retrying")
	tl.Info("started")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "pool:12", msgs[0].Fields["entry"])
	assert.EqualError(t, msgs[0].Error, "boom")
	assert.True(t, tl.HasMessage("started"))
	assert.False(t, tl.HasError())

	LogDownload(tl, "fur", 42, "failed", errors.New("timeout"))
	assert.True(t, tl.HasError())

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Error("nothing")
	assert.NotNil(t, l.GetZerolog())
}
