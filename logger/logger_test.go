package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    LogLevel
		wantErr bool
	}{
		{name: "debug", input: "debug", want: DebugLevel},
		{name: "empty defaults to info", input: "", want: InfoLevel},
		{name: "upper case", input: "WARN", want: WarnLevel},
		{name: "warning alias", input: "warning", want: WarnLevel},
		{name: "error", input: " error ", want: ErrorLevel},
		{name: "fatal", input: "fatal", want: FatalLevel},
		{name: "unknown", input: "verbose", want: InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "debug", LevelName(DebugLevel))
	assert.Equal(t, "warn", LevelName(WarnLevel))
	assert.Equal(t, "unknown", LevelName(LogLevel(42)))
}

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false, false)

	l.Debug("hidden")
	l.Info("transfer done", "bytes", 1024)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "transfer done", rec["msg"])
	assert.InDelta(t, 1024, rec["bytes"], 0)
	assert.Contains(t, rec, "ts")
}

func TestSlogLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false, false)
	child := l.With("session", "abc")

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level())

	child.Debug("child debug")
	assert.Contains(t, buf.String(), `"session":"abc"`)
	assert.Contains(t, buf.String(), "child debug")
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerolog(zerolog.New(&buf), WarnLevel)

	l.Info("dropped")
	assert.Empty(t, buf.String())

	l.With("port", "COM1").Warn("line noise", "error", errors.New("framing"), "dangling")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "line noise", rec["message"])
	assert.Equal(t, "COM1", rec["port"])
	assert.Equal(t, "framing", rec["error"])
	assert.Equal(t, "!MISSING", rec["dangling"])

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	root := logrus.New()
	root.SetOutput(&buf)
	root.SetFormatter(&logrus.JSONFormatter{})

	l := NewLogrus(root, ErrorLevel)
	assert.Equal(t, ErrorLevel, l.Level())

	l.Warn("dropped")
	assert.Empty(t, buf.String())

	l.SetLevel(InfoLevel)
	l.With("direction", "send").Info("block acked", "seq", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "block acked", rec["msg"])
	assert.Equal(t, "send", rec["direction"])
	assert.InDelta(t, 3, rec["seq"], 0)
}

func TestDefaultLogger(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	m := NewMockLogger()
	m.On("Info", "hello", mock.Anything).Once()
	SetLogger(m)

	Info("hello", "k", "v")
	m.AssertExpectations(t)

	SetLogger(nil)
	assert.Same(t, m, GetLogger())
}

func TestPermissiveMockLogger(t *testing.T) {
	m := NewPermissiveMockLogger()

	child := m.With("a", 1)
	child.Warn("something", "k", "v")

	m.AssertCalled(t, "Warn", "something", mock.Anything)
}
