package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-modemterm/listener"
	"github.com/arloliu/go-modemterm/logger"
	"github.com/arloliu/go-modemterm/terminal"
	"github.com/arloliu/go-modemterm/xmodem"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "modemterm.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadConfig_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
	assert.Equal(t, "COM1", config.Device)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `{
		"device": "tcp://127.0.0.1:2323",
		"baud_rate": 2400,
		"parity": "even",
		"block_size": 1024,
		"strict_eot": true,
		"ack_timeout": "1500ms",
		"poll_interval": "50ms",
		"trim": "none",
		"log_backend": "logrus"
	}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://127.0.0.1:2323", config.Device)
	assert.Equal(t, 2400, config.BaudRate)
	assert.Equal(t, 1024, config.BlockSize)
	assert.True(t, config.StrictEOT)
	assert.Equal(t, Duration(1500*time.Millisecond), config.AckTimeout)
	assert.Equal(t, Duration(50*time.Millisecond), config.PollInterval)
	// untouched fields keep their defaults
	assert.Equal(t, 8, config.DataBits)
	assert.True(t, config.CRC)

	cfg, err := config.engineConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, xmodem.BlockSize1K, cfg.BlockSize())
	assert.True(t, cfg.StrictEOT())
	assert.Equal(t, 1500*time.Millisecond, cfg.AckTimeout())

	opts, err := config.terminalOptions(logger.NewPermissiveMockLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", `{"device": `},
		{"duration number", `{"ack_timeout": 5}`},
		{"duration text", `{"ack_timeout": "soon"}`},
		{"empty device", `{"device": ""}`},
		{"block size", `{"block_size": 512}`},
		{"parity", `{"parity": "sometimes"}`},
		{"stop bits", `{"stop_bits": 3}`},
		{"trim", `{"trim": "half"}`},
		{"log level", `{"log_level": "loud"}`},
		{"log backend", `{"log_backend": "syslog"}`},
		{"timeout range", `{"block_timeout": "1h"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.False(t, errors.Is(err, os.ErrNotExist))
		})
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, listener.DefaultEncoding, config.Encoding)
	assert.Equal(t, terminal.TrimPadding.String(), config.Trim)
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := Duration(3 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(b))
}

func TestConfigureLogging(t *testing.T) {
	defer logger.SetLogger(logger.GetLogger())

	for _, backend := range []string{"zerolog", "slog", "logrus"} {
		l := configureLogging(backend, logger.WarnLevel)
		assert.Equal(t, logger.WarnLevel, l.Level(), backend)
		assert.Same(t, l, logger.GetLogger(), backend)
	}
}

func TestRenderHistoryTable(t *testing.T) {
	records := []terminal.TransferRecord{
		{ID: "0123456789abcdef", Direction: xmodem.DirectionSend, Path: "a.bin", Started: time.Now(), Size: 42},
		{ID: "short", Direction: xmodem.DirectionReceive, Path: "b.bin", Started: time.Now(),
			Err: &xmodem.AbortError{Reason: xmodem.TooManyRetries}},
	}

	out := RenderHistoryTable(records)
	assert.Contains(t, out, "01234567…")
	assert.Contains(t, out, "a.bin")
	assert.Contains(t, out, "receive")
	assert.Contains(t, out, xmodem.TooManyRetries.String())
}

func TestRenderStatsTable(t *testing.T) {
	var lm listener.Metrics
	lm.LinesEmitted.Add(7)

	out := RenderStatsTable(xmodem.MetricsSnapshot{TransferCount: 3, BytesSent: 1024}, &lm)
	assert.Contains(t, out, "Transfers completed")
	assert.Contains(t, out, "1024")
	assert.Contains(t, out, "7")
}
