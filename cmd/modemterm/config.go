package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arloliu/go-modemterm/link"
	"github.com/arloliu/go-modemterm/listener"
	"github.com/arloliu/go-modemterm/logger"
	"github.com/arloliu/go-modemterm/terminal"
	"github.com/arloliu/go-modemterm/xmodem"
)

// DefaultConfigPath is read when no config flag is given. A missing default
// file means built-in defaults.
const DefaultConfigPath = "./modemterm.json"

// Duration is a time.Duration written as a Go duration string in JSON.
type Duration time.Duration

// UnmarshalJSON accepts "1.5s" style strings.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %v", err)
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)

	return nil
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config holds the terminal settings.
type Config struct {
	Device   string  `json:"device"`    // serial port name or tcp://host:port
	BaudRate int     `json:"baud_rate"` // line speed
	DataBits int     `json:"data_bits"` // 5..8
	Parity   string  `json:"parity"`    // none, odd, even, mark, space
	StopBits float64 `json:"stop_bits"` // 1, 1.5 or 2

	BlockSize         int      `json:"block_size"`         // 128 or 1024
	CRC               bool     `json:"crc"`                // prefer CRC16 when receiving
	StrictEOT         bool     `json:"strict_eot"`         // fail when EOT is never acknowledged
	StartTimeout      Duration `json:"start_timeout"`      // sender wait for the start byte
	AckTimeout        Duration `json:"ack_timeout"`        // sender wait per block
	BlockTimeout      Duration `json:"block_timeout"`      // receiver wait per block
	NegotiateInterval Duration `json:"negotiate_interval"` // receiver start byte interval
	RetryLimit        int      `json:"retry_limit"`

	PollInterval Duration `json:"poll_interval"` // listener idle poll
	Encoding     string   `json:"encoding"`      // charset of modem output
	Trim         string   `json:"trim"`          // padding or none

	LogLevel   string `json:"log_level"`
	LogBackend string `json:"log_backend"` // zerolog, slog or logrus
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Device:            "COM1",
		BaudRate:          link.DefaultBaudRate,
		DataBits:          link.DefaultDataBits,
		Parity:            "none",
		StopBits:          1,
		BlockSize:         xmodem.DefaultBlockSize,
		CRC:               true,
		StartTimeout:      Duration(xmodem.DefaultStartTimeout),
		AckTimeout:        Duration(xmodem.DefaultAckTimeout),
		BlockTimeout:      Duration(xmodem.DefaultBlockTimeout),
		NegotiateInterval: Duration(xmodem.DefaultNegotiateInterval),
		RetryLimit:        xmodem.DefaultRetryLimit,
		PollInterval:      Duration(listener.DefaultPollInterval),
		Encoding:          listener.DefaultEncoding,
		Trim:              terminal.TrimPadding.String(),
		LogLevel:          "info",
		LogBackend:        "zerolog",
	}
}

// LoadConfig reads the JSON file at configPath over the defaults.
func LoadConfig(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigPath
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %v", err)
	}

	config := DefaultConfig()

	data, err := os.ReadFile(absPath)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", absPath, err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", absPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the fields that have no option-level validation.
func (config *Config) Validate() error {
	if config.Device == "" {
		return errors.New("device is required")
	}
	if _, err := terminal.ParseTrimPolicy(config.Trim); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return err
	}
	switch config.LogBackend {
	case "", "zerolog", "slog", "logrus":
	default:
		return fmt.Errorf("unknown log_backend %q", config.LogBackend)
	}

	// the remaining fields are range checked by the option constructors
	if _, err := config.engineConfig(nil); err != nil {
		return err
	}

	return link.ValidateOptions(config.linkOptions()...)
}

func (config *Config) linkOptions() []link.Option {
	return []link.Option{
		link.WithBaudRate(config.BaudRate),
		link.WithDataBits(config.DataBits),
		link.WithParity(config.Parity),
		link.WithStopBits(config.StopBits),
	}
}

func (config *Config) engineConfig(l logger.Logger) (*xmodem.Config, error) {
	opts := []xmodem.Option{
		xmodem.WithBlockSize(config.BlockSize),
		xmodem.WithCRC(config.CRC),
		xmodem.WithStrictEOT(config.StrictEOT),
		xmodem.WithStartTimeout(time.Duration(config.StartTimeout)),
		xmodem.WithAckTimeout(time.Duration(config.AckTimeout)),
		xmodem.WithBlockTimeout(time.Duration(config.BlockTimeout)),
		xmodem.WithNegotiateInterval(time.Duration(config.NegotiateInterval)),
		xmodem.WithRetryLimit(config.RetryLimit),
	}
	if l != nil {
		opts = append(opts, xmodem.WithLogger(l))
	}

	return xmodem.NewConfig(opts...)
}

func (config *Config) terminalOptions(l logger.Logger) ([]terminal.Option, error) {
	engineCfg, err := config.engineConfig(l)
	if err != nil {
		return nil, err
	}
	trim, err := terminal.ParseTrimPolicy(config.Trim)
	if err != nil {
		return nil, err
	}

	return []terminal.Option{
		terminal.WithEngineConfig(engineCfg),
		terminal.WithListenerOptions(
			listener.WithPollInterval(time.Duration(config.PollInterval)),
			listener.WithEncoding(config.Encoding),
		),
		terminal.WithTrimPolicy(trim),
		terminal.WithLogger(l),
	}, nil
}
