package xmodem

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-modemterm/logger"
)

// Default protocol values.
const (
	DefaultBlockSize         = BlockSize128
	DefaultStartTimeout      = 10 * time.Second // per AwaitStart attempt
	DefaultStartRetries      = 10
	DefaultAckTimeout        = 10 * time.Second
	DefaultRetryLimit        = 10
	DefaultBlockTimeout      = 10 * time.Second // wait for a block header
	DefaultCharTimeout       = 1 * time.Second  // gap inside a block
	DefaultNegotiateInterval = 3 * time.Second
	DefaultNegotiateRetries  = 10
	DefaultEOTRetries        = 10
)

// Range limits.
const (
	MinTimeout = 10 * time.Millisecond
	MaxTimeout = 2 * time.Minute

	MaxRetryLimit = 100
)

// Config holds the parameters of a transfer Engine. It is immutable once built.
type Config struct {
	blockSize int
	preferCRC bool

	startTimeout      time.Duration
	startRetries      int
	ackTimeout        time.Duration
	retryLimit        int
	blockTimeout      time.Duration
	charTimeout       time.Duration
	negotiateInterval time.Duration
	negotiateRetries  int
	eotRetries        int

	strictEOT bool
	padByte   byte
	zeroWrap  bool

	logger logger.Logger
}

// NewConfig builds a Config from the defaults and opts, applied in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		blockSize:         DefaultBlockSize,
		preferCRC:         true,
		startTimeout:      DefaultStartTimeout,
		startRetries:      DefaultStartRetries,
		ackTimeout:        DefaultAckTimeout,
		retryLimit:        DefaultRetryLimit,
		blockTimeout:      DefaultBlockTimeout,
		charTimeout:       DefaultCharTimeout,
		negotiateInterval: DefaultNegotiateInterval,
		negotiateRetries:  DefaultNegotiateRetries,
		eotRetries:        DefaultEOTRetries,
		padByte:           DefaultPadByte,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// BlockSize returns the configured payload length, 128 or 1024.
func (cfg *Config) BlockSize() int { return cfg.blockSize }

// PreferCRC reports whether the receiver opens negotiation with 'C'.
func (cfg *Config) PreferCRC() bool { return cfg.preferCRC }

func (cfg *Config) StartTimeout() time.Duration      { return cfg.startTimeout }
func (cfg *Config) StartRetries() int                { return cfg.startRetries }
func (cfg *Config) AckTimeout() time.Duration        { return cfg.ackTimeout }
func (cfg *Config) RetryLimit() int                  { return cfg.retryLimit }
func (cfg *Config) BlockTimeout() time.Duration      { return cfg.blockTimeout }
func (cfg *Config) CharTimeout() time.Duration       { return cfg.charTimeout }
func (cfg *Config) NegotiateInterval() time.Duration { return cfg.negotiateInterval }
func (cfg *Config) NegotiateRetries() int            { return cfg.negotiateRetries }
func (cfg *Config) EOTRetries() int                  { return cfg.eotRetries }

// StrictEOT reports whether an unacknowledged EOT aborts the send.
func (cfg *Config) StrictEOT() bool { return cfg.strictEOT }

// PadByte returns the byte used to fill the final block.
func (cfg *Config) PadByte() byte { return cfg.padByte }

// ZeroWrap reports whether sequence numbers wrap from 255 to 0 instead of 1.
func (cfg *Config) ZeroWrap() bool { return cfg.zeroWrap }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for NewConfig.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

func checkTimeout(name string, d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return fmt.Errorf("xmodem: %s %v out of range [%v, %v]", name, d, MinTimeout, MaxTimeout)
	}

	return nil
}

func checkCount(name string, n int) error {
	if n < 1 || n > MaxRetryLimit {
		return fmt.Errorf("xmodem: %s %d out of range [1, %d]", name, n, MaxRetryLimit)
	}

	return nil
}

// WithBlockSize selects 128- or 1024-byte blocks for sending. 1024 falls back
// to 128 when the receiver asks for checksum mode.
func WithBlockSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size != BlockSize128 && size != BlockSize1K {
			return fmt.Errorf("xmodem: block size %d, want %d or %d", size, BlockSize128, BlockSize1K)
		}
		cfg.blockSize = size

		return nil
	})
}

// WithCRC sets whether the receiver requests CRC-16 ('C') or checksum (NAK).
func WithCRC(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.preferCRC = enabled
		return nil
	})
}

// WithStartTimeout sets the per-attempt wait for the receiver's start byte.
func WithStartTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("start timeout", d); err != nil {
			return err
		}
		cfg.startTimeout = d

		return nil
	})
}

// WithStartRetries sets the number of start attempts.
func WithStartRetries(n int) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkCount("start retries", n); err != nil {
			return err
		}
		cfg.startRetries = n

		return nil
	})
}

// WithAckTimeout sets the wait for a block or EOT reply.
func WithAckTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("ack timeout", d); err != nil {
			return err
		}
		cfg.ackTimeout = d

		return nil
	})
}

// WithRetryLimit sets the consecutive failure budget per block.
func WithRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkCount("retry limit", n); err != nil {
			return err
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithBlockTimeout sets how long the receiver waits for the next start byte.
func WithBlockTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("block timeout", d); err != nil {
			return err
		}
		cfg.blockTimeout = d

		return nil
	})
}

// WithCharTimeout sets the inter-character timeout inside a block, also used
// as the silence window when draining a rejected block.
func WithCharTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("char timeout", d); err != nil {
			return err
		}
		cfg.charTimeout = d

		return nil
	})
}

// WithNegotiateInterval sets the delay between the receiver's start bytes.
func WithNegotiateInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("negotiate interval", d); err != nil {
			return err
		}
		cfg.negotiateInterval = d

		return nil
	})
}

// WithNegotiateRetries sets how many start bytes the receiver sends.
func WithNegotiateRetries(n int) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkCount("negotiate retries", n); err != nil {
			return err
		}
		cfg.negotiateRetries = n

		return nil
	})
}

// WithEOTRetries sets how many times EOT is sent before giving up.
func WithEOTRetries(n int) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkCount("EOT retries", n); err != nil {
			return err
		}
		cfg.eotRetries = n

		return nil
	})
}

// WithStrictEOT makes an unacknowledged EOT abort the send with EOTNotAcked.
// By default the send succeeds with Result.EOTAcked false.
func WithStrictEOT(strict bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.strictEOT = strict
		return nil
	})
}

// WithPadByte sets the byte filling the final block.
func WithPadByte(b byte) Option {
	return optFunc(func(cfg *Config) error {
		cfg.padByte = b
		return nil
	})
}

// WithZeroWrap selects the classic 255 to 0 sequence wrap.
func WithZeroWrap(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.zeroWrap = enabled
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("xmodem: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
