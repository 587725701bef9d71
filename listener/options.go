package listener

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/encoding"

	"github.com/arloliu/go-modemterm/logger"
)

const (
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultLineTimeout   = time.Second
	DefaultMaxLineLength = 1024
	DefaultQueueSize     = 32
	DefaultEncoding      = "utf-8"
)

type options struct {
	pollInterval  time.Duration
	lineTimeout   time.Duration
	maxLineLength int
	queueSize     int
	encodingName  string
	encoding      encoding.Encoding
	logger        logger.Logger
}

// Option configures a Listener.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithPollInterval sets the idle delay between polls. It also bounds how
// long a pending transfer may wait for an idle listener.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < time.Millisecond || d > 10*time.Second {
			return fmt.Errorf("listener: poll interval %v out of range [1ms, 10s]", d)
		}
		o.pollInterval = d

		return nil
	})
}

// WithLineTimeout bounds the wait for the rest of a line once its first
// byte arrived. A line cut short by the timeout is emitted as it is.
func WithLineTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < time.Millisecond || d > time.Minute {
			return fmt.Errorf("listener: line timeout %v out of range [1ms, 1m]", d)
		}
		o.lineTimeout = d

		return nil
	})
}

// WithMaxLineLength sets the length at which a line without terminator is
// emitted anyway.
func WithMaxLineLength(n int) Option {
	return optFunc(func(o *options) error {
		if n < 1 || n > 1<<16 {
			return fmt.Errorf("listener: max line length %d out of range [1, 65536]", n)
		}
		o.maxLineLength = n

		return nil
	})
}

// WithQueueSize sets the capacity of the notification channel.
func WithQueueSize(n int) Option {
	return optFunc(func(o *options) error {
		if n < 1 {
			return errors.New("listener: queue size must be positive")
		}
		o.queueSize = n

		return nil
	})
}

// WithEncoding selects the character set of device output by IANA name,
// e.g. "utf-8", "IBM852" or "windows-1250".
func WithEncoding(name string) Option {
	return optFunc(func(o *options) error {
		enc, err := lookupEncoding(name)
		if err != nil {
			return err
		}
		o.encodingName = name
		o.encoding = enc

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("listener: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}
