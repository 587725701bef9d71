package terminal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-modemterm/listener"
	"github.com/arloliu/go-modemterm/logger"
	"github.com/arloliu/go-modemterm/xmodem"
)

// TrimPolicy decides what happens to the padding of a received file whose
// exact size is unknown.
type TrimPolicy uint8

const (
	// TrimPadding strips trailing pad bytes from the final block.
	TrimPadding TrimPolicy = iota
	// TrimNone keeps the file as received, a whole number of blocks.
	TrimNone
)

func (p TrimPolicy) String() string {
	if p == TrimNone {
		return "none"
	}

	return "padding"
}

// ParseTrimPolicy converts "padding" or "none".
func ParseTrimPolicy(s string) (TrimPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "padding", "pad":
		return TrimPadding, nil
	case "none", "raw":
		return TrimNone, nil
	default:
		return TrimPadding, fmt.Errorf("terminal: unknown trim policy %q", s)
	}
}

type options struct {
	engineCfg    *xmodem.Config
	listenerOpts []listener.Option
	yieldTimeout time.Duration
	guardTime    time.Duration
	trim         TrimPolicy
	logger       logger.Logger
}

// Option configures a Terminal.
type Option func(*options) error

// WithEngineConfig sets the transfer engine configuration.
func WithEngineConfig(cfg *xmodem.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("terminal: engine config must not be nil")
		}
		o.engineCfg = cfg

		return nil
	}
}

// WithListenerOptions passes options to the background listener.
func WithListenerOptions(opts ...listener.Option) Option {
	return func(o *options) error {
		o.listenerOpts = append(o.listenerOpts, opts...)
		return nil
	}
}

// WithYieldTimeout bounds how long a transfer waits for the listener.
func WithYieldTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("terminal: yield timeout must be positive")
		}
		o.yieldTimeout = d

		return nil
	}
}

// WithGuardTime sets the pause around the "+++" escape used by Hangup.
func WithGuardTime(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("terminal: guard time must not be negative")
		}
		o.guardTime = d

		return nil
	}
}

// WithTrimPolicy sets how received files of unknown size are trimmed.
func WithTrimPolicy(p TrimPolicy) Option {
	return func(o *options) error {
		o.trim = p
		return nil
	}
}

// WithLogger sets the logger for the terminal and its components.
func WithLogger(l logger.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("terminal: logger must not be nil")
		}
		o.logger = l

		return nil
	}
}
