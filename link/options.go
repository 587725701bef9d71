package link

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Default line settings: 9600 baud, 8N1.
const (
	DefaultBaudRate     = 9600
	DefaultDataBits     = 8
	DefaultWriteTimeout = 5 * time.Second
	DefaultDialTimeout  = 3 * time.Second
)

type options struct {
	mode         serial.Mode
	probe        time.Duration
	writeTimeout time.Duration
	dialTimeout  time.Duration
}

func defaultOptions() *options {
	return &options{
		mode: serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: DefaultDataBits,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		probe:        DefaultProbeTimeout,
		writeTimeout: DefaultWriteTimeout,
		dialTimeout:  DefaultDialTimeout,
	}
}

func applyOptions(opts []Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// ValidateOptions reports the first invalid option without opening anything.
func ValidateOptions(opts ...Option) error {
	_, err := applyOptions(opts)
	return err
}

// Option configures a channel backend.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

// WithBaudRate sets the serial line speed.
func WithBaudRate(baud int) Option {
	return optFunc(func(o *options) error {
		if baud <= 0 {
			return fmt.Errorf("link: invalid baud rate %d", baud)
		}
		o.mode.BaudRate = baud

		return nil
	})
}

// WithDataBits sets the number of data bits, 5 to 8.
func WithDataBits(bits int) Option {
	return optFunc(func(o *options) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("link: data bits %d out of range [5, 8]", bits)
		}
		o.mode.DataBits = bits

		return nil
	})
}

// WithParity sets the parity: "none", "odd", "even", "mark" or "space".
func WithParity(name string) Option {
	return optFunc(func(o *options) error {
		switch name {
		case "", "none", "N":
			o.mode.Parity = serial.NoParity
		case "odd", "O":
			o.mode.Parity = serial.OddParity
		case "even", "E":
			o.mode.Parity = serial.EvenParity
		case "mark", "M":
			o.mode.Parity = serial.MarkParity
		case "space", "S":
			o.mode.Parity = serial.SpaceParity
		default:
			return fmt.Errorf("link: unknown parity %q", name)
		}

		return nil
	})
}

// WithStopBits sets the stop bits: 1, 1.5 or 2.
func WithStopBits(bits float64) Option {
	return optFunc(func(o *options) error {
		switch bits {
		case 1:
			o.mode.StopBits = serial.OneStopBit
		case 1.5:
			o.mode.StopBits = serial.OnePointFiveStopBits
		case 2:
			o.mode.StopBits = serial.TwoStopBits
		default:
			return fmt.Errorf("link: invalid stop bits %v", bits)
		}

		return nil
	})
}

// WithProbeTimeout sets how long Available waits for a byte.
func WithProbeTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 || d > time.Second {
			return fmt.Errorf("link: probe timeout %v out of range (0, 1s]", d)
		}
		o.probe = d

		return nil
	})
}

// WithWriteTimeout bounds a single write on net.Conn backends. Serial ports
// block in the driver and ignore it.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 {
			return errors.New("link: write timeout must be positive")
		}
		o.writeTimeout = d

		return nil
	})
}

// WithDialTimeout bounds the TCP dial of Open for tcp:// devices.
func WithDialTimeout(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d <= 0 {
			return errors.New("link: dial timeout must be positive")
		}
		o.dialTimeout = d

		return nil
	})
}
