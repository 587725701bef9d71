package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arloliu/go-modemterm/internal/pool"
	"github.com/arloliu/go-modemterm/logger"
)

// Terminator ends every command line.
const Terminator = "\r\n"

// EscapeSequence switches a connected modem back to command mode.
const EscapeSequence = "+++"

// DefaultGuardTime is the pause required around the escape sequence.
const DefaultGuardTime = time.Second

var (
	// ErrEmptyCommand is returned for a blank command.
	ErrEmptyCommand = errors.New("modem: empty command")
	// ErrInvalidNumber is returned by Dial for a number with unsupported characters.
	ErrInvalidNumber = errors.New("modem: invalid dial string")
)

// Commander writes AT commands to the device. Responses arrive
// asynchronously through the background listener.
type Commander struct {
	w         io.Writer
	guardTime time.Duration
	logger    logger.Logger
}

// Option configures a Commander.
type Option func(*Commander)

// WithGuardTime sets the escape sequence guard time.
func WithGuardTime(d time.Duration) Option {
	return func(c *Commander) {
		if d >= 0 {
			c.guardTime = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Commander) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCommander returns a Commander writing to w.
func NewCommander(w io.Writer, opts ...Option) *Commander {
	c := &Commander{
		w:         w,
		guardTime: DefaultGuardTime,
		logger:    logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send writes cmd followed by the terminator.
func (c *Commander) Send(cmd string) error {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return ErrEmptyCommand
	}

	c.logger.Debug("modem: send command", "command", cmd)
	if _, err := io.WriteString(c.w, cmd+Terminator); err != nil {
		return fmt.Errorf("modem: send %q: %w", cmd, err)
	}

	return nil
}

// Dial tone-dials number with ATDT.
func (c *Commander) Dial(number string) error {
	number = strings.TrimSpace(number)
	if number == "" || strings.IndexFunc(number, invalidDialRune) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}

	return c.Send("ATDT" + number)
}

// dial modifiers accepted besides digits
const dialModifiers = "*#,;@!WwPpTt+()- "

func invalidDialRune(r rune) bool {
	return (r < '0' || r > '9') && !strings.ContainsRune(dialModifiers, r)
}

// Answer picks up an incoming call.
func (c *Commander) Answer() error {
	return c.Send("ATA")
}

// Speaker turns the speaker on at medium volume or off.
func (c *Commander) Speaker(on bool) error {
	if !on {
		return c.Send("ATM0")
	}
	if err := c.Send("ATM2"); err != nil {
		return err
	}

	return c.Send("ATL2")
}

// Hangup sends the escape sequence, waits the guard time and hangs up with
// ATH. It returns ctx.Err() if ctx ends during the guard time.
func (c *Commander) Hangup(ctx context.Context) error {
	if err := c.Escape(ctx); err != nil {
		return err
	}

	return c.Send("ATH")
}

// Escape sends "+++" without terminator and waits the guard time.
func (c *Commander) Escape(ctx context.Context) error {
	c.logger.Debug("modem: escape to command mode")
	if _, err := io.WriteString(c.w, EscapeSequence); err != nil {
		return fmt.Errorf("modem: escape: %w", err)
	}
	if !pool.Sleep(ctx, c.guardTime) {
		return ctx.Err()
	}

	return nil
}
