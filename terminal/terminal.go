// Package terminal ties the channel, the arbiter, the background listener,
// the modem commands and the transfer engine into one session.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-modemterm/link"
	"github.com/arloliu/go-modemterm/listener"
	"github.com/arloliu/go-modemterm/logger"
	"github.com/arloliu/go-modemterm/modem"
	"github.com/arloliu/go-modemterm/xmodem"
)

// ErrBusy is returned when a transfer is already running or a modem command
// is issued during one.
var ErrBusy = link.ErrBusy

// TransferRecord describes one transfer attempt.
type TransferRecord struct {
	ID        string
	Direction xmodem.Direction
	Path      string
	Started   time.Time
	Result    xmodem.Result
	// Size is the final file size on disk, after trimming for receives.
	Size int64
	Err  error
}

// Succeeded reports whether the transfer completed.
func (r TransferRecord) Succeeded() bool {
	return r.Err == nil
}

// Terminal is a modem terminal session on one channel.
type Terminal struct {
	ch       link.Channel
	arb      *link.Arbiter
	engine   *xmodem.Engine
	listener *listener.Listener
	modem    *modem.Commander
	trim     TrimPolicy
	logger   logger.Logger

	history *xsync.MapOf[string, TransferRecord]

	mu           sync.Mutex
	cancelActive context.CancelFunc
}

// New creates a Terminal on ch. The terminal owns ch and closes it in Close.
func New(ch link.Channel, opts ...Option) (*Terminal, error) {
	o := &options{
		yieldTimeout: link.DefaultYieldTimeout,
		guardTime:    modem.DefaultGuardTime,
		trim:         TrimPadding,
		logger:       logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.engineCfg == nil {
		cfg, err := xmodem.NewConfig(xmodem.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.engineCfg = cfg
	}

	arb := link.NewArbiter(link.WithYieldTimeout(o.yieldTimeout), link.WithArbiterLogger(o.logger))

	lsn, err := listener.New(ch, arb, append([]listener.Option{listener.WithLogger(o.logger)}, o.listenerOpts...)...)
	if err != nil {
		return nil, err
	}

	t := &Terminal{
		ch:       ch,
		arb:      arb,
		engine:   xmodem.NewEngine(ch, o.engineCfg),
		listener: lsn,
		trim:     o.trim,
		logger:   o.logger,
		history:  xsync.NewMapOf[string, TransferRecord](),
	}
	t.modem = modem.NewCommander(&commandWriter{t: t}, modem.WithGuardTime(o.guardTime), modem.WithLogger(o.logger))

	return t, nil
}

// Start launches the background listener.
func (t *Terminal) Start(ctx context.Context) error {
	return t.listener.Start(ctx)
}

// Close stops the listener and closes the channel.
func (t *Terminal) Close() error {
	t.CancelTransfer()
	t.listener.Stop()

	return t.ch.Close()
}

// Events returns listener notifications. The channel is closed when the
// listener stops.
func (t *Terminal) Events() <-chan listener.Notification {
	return t.listener.Events()
}

// Owner returns the current channel owner.
func (t *Terminal) Owner() link.Owner {
	return t.arb.Owner()
}

// Transfer runs fn with exclusive ownership of the channel and releases it
// on every exit path. It fails with ErrBusy when another transfer runs.
func (t *Terminal) Transfer(ctx context.Context, fn func(ctx context.Context, e *xmodem.Engine) error) error {
	if err := t.arb.Acquire(ctx, link.TransferOwned); err != nil {
		return err
	}
	defer t.arb.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	t.cancelActive = cancel
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.cancelActive = nil
		t.mu.Unlock()
	}()

	return fn(ctx, t.engine)
}

// CancelTransfer cancels the running transfer, if any. It reports whether
// there was one.
func (t *Terminal) CancelTransfer() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelActive == nil {
		return false
	}
	t.cancelActive()

	return true
}

// Command sends a raw AT command.
func (t *Terminal) Command(cmd string) error {
	return t.modem.Send(cmd)
}

// Dial dials number.
func (t *Terminal) Dial(number string) error {
	return t.modem.Dial(number)
}

// Answer answers an incoming call.
func (t *Terminal) Answer() error {
	return t.modem.Answer()
}

// Speaker switches the modem speaker.
func (t *Terminal) Speaker(on bool) error {
	return t.modem.Speaker(on)
}

// Hangup escapes to command mode and hangs up.
func (t *Terminal) Hangup(ctx context.Context) error {
	return t.modem.Hangup(ctx)
}

// History returns the transfer records, oldest first.
func (t *Terminal) History() []TransferRecord {
	records := make([]TransferRecord, 0, t.history.Size())
	t.history.Range(func(_ string, rec TransferRecord) bool {
		records = append(records, rec)
		return true
	})
	sort.Slice(records, func(i, j int) bool {
		return records[i].Started.Before(records[j].Started)
	})

	return records
}

// Metrics returns a snapshot of the transfer counters.
func (t *Terminal) Metrics() xmodem.MetricsSnapshot {
	return t.engine.Metrics().Snapshot()
}

// ListenerMetrics returns the listener counters.
func (t *Terminal) ListenerMetrics() *listener.Metrics {
	return t.listener.Metrics()
}

func (t *Terminal) record(dir xmodem.Direction, path string, started time.Time, res xmodem.Result, size int64, err error) {
	id := res.SessionID
	if id == "" {
		// the engine refused to start, no session was created
		id = fmt.Sprintf("%s-%d", dir, started.UnixNano())
	}

	t.history.Store(id, TransferRecord{
		ID:        id,
		Direction: dir,
		Path:      path,
		Started:   started,
		Result:    res,
		Size:      size,
		Err:       err,
	})
}

// commandWriter writes modem commands only while no transfer owns the
// channel.
type commandWriter struct {
	t *Terminal
}

func (w *commandWriter) Write(p []byte) (int, error) {
	var n int
	err := w.t.arb.Exclusive(func() error {
		var err error
		n, err = w.t.ch.Write(p)

		return err
	})
	if errors.Is(err, link.ErrBusy) {
		return 0, fmt.Errorf("%w: transfer in progress", ErrBusy)
	}

	return n, err
}
