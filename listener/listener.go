// Package listener drains unsolicited device output while no transfer owns
// the channel and delivers it as line notifications.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/arloliu/go-modemterm/internal/pool"
	"github.com/arloliu/go-modemterm/internal/task"
	"github.com/arloliu/go-modemterm/link"
	"github.com/arloliu/go-modemterm/logger"
	"github.com/arloliu/go-modemterm/modem"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("listener: already started")

// Kind distinguishes notifications.
type Kind uint8

const (
	// KindLine carries one line of device output.
	KindLine Kind = iota
	// KindFault is the last notification: the channel failed and the
	// listener stopped.
	KindFault
)

func (k Kind) String() string {
	if k == KindFault {
		return "fault"
	}

	return "line"
}

// Notification is an event produced by the listener.
type Notification struct {
	Kind Kind
	Line string
	// Result is set when Line is a modem result code.
	Result   modem.Result
	IsResult bool
	Err      error
	Time     time.Time
}

// Metrics counts listener activity.
type Metrics struct {
	LinesEmitted atomic.Uint64
	LinesDropped atomic.Uint64
	Polls        atomic.Uint64
}

// Listener polls the channel whenever the arbiter lets it.
//
// Each poll takes ListenerOwned, reads at most one line and yields, so a
// pending transfer waits for one line at worst.
type Listener struct {
	ch   link.Channel
	arb  *link.Arbiter
	opts *options

	events    chan Notification
	closeOnce sync.Once
	tasks     *task.Manager
	started   atomic.Bool
	faulted   atomic.Bool
	metrics   Metrics
	logger    logger.Logger
}

// New creates a Listener for ch. Call Start to begin polling.
func New(ch link.Channel, arb *link.Arbiter, opts ...Option) (*Listener, error) {
	o := &options{
		pollInterval:  DefaultPollInterval,
		lineTimeout:   DefaultLineTimeout,
		maxLineLength: DefaultMaxLineLength,
		queueSize:     DefaultQueueSize,
		encodingName:  DefaultEncoding,
		encoding:      unicode.UTF8,
		logger:        logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	return &Listener{
		ch:     ch,
		arb:    arb,
		opts:   o,
		events: make(chan Notification, o.queueSize),
		logger: o.logger.With("component", "listener"),
	}, nil
}

// Events returns the notification channel. It is closed when the listener
// stops.
func (l *Listener) Events() <-chan Notification {
	return l.events
}

// Metrics returns the listener counters.
func (l *Listener) Metrics() *Metrics {
	return &l.metrics
}

// Faulted reports whether the listener stopped on a channel fault.
func (l *Listener) Faulted() bool {
	return l.faulted.Load()
}

// Start launches the poll loop. It stops when ctx is done, Stop is called or
// the channel faults.
func (l *Listener) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	l.tasks = task.NewManager(ctx, l.logger)

	return l.tasks.Start("listener", l.poll, l.cleanup)
}

// Stop ends the poll loop and waits for it to exit.
func (l *Listener) Stop() {
	if l.tasks == nil {
		l.cleanup()
		return
	}

	l.tasks.Stop()
	l.tasks.Wait()
}

func (l *Listener) cleanup() {
	// the loop never holds ownership across iterations, but a panic might
	l.arb.Yield()
	l.closeOnce.Do(func() { close(l.events) })
}

// poll is one loop iteration. It returns false to stop the loop.
func (l *Listener) poll(ctx context.Context) bool {
	l.metrics.Polls.Add(1)

	if err := l.arb.Acquire(ctx, link.ListenerOwned); err != nil {
		// a transfer owns the channel or is about to
		pool.Sleep(ctx, l.opts.pollInterval)
		return true
	}

	raw, got, err := l.readLine()
	l.arb.Yield()

	if err != nil {
		l.fault(ctx, err)
		return false
	}
	if !got {
		pool.Sleep(ctx, l.opts.pollInterval)
		return true
	}

	if line := decodeLine(l.opts.encoding, raw); line != "" {
		l.emit(line)
	}

	return true
}

// readLine reads one line byte by byte, so nothing past the terminator is
// consumed. It stops early at the line timeout, the length limit or when a
// transfer asks for the channel. got is false when no input was pending.
func (l *Listener) readLine() (raw []byte, got bool, err error) {
	ok, err := l.ch.Available()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	deadline := time.Now().Add(l.opts.lineTimeout)
	for len(raw) < l.opts.maxLineLength {
		b, err := link.ReadByteBefore(l.ch, deadline)
		if err != nil {
			if link.IsTimeout(err) {
				return raw, true, nil
			}

			return raw, true, err
		}
		if b == '\n' {
			return raw, true, nil
		}
		raw = append(raw, b)

		if l.arb.TransferPending() {
			return raw, true, nil
		}
	}

	return raw, true, nil
}

func (l *Listener) emit(line string) {
	n := Notification{Kind: KindLine, Line: line, Time: time.Now()}
	if res, ok := modem.ParseResult(line); ok {
		n.Result, n.IsResult = res, true
	}

	select {
	case l.events <- n:
		l.metrics.LinesEmitted.Add(1)
	default:
		l.metrics.LinesDropped.Add(1)
		l.logger.Warn("listener: event queue full, dropping line", "line", line)
	}
}

func (l *Listener) fault(ctx context.Context, err error) {
	l.faulted.Store(true)
	l.logger.Error("listener: channel fault, stopping", "error", err)

	n := Notification{Kind: KindFault, Err: fmt.Errorf("listener: %w", err), Time: time.Now()}
	select {
	case l.events <- n:
	case <-ctx.Done():
	}
}
